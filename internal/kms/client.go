// Package kms provides the HTTP client for the remote key-management backend.
//
// Every cryptographic operation the gateway exposes is forwarded here; the
// client owns the connection pool, per-call timeouts, and the retry loop.
// Nothing cryptographic happens locally.
package kms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tjfontaine/kms-gateway/internal/domain"
)

const defaultTimeout = 30 * time.Second

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithBackoff sets the retry policy.
func WithBackoff(b Backoff) ClientOption {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is the backend KMS client. A single instance is shared by all
// requests; the underlying transport bounds concurrent connections.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	backoff    Backoff
	logger     *slog.Logger
}

// New creates a backend client for the given base URL.
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: defaultTimeout,
		backoff: DefaultBackoff(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: newTransport()}
	}
	return c
}

// newTransport builds the shared, bounded connection pool.
func newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}
}

// GenerateKey requests a new symmetric key from the backend.
func (c *Client) GenerateKey(ctx context.Context) (*domain.KeyResponse, error) {
	var out domain.KeyResponse
	if err := c.call(ctx, "/generate_key", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Encrypt encrypts plaintext with the given symmetric key.
func (c *Client) Encrypt(ctx context.Context, keyID, plaintext string) (*domain.EncryptResponse, error) {
	payload := domain.EncryptRequest{KeyID: keyID, Plaintext: plaintext}
	var out domain.EncryptResponse
	if err := c.call(ctx, "/encrypt", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Decrypt decrypts ciphertext with the given symmetric key and nonce.
func (c *Client) Decrypt(ctx context.Context, keyID, ciphertext, nonce string) (*domain.DecryptResponse, error) {
	payload := domain.DecryptRequest{KeyID: keyID, Ciphertext: ciphertext, Nonce: nonce}
	var out domain.DecryptResponse
	if err := c.call(ctx, "/decrypt", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateKeyPair requests a new asymmetric key pair from the backend.
func (c *Client) GenerateKeyPair(ctx context.Context) (*domain.KeyPairResponse, error) {
	var out domain.KeyPairResponse
	if err := c.call(ctx, "/generate_keypair", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EncryptAsymmetric encrypts plaintext with the given public key.
func (c *Client) EncryptAsymmetric(ctx context.Context, keyID, plaintext string) (*domain.AsymmetricEncryptResponse, error) {
	payload := domain.AsymmetricEncryptRequest{KeyID: keyID, Plaintext: plaintext}
	var out domain.AsymmetricEncryptResponse
	if err := c.call(ctx, "/encrypt_asymmetric", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecryptAsymmetric decrypts ciphertext with the given private key.
func (c *Client) DecryptAsymmetric(ctx context.Context, keyID, ciphertext string) (*domain.AsymmetricDecryptResponse, error) {
	payload := domain.AsymmetricDecryptRequest{KeyID: keyID, Ciphertext: ciphertext}
	var out domain.AsymmetricDecryptResponse
	if err := c.call(ctx, "/decrypt_asymmetric", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthCheck probes the backend once, without retries, and returns the
// observed latency. The caller bounds the probe with its own context timeout.
func (c *Client) HealthCheck(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	status, body, err := c.attempt(ctx, http.MethodGet, "/health", nil)
	latency := time.Since(start)
	if err != nil {
		if retryable(err) {
			return latency, domain.ErrConnection(fmt.Sprintf("backend health probe failed: %v", err))
		}
		return latency, domain.ErrClient(fmt.Sprintf("backend health probe failed: %v", err))
	}
	if status >= 400 {
		return latency, domain.ErrBackend(status, parseErrorDetail(body))
	}
	return latency, nil
}

// call performs one logical backend operation: marshal, POST with retries on
// transport failures, classify, decode. Error statuses are never retried.
func (c *Client) call(ctx context.Context, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return domain.ErrClient(fmt.Sprintf("failed to marshal request: %v", err))
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.backoff.MaxRetries; attempt++ {
		start := time.Now()
		status, respBody, err := c.attempt(ctx, http.MethodPost, path, body)
		latency := time.Since(start)

		if err == nil {
			if status >= 400 {
				detail := parseErrorDetail(respBody)
				c.logger.Warn("backend returned error status",
					slog.String("path", path),
					slog.Int("attempt", attempt),
					slog.Int("status", status),
					slog.Duration("latency", latency),
					slog.String("detail", detail),
				)
				return domain.ErrBackend(status, detail).WithUpstreamBody(string(respBody))
			}

			c.logger.Debug("backend call succeeded",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Int("status", status),
				slog.Duration("latency", latency),
			)
			if out != nil {
				if err := json.Unmarshal(respBody, out); err != nil {
					return domain.ErrClient(fmt.Sprintf("failed to decode backend response: %v", err))
				}
			}
			return nil
		}

		if !retryable(err) {
			return domain.ErrClient(err.Error())
		}

		lastErr = err
		c.logger.Warn("backend call failed",
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.backoff.MaxRetries),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)

		// The caller is gone: no point in retrying on its behalf.
		if ctx.Err() != nil {
			return domain.ErrClient(ctx.Err().Error())
		}
		if attempt == c.backoff.MaxRetries {
			break
		}

		delay := c.backoff.Delay(attempt)
		select {
		case <-ctx.Done():
			return domain.ErrClient(ctx.Err().Error())
		case <-time.After(delay):
		}
	}

	return domain.ErrConnection(fmt.Sprintf("backend unreachable after %d attempts: %v",
		c.backoff.MaxRetries+1, lastErr))
}

// attempt performs a single HTTP exchange under the per-call timeout.
func (c *Client) attempt(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read backend response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// retryable reports whether a transport failure is worth another attempt.
// Timeouts and connection failures are; caller cancellation is not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// parseErrorDetail extracts a structured message from an upstream error body,
// falling back to the raw text.
func parseErrorDetail(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Detail != "":
			return payload.Detail
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return "backend error"
}
