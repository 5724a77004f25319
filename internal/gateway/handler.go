// Package gateway implements the HTTP handlers for the key-management
// operations. Each handler validates input, forwards the operation to the
// backend client, and renders either the backend's typed payload unmodified
// or the uniform error envelope.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/kms-gateway/internal/domain"
	"github.com/tjfontaine/kms-gateway/internal/health"
	"github.com/tjfontaine/kms-gateway/internal/kms"
	"github.com/tjfontaine/kms-gateway/internal/server"
	"github.com/tjfontaine/kms-gateway/internal/storage"
)

// keyPairAlgorithm is what the backend generates for asymmetric pairs.
const keyPairAlgorithm = "RSA-2048"

type Handler struct {
	client  *kms.Client
	keys    storage.KeyStore
	checker *health.Checker
	logger  *slog.Logger
	debug   bool
}

// NewHandler wires the operation handlers to the backend client, the
// key-metadata store, and the health checker.
func NewHandler(client *kms.Client, keys storage.KeyStore, checker *health.Checker, logger *slog.Logger, debug bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client:  client,
		keys:    keys,
		checker: checker,
		logger:  logger,
		debug:   debug,
	}
}

// RegisterOperations mounts the authenticated operation endpoints on r.
func (h *Handler) RegisterOperations(r chi.Router) {
	r.Post("/generate_key", h.HandleGenerateKey)
	r.Post("/encrypt", h.HandleEncrypt)
	r.Post("/decrypt", h.HandleDecrypt)
	r.Post("/generate_keypair", h.HandleGenerateKeyPair)
	r.Post("/encrypt_asymmetric", h.HandleEncryptAsymmetric)
	r.Post("/decrypt_asymmetric", h.HandleDecryptAsymmetric)
	r.Get("/keys/{keyID}", h.HandleGetKey)
}

func (h *Handler) HandleGenerateKey(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.GenerateKey(r.Context())
	if err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}

	h.recordKey(r, &storage.KeyRecord{
		KeyID:     resp.KeyID,
		Algorithm: resp.Algorithm,
		KeySize:   resp.KeySize,
		CreatedAt: resp.CreatedAt,
		ExpiresAt: resp.ExpiresAt,
	})

	server.AddLogField(r.Context(), "key_id", resp.KeyID)
	h.logger.Info("key generated",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("key_id", resp.KeyID),
		slog.String("algorithm", resp.Algorithm),
		slog.Int("key_size", resp.KeySize),
	)
	server.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleEncrypt(w http.ResponseWriter, r *http.Request) {
	var req domain.EncryptRequest
	if err := h.decode(w, r, &req); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}
	server.AddLogField(r.Context(), "key_id", req.KeyID)

	resp, err := h.client.Encrypt(r.Context(), req.KeyID, req.Plaintext)
	if err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}

	h.logger.Info("data encrypted",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("key_id", req.KeyID),
		slog.String("algorithm", resp.Algorithm),
		slog.Int("data_length", len(req.Plaintext)),
	)
	server.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req domain.DecryptRequest
	if err := h.decode(w, r, &req); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}
	server.AddLogField(r.Context(), "key_id", req.KeyID)

	resp, err := h.client.Decrypt(r.Context(), req.KeyID, req.Ciphertext, req.Nonce)
	if err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}

	h.logger.Info("data decrypted",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("key_id", req.KeyID),
		slog.String("algorithm", resp.Algorithm),
	)
	server.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGenerateKeyPair(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.GenerateKeyPair(r.Context())
	if err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}

	h.recordKey(r, &storage.KeyRecord{
		KeyID:        resp.KeyID,
		Algorithm:    keyPairAlgorithm,
		PublicKeyPEM: resp.PublicKeyPEM,
		CreatedAt:    resp.CreatedAt,
		ExpiresAt:    resp.ExpiresAt,
	})

	server.AddLogField(r.Context(), "key_id", resp.KeyID)
	h.logger.Info("key pair generated",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("key_id", resp.KeyID),
		slog.String("algorithm", keyPairAlgorithm),
	)
	server.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleEncryptAsymmetric(w http.ResponseWriter, r *http.Request) {
	var req domain.AsymmetricEncryptRequest
	if err := h.decode(w, r, &req); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}
	server.AddLogField(r.Context(), "key_id", req.KeyID)

	resp, err := h.client.EncryptAsymmetric(r.Context(), req.KeyID, req.Plaintext)
	if err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}

	h.logger.Info("data encrypted asymmetrically",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("key_id", req.KeyID),
		slog.String("algorithm", resp.Algorithm),
		slog.Int("data_length", len(req.Plaintext)),
	)
	server.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleDecryptAsymmetric(w http.ResponseWriter, r *http.Request) {
	var req domain.AsymmetricDecryptRequest
	if err := h.decode(w, r, &req); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}
	server.AddLogField(r.Context(), "key_id", req.KeyID)

	resp, err := h.client.DecryptAsymmetric(r.Context(), req.KeyID, req.Ciphertext)
	if err != nil {
		server.WriteError(w, r, err, h.debug)
		return
	}

	h.logger.Info("data decrypted asymmetrically",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("key_id", req.KeyID),
		slog.String("algorithm", resp.Algorithm),
	)
	server.WriteJSON(w, http.StatusOK, resp)
}

// HandleGetKey serves recorded key metadata. Expired keys read as missing.
func (h *Handler) HandleGetKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	server.AddLogField(r.Context(), "key_id", keyID)

	rec, err := h.keys.GetKey(r.Context(), keyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			server.WriteError(w, r, domain.ErrNotFound(fmt.Sprintf("key %s not found", keyID)), h.debug)
			return
		}
		server.WriteError(w, r, err, h.debug)
		return
	}
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(time.Now()) {
		server.WriteError(w, r, domain.ErrNotFound(fmt.Sprintf("key %s not found", keyID)), h.debug)
		return
	}

	server.WriteJSON(w, http.StatusOK, rec)
}

// HandleHealth always answers 200 with the aggregated snapshot, even when the
// backend is fully unreachable.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.checker.Check(r.Context())
	server.WriteJSON(w, http.StatusOK, snap)
}

// decode reads the JSON body, rendering a 400 envelope on malformed input.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		verr := domain.ErrValidation("invalid request body: " + err.Error()).WithStatus(http.StatusBadRequest)
		server.WriteError(w, r, verr, h.debug)
		return verr
	}
	return nil
}

// recordKey stores key metadata best-effort: a store failure is logged but
// never fails the caller's request.
func (h *Handler) recordKey(r *http.Request, rec *storage.KeyRecord) {
	if h.keys == nil {
		return
	}
	if err := h.keys.CreateKey(r.Context(), rec); err != nil {
		h.logger.Warn("failed to record key metadata",
			slog.String("request_id", server.GetRequestID(r.Context())),
			slog.String("key_id", rec.KeyID),
			slog.String("error", err.Error()),
		)
	}
}
