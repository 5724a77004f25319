package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// maxKeyIDLength bounds key identifiers.
	maxKeyIDLength = 100

	// maxPlaintextLength bounds symmetric plaintext input.
	maxPlaintextLength = 65536

	// maxAsymmetricPlaintextLength is the RSA-2048 OAEP payload bound.
	maxAsymmetricPlaintextLength = 190
)

// KeyResponse is the result of generating a symmetric key.
type KeyResponse struct {
	KeyID     string     `json:"key_id"`
	Algorithm string     `json:"algorithm"`
	KeySize   int        `json:"key_size"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// KeyPairResponse is the result of generating an asymmetric key pair.
// The private key never leaves the backend.
type KeyPairResponse struct {
	KeyID        string     `json:"key_id"`
	PublicKeyPEM string     `json:"public_key_pem"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// EncryptRequest asks the backend to encrypt with a symmetric key.
type EncryptRequest struct {
	KeyID     string `json:"key_id"`
	Plaintext string `json:"plaintext"`
}

// Validate checks field bounds before any backend call.
func (r *EncryptRequest) Validate() error {
	if err := validateKeyID(r.KeyID); err != nil {
		return err
	}
	return validatePlaintext(r.Plaintext, maxPlaintextLength)
}

// EncryptResponse carries the backend's encryption result unmodified.
type EncryptResponse struct {
	KeyID      string    `json:"key_id"`
	Ciphertext string    `json:"ciphertext"`
	Nonce      string    `json:"nonce"`
	Algorithm  string    `json:"algorithm"`
	Timestamp  time.Time `json:"timestamp"`
}

// DecryptRequest asks the backend to decrypt with a symmetric key.
type DecryptRequest struct {
	KeyID      string `json:"key_id"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// Validate checks field bounds before any backend call.
func (r *DecryptRequest) Validate() error {
	if err := validateKeyID(r.KeyID); err != nil {
		return err
	}
	if strings.TrimSpace(r.Ciphertext) == "" {
		return ErrValidation("ciphertext must not be empty")
	}
	if strings.TrimSpace(r.Nonce) == "" {
		return ErrValidation("nonce must not be empty")
	}
	return nil
}

// DecryptResponse carries the backend's decryption result unmodified.
type DecryptResponse struct {
	Plaintext string    `json:"plaintext"`
	Algorithm string    `json:"algorithm"`
	Timestamp time.Time `json:"timestamp"`
}

// AsymmetricEncryptRequest asks the backend to encrypt with a public key.
type AsymmetricEncryptRequest struct {
	KeyID     string `json:"key_id"`
	Plaintext string `json:"plaintext"`
}

// Validate checks field bounds, including the RSA-2048 payload ceiling.
func (r *AsymmetricEncryptRequest) Validate() error {
	if err := validateKeyID(r.KeyID); err != nil {
		return err
	}
	return validatePlaintext(r.Plaintext, maxAsymmetricPlaintextLength)
}

// AsymmetricEncryptResponse carries the backend's encryption result unmodified.
type AsymmetricEncryptResponse struct {
	Ciphertext string    `json:"ciphertext"`
	Algorithm  string    `json:"algorithm"`
	Timestamp  time.Time `json:"timestamp"`
}

// AsymmetricDecryptRequest asks the backend to decrypt with a private key.
type AsymmetricDecryptRequest struct {
	KeyID      string `json:"key_id"`
	Ciphertext string `json:"ciphertext"`
}

// Validate checks field bounds before any backend call.
func (r *AsymmetricDecryptRequest) Validate() error {
	if err := validateKeyID(r.KeyID); err != nil {
		return err
	}
	if strings.TrimSpace(r.Ciphertext) == "" {
		return ErrValidation("ciphertext must not be empty")
	}
	return nil
}

// AsymmetricDecryptResponse carries the backend's decryption result unmodified.
type AsymmetricDecryptResponse struct {
	Plaintext string    `json:"plaintext"`
	Algorithm string    `json:"algorithm"`
	Timestamp time.Time `json:"timestamp"`
}

func validateKeyID(keyID string) error {
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return ErrValidation("key_id must not be empty")
	}
	if len(trimmed) > maxKeyIDLength {
		return ErrValidation(fmt.Sprintf("key_id must be at most %d characters", maxKeyIDLength))
	}
	return nil
}

func validatePlaintext(plaintext string, max int) error {
	if strings.TrimSpace(plaintext) == "" {
		return ErrValidation("plaintext must not be empty")
	}
	if len(plaintext) > max {
		return ErrValidation(fmt.Sprintf("plaintext must be at most %d characters", max))
	}
	return nil
}
