// Package storage defines the key-metadata store.
//
// The gateway never holds key material; it records the metadata the backend
// returns for generated keys so callers can look keys up and expired entries
// can be swept.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key id is unknown.
var ErrNotFound = errors.New("key not found")

// ErrDuplicate is returned when a key id is already recorded.
var ErrDuplicate = errors.New("key already exists")

// KeyRecord is the metadata kept for one generated key.
type KeyRecord struct {
	KeyID        string     `db:"key_id" json:"key_id"`
	Algorithm    string     `db:"algorithm" json:"algorithm"`
	KeySize      int        `db:"key_size" json:"key_size,omitempty"`
	PublicKeyPEM string     `db:"public_key_pem" json:"public_key_pem,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

// KeyStore is the create/read/expire lifecycle for key metadata.
type KeyStore interface {
	CreateKey(ctx context.Context, rec *KeyRecord) error
	GetKey(ctx context.Context, keyID string) (*KeyRecord, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}
