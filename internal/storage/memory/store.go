// Package memory provides an in-memory KeyStore for single-instance and test
// deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/kms-gateway/internal/storage"
)

// Store is an in-memory implementation of storage.KeyStore.
type Store struct {
	mu   sync.RWMutex
	keys map[string]*storage.KeyRecord
}

var _ storage.KeyStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		keys: make(map[string]*storage.KeyRecord),
	}
}

func (s *Store) CreateKey(_ context.Context, rec *storage.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[rec.KeyID]; exists {
		return storage.ErrDuplicate
	}

	clone := *rec
	s.keys[rec.KeyID] = &clone
	return nil
}

func (s *Store) GetKey(_ context.Context, keyID string) (*storage.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.keys[keyID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	clone := *rec
	return &clone, nil
}

func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, rec := range s.keys {
		if rec.ExpiresAt != nil && !rec.ExpiresAt.After(now) {
			delete(s.keys, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) Close() error {
	return nil
}
