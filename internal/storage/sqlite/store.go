// Package sqlite provides a SQLite-backed KeyStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/kms-gateway/internal/storage"
)

// Store is a SQLite implementation of storage.KeyStore.
type Store struct {
	db *sqlx.DB
}

var _ storage.KeyStore = (*Store)(nil)

// New opens (and if necessary creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `CREATE TABLE IF NOT EXISTS keys (
		key_id TEXT PRIMARY KEY,
		algorithm TEXT NOT NULL,
		key_size INTEGER NOT NULL DEFAULT 0,
		public_key_pem TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP
	)`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) CreateKey(ctx context.Context, rec *storage.KeyRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO keys (key_id, algorithm, key_size, public_key_pem, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.KeyID, rec.Algorithm, rec.KeySize, rec.PublicKeyPEM, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to insert key %s: %w", rec.KeyID, err)
	}
	return nil
}

func (s *Store) GetKey(ctx context.Context, keyID string) (*storage.KeyRecord, error) {
	var rec storage.KeyRecord
	err := s.db.GetContext(ctx, &rec,
		`SELECT key_id, algorithm, key_size, public_key_pem, created_at, expires_at
		 FROM keys WHERE key_id = ?`, keyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query key %s: %w", keyID, err)
	}
	return &rec, nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM keys WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired keys: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
