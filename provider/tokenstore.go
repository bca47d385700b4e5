package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"encore.dev/storage/sqldb"
)

// TokenSealer seals and opens the bearer token's secret bytes before they
// touch the database. OAuth token encryption primitives are out of scope
// (spec.md Non-goals) — the store only ever carries the IV and sealed bytes
// an injected TokenSealer hands it, and never implements a cipher itself.
type TokenSealer interface {
	Seal(plaintext []byte) (iv, sealed []byte, err error)
	Open(iv, sealed []byte) (plaintext []byte, err error)
}

// BearerToken is the decrypted, in-memory view of a stored OAuth token.
type BearerToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Expired reports whether the token must be refreshed before use; per
// spec.md §4.4 a refresh is due five minutes ahead of the real expiry.
func (t BearerToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt.Add(-5 * time.Minute))
}

// TokenStore persists the single bearer token record this core tracks.
// Grounded on invalidation/audit.go's AuditLogger: a *sqldb.Database wrapper
// with ensureSchema run once at construction via CREATE TABLE IF NOT EXISTS,
// no migrations directory.
type TokenStore struct {
	db     *sqldb.Database
	sealer TokenSealer
}

// NewTokenStore wires db and sealer and ensures the backing table exists.
func NewTokenStore(db *sqldb.Database, sealer TokenSealer) (*TokenStore, error) {
	ts := &TokenStore{db: db, sealer: sealer}
	if err := ts.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize token store schema: %w", err)
	}
	return ts, nil
}

func (ts *TokenStore) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS provider_tokens (
			id SMALLINT PRIMARY KEY DEFAULT 1,
			iv BYTEA NOT NULL,
			sealed BYTEA NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT provider_tokens_singleton CHECK (id = 1)
		);
	`
	_, err := ts.db.Exec(ctx, query)
	return err
}

// Get returns the current bearer token, or ok=false if none is stored (the
// client falls back to the legacy key in that case).
func (ts *TokenStore) Get(ctx context.Context) (BearerToken, bool, error) {
	var iv, sealed []byte
	var expiresAt time.Time

	err := ts.db.QueryRow(ctx, `SELECT iv, sealed, expires_at FROM provider_tokens WHERE id = 1`).
		Scan(&iv, &sealed, &expiresAt)
	if err == sql.ErrNoRows {
		return BearerToken{}, false, nil
	}
	if err != nil {
		return BearerToken{}, false, fmt.Errorf("failed to load bearer token: %w", err)
	}

	plaintext, err := ts.sealer.Open(iv, sealed)
	if err != nil {
		return BearerToken{}, false, fmt.Errorf("failed to open sealed token: %w", err)
	}
	return BearerToken{AccessToken: string(plaintext), ExpiresAt: expiresAt}, true, nil
}

// Put stores (or refreshes) the bearer token record, sealing it first.
func (ts *TokenStore) Put(ctx context.Context, accessToken string, expiresAt time.Time) error {
	iv, sealed, err := ts.sealer.Seal([]byte(accessToken))
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}

	query := `
		INSERT INTO provider_tokens (id, iv, sealed, expires_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET iv = $1, sealed = $2, expires_at = $3
	`
	_, err = ts.db.Exec(ctx, query, iv, sealed, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store bearer token: %w", err)
	}
	return nil
}

// Delete removes the stored record. Called on the 401-fallback path
// (spec.md §4.4: "the token is irrecoverable") so the next request goes
// straight to the legacy key without re-attempting a dead bearer token.
func (ts *TokenStore) Delete(ctx context.Context) error {
	_, err := ts.db.Exec(ctx, `DELETE FROM provider_tokens WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete bearer token: %w", err)
	}
	return nil
}
