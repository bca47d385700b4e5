package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"encore.dev/storage/sqldb"

	"encore.app/pkg/models"
)

// dataStore is the persistence surface Service depends on. Extracted so
// tests can inject an in-memory fake the way cache-manager/service_test.go
// injects MockRemoteCache/MockOriginFetcher against the teacher's
// RemoteCache/OriginFetcher interfaces; *Store is the production
// implementation backed by the relational store.
type dataStore interface {
	Get(ctx context.Context, cacheType models.CacheType, key string) (*models.CacheEntry, bool, error)
	Upsert(ctx context.Context, e *models.CacheEntry) error
	DeleteKey(ctx context.Context, cacheType models.CacheType, key string) (bool, error)
	DeleteType(ctx context.Context, cacheType models.CacheType) (int64, error)
	DeleteKeyPrefix(ctx context.Context, cacheType models.CacheType, prefix string) (int64, error)
	DeleteTournament(ctx context.Context, tournamentID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountByType(ctx context.Context, cacheType models.CacheType) (int, error)
	RecordHit(ctx context.Context, cacheType models.CacheType, at time.Time)
	RecordMiss(ctx context.Context, cacheType models.CacheType, at time.Time)
	RecordSavedCall(ctx context.Context, cacheType models.CacheType)
	LoadStats(ctx context.Context, cacheType models.CacheType) (StatsRow, error)
}

// Store persists cache entries and per-type statistics. Grounded on
// invalidation/audit.go's pattern of a typed wrapper around *sqldb.Database
// with ensureSchema run once on construction.
type Store struct {
	db *sqldb.Database
}

// NewStore wraps a database handle and ensures the cache schema exists.
func NewStore(db *sqldb.Database) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("cache: failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			cache_type TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			payload JSONB NOT NULL,
			item_count INT NOT NULL DEFAULT 0,
			version TEXT NOT NULL DEFAULT '',
			cached_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (cache_type, cache_key)
		);

		CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at
		ON cache_entries(expires_at);

		CREATE TABLE IF NOT EXISTS cache_stats (
			cache_type TEXT PRIMARY KEY,
			hits BIGINT NOT NULL DEFAULT 0,
			misses BIGINT NOT NULL DEFAULT 0,
			saved_provider_calls BIGINT NOT NULL DEFAULT 0,
			last_hit TIMESTAMPTZ,
			last_miss TIMESTAMPTZ
		);
	`
	_, err := s.db.Exec(ctx, query)
	return err
}

// Get looks up a single cache entry by (type, key).
func (s *Store) Get(ctx context.Context, cacheType models.CacheType, key string) (*models.CacheEntry, bool, error) {
	query := `
		SELECT cache_type, cache_key, payload, item_count, version, cached_at, expires_at
		FROM cache_entries
		WHERE cache_type = $1 AND cache_key = $2
	`
	row := s.db.QueryRow(ctx, query, string(cacheType), key)

	var e models.CacheEntry
	var t string
	err := row.Scan(&t, &e.Key, &e.Payload, &e.ItemCount, &e.Version, &e.CachedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s/%s: %w", cacheType, key, err)
	}
	e.Type = models.CacheType(t)
	return &e, true, nil
}

// Upsert stores (or overwrites) a single cache entry.
func (s *Store) Upsert(ctx context.Context, e *models.CacheEntry) error {
	query := `
		INSERT INTO cache_entries (cache_type, cache_key, payload, item_count, version, cached_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cache_type, cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			item_count = EXCLUDED.item_count,
			version = EXCLUDED.version,
			cached_at = EXCLUDED.cached_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.Exec(ctx, query,
		string(e.Type), e.Key, []byte(e.Payload), e.ItemCount, e.Version, e.CachedAt, e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("cache: upsert %s/%s: %w", e.Type, e.Key, err)
	}
	return nil
}

// DeleteKey removes a single entry; returns whether a row was removed.
func (s *Store) DeleteKey(ctx context.Context, cacheType models.CacheType, key string) (bool, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM cache_entries WHERE cache_type = $1 AND cache_key = $2`,
		string(cacheType), key)
	if err != nil {
		return false, fmt.Errorf("cache: delete %s/%s: %w", cacheType, key, err)
	}
	return res.RowsAffected() > 0, nil
}

// DeleteType removes every entry of a given type; returns count removed.
func (s *Store) DeleteType(ctx context.Context, cacheType models.CacheType) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM cache_entries WHERE cache_type = $1`, string(cacheType))
	if err != nil {
		return 0, fmt.Errorf("cache: delete type %s: %w", cacheType, err)
	}
	return res.RowsAffected(), nil
}

// DeleteKeyPrefix removes every entry of a type whose key shares the given
// prefix (used to purge parameterized tournaments_list variants keyed off
// the base "list" selector).
func (s *Store) DeleteKeyPrefix(ctx context.Context, cacheType models.CacheType, prefix string) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM cache_entries WHERE cache_type = $1 AND cache_key LIKE $2`,
		string(cacheType), prefix+"%")
	if err != nil {
		return 0, fmt.Errorf("cache: delete prefix %s/%s: %w", cacheType, prefix, err)
	}
	return res.RowsAffected(), nil
}

// DeleteTournament removes every entry keyed by the given tournament id
// across the tournament-scoped types (matches, participants, stations,
// tournament_details).
func (s *Store) DeleteTournament(ctx context.Context, tournamentID string) (int64, error) {
	res, err := s.db.Exec(ctx, `
		DELETE FROM cache_entries
		WHERE cache_key = $1 AND cache_type IN ($2, $3, $4, $5)
	`,
		tournamentID,
		string(models.CacheMatches), string(models.CacheParticipants),
		string(models.CacheStations), string(models.CacheTournamentDetails))
	if err != nil {
		return 0, fmt.Errorf("cache: delete tournament %s: %w", tournamentID, err)
	}
	return res.RowsAffected(), nil
}

// DeleteExpired removes every entry whose expires_at has passed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("cache: cleanup expired: %w", err)
	}
	return res.RowsAffected(), nil
}

// CountByType returns the current row count for a type (used by Stats()).
func (s *Store) CountByType(ctx context.Context, cacheType models.CacheType) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM cache_entries WHERE cache_type = $1`,
		string(cacheType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("cache: count %s: %w", cacheType, err)
	}
	return n, nil
}

// RecordHit increments the hit counter and last_hit timestamp for a type.
func (s *Store) RecordHit(ctx context.Context, cacheType models.CacheType, at time.Time) {
	_, _ = s.db.Exec(ctx, `
		INSERT INTO cache_stats (cache_type, hits, last_hit)
		VALUES ($1, 1, $2)
		ON CONFLICT (cache_type) DO UPDATE SET
			hits = cache_stats.hits + 1,
			last_hit = $2
	`, string(cacheType), at)
}

// RecordMiss increments the miss counter and last_miss timestamp for a type.
func (s *Store) RecordMiss(ctx context.Context, cacheType models.CacheType, at time.Time) {
	_, _ = s.db.Exec(ctx, `
		INSERT INTO cache_stats (cache_type, misses, last_miss)
		VALUES ($1, 1, $2)
		ON CONFLICT (cache_type) DO UPDATE SET
			misses = cache_stats.misses + 1,
			last_miss = $2
	`, string(cacheType), at)
}

// RecordSavedCall increments the saved_provider_calls counter (a fresh cache
// hit that avoided an outbound provider request).
func (s *Store) RecordSavedCall(ctx context.Context, cacheType models.CacheType) {
	_, _ = s.db.Exec(ctx, `
		INSERT INTO cache_stats (cache_type, saved_provider_calls)
		VALUES ($1, 1)
		ON CONFLICT (cache_type) DO UPDATE SET
			saved_provider_calls = cache_stats.saved_provider_calls + 1
	`, string(cacheType))
}

// StatsRow mirrors one row of cache_stats.
type StatsRow struct {
	Hits, Misses, Saved int64
	LastHit, LastMiss   sql.NullTime
}

// LoadStats reads the raw stats row for a type, returning zero values if
// the type has never recorded an access.
func (s *Store) LoadStats(ctx context.Context, cacheType models.CacheType) (StatsRow, error) {
	var r StatsRow
	err := s.db.QueryRow(ctx, `
		SELECT hits, misses, saved_provider_calls, last_hit, last_miss
		FROM cache_stats WHERE cache_type = $1
	`, string(cacheType)).Scan(&r.Hits, &r.Misses, &r.Saved, &r.LastHit, &r.LastMiss)
	if err == sql.ErrNoRows {
		return StatsRow{}, nil
	}
	if err != nil {
		return StatsRow{}, fmt.Errorf("cache: load stats %s: %w", cacheType, err)
	}
	return r, nil
}
