package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"encore.dev/storage/sqldb"
	"golang.org/x/sync/singleflight"

	"encore.app/pkg/models"
	"encore.app/pkg/utils"
)

var cacheDB = sqldb.Named("cache_db")

var (
	svc      *Service
	initOnce sync.Once
)

// initService wires the package-level singleton Encore expects. Cross-service
// dependencies (the adaptive-controller mode hook) are injected afterwards by
// appcore.New via SetActiveModeFn, following the teacher's SetL2Cache/
// SetOriginFetcher setter-injection idiom rather than a generic DI container.
func initService() (*Service, error) {
	var err error
	initOnce.Do(func() {
		var store dataStore
		store, err = NewStore(cacheDB)
		if err != nil {
			return
		}
		svc = NewService(store, log.New(os.Stderr, "", log.LstdFlags), nil)
	})
	return svc, err
}

// Svc returns the package singleton, initializing it on first call. Exposed
// so appcore can obtain a handle during composition without duplicating the
// sync.Once dance.
func Svc() (*Service, error) {
	return initService()
}

// SetActiveModeFn injects the adaptive controller's "is ACTIVE" check used to
// select shortened TTLs. Called once from appcore.New.
func (s *Service) SetActiveModeFn(fn func() bool) {
	if fn != nil {
		s.activeMode = fn
	}
}

// Fetcher retrieves a fresh payload for (type, key) from the provider when
// the cache cannot satisfy a request on its own.
type Fetcher func(ctx context.Context) (json.RawMessage, int, error)

// Options controls GetOrFetch behavior (spec.md §4.1).
type Options struct {
	// ForWrite forces an unconditional fetcher call; the cache is never
	// consulted and a failure is never masked by a stale value.
	ForWrite bool
}

// Service implements the content cache store. Grounded on the teacher's
// cache-manager.Service (L1Cache + RequestCoalescer), generalized from a
// generic byte-blob cache to a typed (CacheType, key) cache whose
// authoritative storage is the relational Store rather than an in-process map.
//
//encore:service
type Service struct {
	store     dataStore
	coalescer singleflight.Group
	logger    *log.Logger

	// activeMode reports whether the adaptive controller is currently in
	// ACTIVE mode, used to select the shortened TTL table (spec.md §4.1).
	activeMode func() bool
}

// NewService constructs the cache service around a persistent store. Accepts
// the dataStore interface rather than *Store so tests can inject an
// in-memory fake.
func NewService(store dataStore, logger *log.Logger, activeModeFn func() bool) *Service {
	if activeModeFn == nil {
		activeModeFn = func() bool { return false }
	}
	return &Service{
		store:      store,
		logger:     logger,
		activeMode: activeModeFn,
	}
}

// Get performs a pure cache lookup; it never contacts the provider.
func (s *Service) Get(ctx context.Context, cacheType models.CacheType, key string) (json.RawMessage, *models.Meta, bool) {
	entry, ok, err := s.store.Get(ctx, cacheType, key)
	if err != nil {
		// A cache-layer failure on read is never fatal (spec.md §4.1
		// Failure semantics): treat as a miss so the caller falls through
		// to the provider.
		s.logf("get %s/%s degraded to miss: %v", cacheType, key, err)
		return nil, nil, false
	}
	if !ok {
		s.recordMiss(ctx, cacheType)
		return nil, nil, false
	}

	now := time.Now()
	stale := entry.Stale(now)
	meta := &models.Meta{
		Source:   "cache",
		Stale:    stale,
		CachedAt: &entry.CachedAt,
		Age:      entry.Age(now),
		Version:  entry.Version,
	}
	s.recordHit(ctx, cacheType)
	return entry.Payload, meta, true
}

// Set stores a payload, applying the default or active-mode TTL for the type
// unless an explicit ttl is supplied.
func (s *Service) Set(ctx context.Context, cacheType models.CacheType, key string, payload json.RawMessage, ttl time.Duration) error {
	now := time.Now()
	if ttl <= 0 {
		if s.activeMode() {
			ttl = cacheType.ActiveTTL()
		} else {
			ttl = cacheType.DefaultTTL()
		}
	}

	entry := &models.CacheEntry{
		Type:      cacheType,
		Key:       key,
		Payload:   payload,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
		Version:   ExtractVersion(payload, now),
		ItemCount: itemCount(cacheType, payload),
	}

	if err := s.store.Upsert(ctx, entry); err != nil {
		// Write-side cache failures are silently dropped (spec.md §4.1):
		// the caller still has the freshly-fetched payload in hand.
		s.logf("set %s/%s degraded: %v", cacheType, key, err)
	}
	return nil
}

func itemCount(cacheType models.CacheType, payload json.RawMessage) int {
	if cacheType != models.CacheMatches && cacheType != models.CacheParticipants {
		return 0
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(payload, &arr); err != nil {
		return 0
	}
	return len(arr)
}

// GetOrFetch implements the full stale-while-revalidate contract of
// spec.md §4.1 step 3.
func (s *Service) GetOrFetch(ctx context.Context, cacheType models.CacheType, key string, fetch Fetcher, opts Options) (json.RawMessage, *models.Meta, error) {
	if opts.ForWrite {
		payload, _, err := s.singleFetch(ctx, cacheType, key, fetch)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Set(ctx, cacheType, key, payload, 0); err != nil {
			s.logf("set after ForWrite fetch degraded: %v", err)
		}
		return payload, &models.Meta{Source: "provider", ForWrite: true}, nil
	}

	entry, ok, err := s.store.Get(ctx, cacheType, key)
	if err != nil {
		s.logf("lookup %s/%s degraded: %v", cacheType, key, err)
		ok = false
	}

	now := time.Now()
	if ok && !entry.Stale(now) {
		s.recordHit(ctx, cacheType)
		s.store.RecordSavedCall(ctx, cacheType)
		return entry.Payload, &models.Meta{
			Source: "cache", Stale: false, CachedAt: &entry.CachedAt,
			Age: entry.Age(now), Version: entry.Version,
		}, nil
	}

	if ok {
		// Stale hit: attempt revalidation, fall back to the stale payload
		// on failure (spec.md §4.1 step 3, §7 "stale_served").
		payload, _, ferr := s.singleFetch(ctx, cacheType, key, fetch)
		if ferr != nil {
			s.logf("revalidate %s/%s failed, serving stale: %v", cacheType, key, ferr)
			return entry.Payload, &models.Meta{
				Source: "cache", Stale: true, Offline: true,
				CachedAt: &entry.CachedAt, Age: entry.Age(now),
				Version: entry.Version, Error: ferr.Error(),
			}, nil
		}
		if err := s.Set(ctx, cacheType, key, payload, 0); err != nil {
			s.logf("set after revalidate degraded: %v", err)
		}
		return payload, &models.Meta{Source: "provider", Stale: false}, nil
	}

	// Miss.
	s.recordMiss(ctx, cacheType)
	payload, _, ferr := s.singleFetch(ctx, cacheType, key, fetch)
	if ferr != nil {
		return nil, nil, fmt.Errorf("not_cached_and_provider_failed: %w", ferr)
	}
	if err := s.Set(ctx, cacheType, key, payload, 0); err != nil {
		s.logf("set after miss fetch degraded: %v", err)
	}
	return payload, &models.Meta{Source: "provider", Stale: false}, nil
}

// singleFetch coalesces concurrent fetches for the same (type, key) so a
// stampede of callers racing a stale/missing entry triggers exactly one
// provider call (grounded on cache-manager.RequestCoalescer, reimplemented
// with golang.org/x/sync/singleflight per the domain-stack decision).
func (s *Service) singleFetch(ctx context.Context, cacheType models.CacheType, key string, fetch Fetcher) (json.RawMessage, int, error) {
	flightKey := utils.JoinKey(string(cacheType), key)
	v, err, _ := s.coalescer.Do(flightKey, func() (interface{}, error) {
		payload, status, ferr := fetch(ctx)
		if ferr != nil {
			return nil, ferr
		}
		return struct {
			payload json.RawMessage
			status  int
		}{payload, status}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	res := v.(struct {
		payload json.RawMessage
		status  int
	})
	return res.payload, res.status, nil
}

// Invalidate purges an entry, or every entry of a type when key is empty.
// Invalidating the tournaments_list type's "list" key also purges every
// parameterized list variant (spec.md §4.1).
func (s *Service) Invalidate(ctx context.Context, cacheType models.CacheType, key string) error {
	if key == "" {
		_, err := s.store.DeleteType(ctx, cacheType)
		return err
	}
	if cacheType == models.CacheTournamentsList && key == "list" {
		_, err := s.store.DeleteKeyPrefix(ctx, cacheType, "list")
		return err
	}
	_, err := s.store.DeleteKey(ctx, cacheType, key)
	return err
}

// InvalidateTournament purges every cache entry keyed by tournamentID
// across matches, participants, stations, and details.
func (s *Service) InvalidateTournament(ctx context.Context, tournamentID string) error {
	if tournamentID == "" {
		return errors.New("cache: tournament id is required")
	}
	_, err := s.store.DeleteTournament(ctx, tournamentID)
	return err
}

// CleanupExpired deletes every entry whose expires_at has passed.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, time.Now())
}

// Stats aggregates per-type hit/miss counters with current entry counts.
func (s *Service) Stats(ctx context.Context) (models.CacheStatsSnapshot, error) {
	types := []models.CacheType{
		models.CacheTournamentsList, models.CacheMatches,
		models.CacheParticipants, models.CacheStations, models.CacheTournamentDetails,
	}

	var snap models.CacheStatsSnapshot
	for _, t := range types {
		row, err := s.store.LoadStats(ctx, t)
		if err != nil {
			return snap, err
		}
		count, err := s.store.CountByType(ctx, t)
		if err != nil {
			return snap, err
		}

		stat := models.CacheTypeStats{
			Type: t, Hits: row.Hits, Misses: row.Misses,
			SavedProviderCalls: row.Saved, EntryCount: count,
		}
		if total := stat.Hits + stat.Misses; total > 0 {
			stat.HitRate = float64(stat.Hits) / float64(total)
		}
		if row.LastHit.Valid {
			h := row.LastHit.Time
			stat.LastHit = &h
		}
		if row.LastMiss.Valid {
			m := row.LastMiss.Time
			stat.LastMiss = &m
		}

		snap.ByType = append(snap.ByType, stat)
		snap.Totals.Hits += stat.Hits
		snap.Totals.Misses += stat.Misses
		snap.Totals.SavedProviderCalls += stat.SavedProviderCalls
		snap.Totals.EntryCount += stat.EntryCount
	}
	if total := snap.Totals.Hits + snap.Totals.Misses; total > 0 {
		snap.Totals.HitRate = float64(snap.Totals.Hits) / float64(total)
	}
	return snap, nil
}

func (s *Service) recordHit(ctx context.Context, t models.CacheType) {
	s.store.RecordHit(ctx, t, time.Now())
}

func (s *Service) recordMiss(ctx context.Context, t models.CacheType) {
	s.store.RecordMiss(ctx, t, time.Now())
}

func (s *Service) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[WARN] cache: "+format, args...)
	}
}
