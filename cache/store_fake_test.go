package cache

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"encore.app/pkg/models"
)

// fakeStore is an in-memory dataStore used by service_test.go, mirroring
// the teacher's MockRemoteCache/MockOriginFetcher style of hand-rolled
// fakes over a narrow interface rather than a real database handle.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	stats   map[models.CacheType]*StatsRow
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: make(map[string]*models.CacheEntry),
		stats:   make(map[models.CacheType]*StatsRow),
	}
}

func fakeKey(cacheType models.CacheType, key string) string {
	return string(cacheType) + "\x00" + key
}

func (f *fakeStore) Get(ctx context.Context, cacheType models.CacheType, key string) (*models.CacheEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	e, ok := f.entries[fakeKey(cacheType, key)]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

func (f *fakeStore) Upsert(ctx context.Context, e *models.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.entries[fakeKey(e.Type, e.Key)] = &cp
	return nil
}

func (f *fakeStore) DeleteKey(ctx context.Context, cacheType models.CacheType, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fakeKey(cacheType, key)
	if _, ok := f.entries[k]; !ok {
		return false, nil
	}
	delete(f.entries, k)
	return true, nil
}

func (f *fakeStore) DeleteType(ctx context.Context, cacheType models.CacheType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, e := range f.entries {
		if e.Type == cacheType {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteKeyPrefix(ctx context.Context, cacheType models.CacheType, prefix string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, e := range f.entries {
		if e.Type == cacheType && strings.HasPrefix(e.Key, prefix) {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteTournament(ctx context.Context, tournamentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	scoped := map[models.CacheType]bool{
		models.CacheMatches: true, models.CacheParticipants: true,
		models.CacheStations: true, models.CacheTournamentDetails: true,
	}
	var n int64
	for k, e := range f.entries {
		if scoped[e.Type] && e.Key == tournamentID {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, e := range f.entries {
		if now.After(e.ExpiresAt) {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountByType(ctx context.Context, cacheType models.CacheType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.Type == cacheType {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RecordHit(ctx context.Context, cacheType models.CacheType, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.statRow(cacheType)
	r.Hits++
	r.LastHit = sql.NullTime{Time: at, Valid: true}
}

func (f *fakeStore) RecordMiss(ctx context.Context, cacheType models.CacheType, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.statRow(cacheType)
	r.Misses++
	r.LastMiss = sql.NullTime{Time: at, Valid: true}
}

func (f *fakeStore) RecordSavedCall(ctx context.Context, cacheType models.CacheType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statRow(cacheType).Saved++
}

func (f *fakeStore) LoadStats(ctx context.Context, cacheType models.CacheType) (StatsRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.statRow(cacheType), nil
}

// statRow must be called with f.mu held.
func (f *fakeStore) statRow(cacheType models.CacheType) *StatsRow {
	r, ok := f.stats[cacheType]
	if !ok {
		r = &StatsRow{}
		f.stats[cacheType] = r
	}
	return r
}
