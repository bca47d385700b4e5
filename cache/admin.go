package cache

import (
	"context"
	"errors"

	"encore.app/pkg/models"
)

// Admin endpoints for operators (spec.md §6 "Cache-management surface").
// Grounded on cache-manager/service.go's exported Encore endpoints
// (GetMetrics/Invalidate), generalized to the typed cache and supplemented
// with InvalidateTournament and TournamentSummary from the "complete repo"
// expansion (SPEC_FULL.md §4).

// StatsResponse mirrors models.CacheStatsSnapshot for the admin surface.
type StatsResponse struct {
	Snapshot models.CacheStatsSnapshot `json:"snapshot"`
}

// Stats returns current per-type and total cache statistics.
//
//encore:api public method=GET path=/cache/stats
func Stats(ctx context.Context) (*StatsResponse, error) {
	if svc == nil {
		return nil, errors.New("cache: service not initialized")
	}
	snap, err := svc.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{Snapshot: snap}, nil
}

// InvalidateRequest names what to purge: a type, and optionally a key.
type InvalidateRequest struct {
	Type models.CacheType `json:"type"`
	Key  string           `json:"key,omitempty"`
}

// InvalidateResponse reports completion; idempotent by construction.
type InvalidateResponse struct {
	OK bool `json:"ok"`
}

// Invalidate purges a single entry, or every entry of a type when Key is
// empty.
//
//encore:api public method=POST path=/cache/invalidate
func Invalidate(ctx context.Context, req *InvalidateRequest) (*InvalidateResponse, error) {
	if svc == nil {
		return nil, errors.New("cache: service not initialized")
	}
	if !req.Type.Valid() {
		return nil, errors.New("cache: unknown cache type")
	}
	if err := svc.Invalidate(ctx, req.Type, req.Key); err != nil {
		return nil, err
	}
	return &InvalidateResponse{OK: true}, nil
}

// InvalidateTournamentRequest names the tournament whose caches to purge.
type InvalidateTournamentRequest struct {
	TournamentID string `json:"tournament_id"`
}

// InvalidateTournament purges every cache entry keyed by TournamentID
// across matches, participants, stations, and details.
//
//encore:api public method=POST path=/cache/invalidate-tournament
func InvalidateTournament(ctx context.Context, req *InvalidateTournamentRequest) (*InvalidateResponse, error) {
	if svc == nil {
		return nil, errors.New("cache: service not initialized")
	}
	if err := svc.InvalidateTournament(ctx, req.TournamentID); err != nil {
		return nil, err
	}
	return &InvalidateResponse{OK: true}, nil
}

// ClearAllResponse reports how many rows were removed.
type ClearAllResponse struct {
	Removed int64 `json:"removed"`
}

// ClearAll wipes every cache entry regardless of type. Intended for
// operator-triggered full resets, not normal operation.
//
//encore:api public method=POST path=/cache/clear-all
func ClearAll(ctx context.Context) (*ClearAllResponse, error) {
	if svc == nil {
		return nil, errors.New("cache: service not initialized")
	}
	var total int64
	for _, t := range []models.CacheType{
		models.CacheTournamentsList, models.CacheMatches,
		models.CacheParticipants, models.CacheStations, models.CacheTournamentDetails,
	} {
		n, err := svc.store.DeleteType(ctx, t)
		if err != nil {
			return nil, err
		}
		total += n
	}
	return &ClearAllResponse{Removed: total}, nil
}

// TournamentSummaryRequest names the tournament to summarize.
type TournamentSummaryRequest struct {
	TournamentID string `json:"tournament_id"`
}

// TournamentSummaryResponse reports which tournament-scoped cache types
// currently hold an entry for the given id, and their freshness.
type TournamentSummaryResponse struct {
	TournamentID string                    `json:"tournament_id"`
	Entries      []models.CacheTypeSummary `json:"entries"`
}

// TournamentSummary returns the cache status across all tournament-scoped
// types for one tournament id — useful for operator debugging of stale
// display state.
//
//encore:api public method=GET path=/cache/tournament-summary/:tournamentID
func TournamentSummary(ctx context.Context, tournamentID string) (*TournamentSummaryResponse, error) {
	if svc == nil {
		return nil, errors.New("cache: service not initialized")
	}
	resp := &TournamentSummaryResponse{TournamentID: tournamentID}
	for _, t := range []models.CacheType{
		models.CacheMatches, models.CacheParticipants,
		models.CacheStations, models.CacheTournamentDetails,
	} {
		entry, ok, err := svc.store.Get(ctx, t, tournamentID)
		if err != nil {
			return nil, err
		}
		summary := models.CacheTypeSummary{Type: t, Present: ok}
		if ok {
			summary.CachedAt = &entry.CachedAt
			summary.ExpiresAt = &entry.ExpiresAt
			summary.ItemCount = entry.ItemCount
		}
		resp.Entries = append(resp.Entries, summary)
	}
	return resp, nil
}
