// Package mutation implements the mutation dispatcher (spec component C7):
// the full write-side catalogue (match state, score/winner, station
// assignment, participant lifecycle, tournament lifecycle), each mutation
// following the same five-step contract (spec.md §4.7):
//
//  1. GetOrFetch(..., ForWrite:true) a fresh baseline; abort on failure.
//  2. Build the provider request body (encode.go).
//  3. Dispatch via the provider client (C4).
//  4. On success, invalidate every cache entry keyed by the tournament, plus
//     the tournaments list for lifecycle actions.
//  5. Trigger the match poller's immediate repoll (match mutations) or
//     schedule the rate controller's recheck at +500ms (lifecycle mutations).
//
// Grounded on invalidation/service.go's InvalidateKey/InvalidatePattern,
// which already implement "mutate, then invalidate, then publish" as a
// single synchronous handler body with metrics counters; this package
// generalizes that shape to provider-side writes instead of cache purges.
package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"encore.app/cache"
	"encore.app/pkg/models"
	"encore.app/pkg/pubsub"
	"encore.app/provider"
)

// providerClient is the narrow surface this package needs from provider.Client.
type providerClient interface {
	Request(ctx context.Context, method, endpoint string, body interface{}) (*provider.Response, error)
}

// cacheStore is the narrow surface this package needs from cache.Service.
type cacheStore interface {
	GetOrFetch(ctx context.Context, cacheType models.CacheType, key string, fetch cache.Fetcher, opts cache.Options) (json.RawMessage, *models.Meta, error)
	Invalidate(ctx context.Context, cacheType models.CacheType, key string) error
	InvalidateTournament(ctx context.Context, tournamentID string) error
}

// matchRepoller is the narrow surface this package needs from poller.Service.
type matchRepoller interface {
	FireNow(ctx context.Context)
}

// recheckScheduler is the narrow surface this package needs from ratecontrol.Controller.
type recheckScheduler interface {
	ScheduleRecheck()
}

// lifecyclePublisher is the narrow surface this package needs from broadcast.Service.
type lifecyclePublisher interface {
	PublishLifecycle(ctx context.Context, event pubsub.TournamentLifecycleEvent) error
}

// auditWriter is the narrow surface this package needs from AuditLogger.
type auditWriter interface {
	Record(ctx context.Context, rec MutationRecord) error
}

// Dispatcher implements C7. Every exported method builds a plan and runs it
// through execute, which owns the five-step contract.
type Dispatcher struct {
	client  providerClient
	cache   cacheStore
	poller  matchRepoller
	rate    recheckScheduler
	publish lifecyclePublisher
	audit   auditWriter
	logger  *log.Logger
}

// New constructs a Dispatcher. poller, rate, publish, and audit may be nil
// in tests that don't exercise the corresponding step.
func New(client providerClient, store cacheStore, poller matchRepoller, rate recheckScheduler, publish lifecyclePublisher, audit auditWriter, logger *log.Logger) *Dispatcher {
	return &Dispatcher{client: client, cache: store, poller: poller, rate: rate, publish: publish, audit: audit, logger: logger}
}

// plan captures everything execute needs to carry out one mutation.
type plan struct {
	tournamentID     string
	baselineType     models.CacheType
	baselineEndpoint string // "" skips the ForWrite baseline refresh (e.g. tournament create)
	method           string
	endpoint         string
	body             *jsonAPIBody // nil means no request body is sent (DELETE, randomize, etc.)
	triggeredBy      string
	isMatchMutation  bool
	isLifecycle      bool
	lifecycleAction  pubsub.LifecycleAction
}

func ref(b jsonAPIBody) *jsonAPIBody { return &b }

func (d *Dispatcher) fetchRaw(method, endpoint string) cache.Fetcher {
	return func(ctx context.Context) (json.RawMessage, int, error) {
		resp, err := d.client.Request(ctx, method, endpoint, nil)
		if err != nil {
			return nil, 0, err
		}
		return json.RawMessage(resp.Body), resp.Status, nil
	}
}

// execute runs the five-step contract for p and returns the provider
// response on success.
func (d *Dispatcher) execute(ctx context.Context, p plan) (*provider.Response, error) {
	start := time.Now()
	requestID := uuid.NewString()

	if p.baselineEndpoint != "" {
		_, _, err := d.cache.GetOrFetch(ctx, p.baselineType, p.tournamentID, d.fetchRaw("GET", p.baselineEndpoint), cache.Options{ForWrite: true})
		if err != nil {
			d.recordAudit(ctx, p, requestID, false, err, time.Since(start))
			return nil, fmt.Errorf("mutation: baseline refresh failed: %w", err)
		}
	}

	var reqBody interface{}
	if p.body != nil {
		reqBody = *p.body
	}
	resp, err := d.client.Request(ctx, p.method, p.endpoint, reqBody)
	latency := time.Since(start)
	if err != nil {
		d.recordAudit(ctx, p, requestID, false, err, latency)
		return nil, err
	}

	if p.tournamentID != "" {
		if ierr := d.cache.InvalidateTournament(ctx, p.tournamentID); ierr != nil {
			d.logf("invalidate tournament %s after mutation degraded: %v", p.tournamentID, ierr)
		}
	}
	if p.isLifecycle {
		if ierr := d.cache.Invalidate(ctx, models.CacheTournamentsList, "list"); ierr != nil {
			d.logf("invalidate tournaments_list after lifecycle mutation degraded: %v", ierr)
		}
	}

	if p.isMatchMutation && d.poller != nil {
		d.poller.FireNow(ctx)
	}
	if p.isLifecycle {
		if d.rate != nil {
			d.rate.ScheduleRecheck()
		}
		if d.publish != nil {
			event := pubsub.TournamentLifecycleEvent{
				Version:      pubsub.EventVersion1,
				TournamentID: p.tournamentID,
				Action:       p.lifecycleAction,
				TriggeredAt:  time.Now(),
				RequestID:    requestID,
			}
			if perr := d.publish.PublishLifecycle(ctx, event); perr != nil {
				d.logf("publish lifecycle event degraded: %v", perr)
			}
		}
	}

	d.recordAudit(ctx, p, requestID, true, nil, latency)
	return resp, nil
}

func (d *Dispatcher) recordAudit(ctx context.Context, p plan, requestID string, success bool, err error, latency time.Duration) {
	if d.audit == nil {
		return
	}
	rec := MutationRecord{
		Endpoint:     p.endpoint,
		Method:       p.method,
		TournamentID: p.tournamentID,
		TriggeredBy:  p.triggeredBy,
		Success:      success,
		LatencyMS:    latency.Milliseconds(),
		RequestID:    requestID,
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	if aerr := d.audit.Record(ctx, rec); aerr != nil {
		d.logf("audit record degraded: %v", aerr)
	}
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Printf("[WARN] mutation: "+format, args...)
	}
}

// --- Match state changes (change_state sub-endpoint) ---

func (d *Dispatcher) changeState(ctx context.Context, tournamentID, matchID, state, triggeredBy string) (*provider.Response, error) {
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     models.CacheMatches,
		baselineEndpoint: fmt.Sprintf("/tournaments/%s/matches", tournamentID),
		method:           "PUT",
		endpoint:         fmt.Sprintf("/tournaments/%s/matches/%s/change_state", tournamentID, matchID),
		body:             ref(encodeChangeState(state)),
		triggeredBy:      triggeredBy,
		isMatchMutation:  true,
	})
}

func (d *Dispatcher) MarkUnderway(ctx context.Context, tournamentID, matchID, triggeredBy string) (*provider.Response, error) {
	return d.changeState(ctx, tournamentID, matchID, "mark_as_underway", triggeredBy)
}

func (d *Dispatcher) UnmarkUnderway(ctx context.Context, tournamentID, matchID, triggeredBy string) (*provider.Response, error) {
	return d.changeState(ctx, tournamentID, matchID, "unmark_as_underway", triggeredBy)
}

func (d *Dispatcher) ReopenMatch(ctx context.Context, tournamentID, matchID, triggeredBy string) (*provider.Response, error) {
	return d.changeState(ctx, tournamentID, matchID, "reopen", triggeredBy)
}

// --- Score / winner (main match endpoint) ---

func (d *Dispatcher) updateMatch(ctx context.Context, tournamentID, matchID string, entries []models.MatchSetEntry, triggeredBy string) (*provider.Response, error) {
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     models.CacheMatches,
		baselineEndpoint: fmt.Sprintf("/tournaments/%s/matches", tournamentID),
		method:           "PUT",
		endpoint:         fmt.Sprintf("/tournaments/%s/matches/%s", tournamentID, matchID),
		body:             ref(encodeMatchSet(entries)),
		triggeredBy:      triggeredBy,
		isMatchMutation:  true,
	})
}

// UpdateScore records per-participant scores without declaring a winner.
func (d *Dispatcher) UpdateScore(ctx context.Context, tournamentID, matchID string, entries []models.MatchSetEntry, triggeredBy string) (*provider.Response, error) {
	return d.updateMatch(ctx, tournamentID, matchID, entries, triggeredBy)
}

// DeclareWinner records scores and advances the winner. The provider
// rejects a winner declaration without scores (spec.md §4.7), so this is
// validated pre-flight as a validation_error rather than sent and rejected.
func (d *Dispatcher) DeclareWinner(ctx context.Context, tournamentID, matchID string, entries []models.MatchSetEntry, triggeredBy string) (*provider.Response, error) {
	for _, e := range entries {
		if e.ScoreSet == "" {
			return nil, &ValidationError{Reason: "declare winner requires a score_set for every participant"}
		}
	}
	return d.updateMatch(ctx, tournamentID, matchID, entries, triggeredBy)
}

// ClearScores resets every participant's score line on a match.
func (d *Dispatcher) ClearScores(ctx context.Context, tournamentID, matchID string, triggeredBy string) (*provider.Response, error) {
	return d.updateMatch(ctx, tournamentID, matchID, []models.MatchSetEntry{}, triggeredBy)
}

// DisqualifyParticipant forfeits a match to the opponent.
func (d *Dispatcher) DisqualifyParticipant(ctx context.Context, tournamentID, matchID, dqParticipantID, opponentID, triggeredBy string) (*provider.Response, error) {
	advancingTrue, advancingFalse := true, false
	entries := []models.MatchSetEntry{
		{ParticipantID: opponentID, ScoreSet: "1-0", Advancing: &advancingTrue},
		{ParticipantID: dqParticipantID, ScoreSet: "0-1", Advancing: &advancingFalse},
	}
	return d.updateMatch(ctx, tournamentID, matchID, entries, triggeredBy)
}

// --- Station assignment ---

func (d *Dispatcher) AssignStation(ctx context.Context, tournamentID, stationID, matchID, triggeredBy string) (*provider.Response, error) {
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     models.CacheStations,
		baselineEndpoint: fmt.Sprintf("/tournaments/%s/stations", tournamentID),
		method:           "PUT",
		endpoint:         fmt.Sprintf("/tournaments/%s/stations/%s", tournamentID, stationID),
		body:             ref(encodeStationAssign(matchID)),
		triggeredBy:      triggeredBy,
		isMatchMutation:  true,
	})
}

func (d *Dispatcher) UnassignStation(ctx context.Context, tournamentID, stationID, triggeredBy string) (*provider.Response, error) {
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     models.CacheStations,
		baselineEndpoint: fmt.Sprintf("/tournaments/%s/stations", tournamentID),
		method:           "PUT",
		endpoint:         fmt.Sprintf("/tournaments/%s/stations/%s", tournamentID, stationID),
		body:             ref(encodeStationAssign("")),
		triggeredBy:      triggeredBy,
		isMatchMutation:  true,
	})
}

// --- Participant lifecycle ---

func (d *Dispatcher) participantBaseline(tournamentID string) (models.CacheType, string) {
	return models.CacheParticipants, fmt.Sprintf("/tournaments/%s/participants", tournamentID)
}

func (d *Dispatcher) AddParticipant(ctx context.Context, tournamentID, name string, seed int, triggeredBy string) (*provider.Response, error) {
	cacheType, baselineEndpoint := d.participantBaseline(tournamentID)
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     cacheType,
		baselineEndpoint: baselineEndpoint,
		method:           "POST",
		endpoint:         fmt.Sprintf("/tournaments/%s/participants", tournamentID),
		body:             ref(encodeParticipant(name, seed)),
		triggeredBy:      triggeredBy,
	})
}

func (d *Dispatcher) UpdateParticipant(ctx context.Context, tournamentID, participantID, name string, seed int, triggeredBy string) (*provider.Response, error) {
	cacheType, baselineEndpoint := d.participantBaseline(tournamentID)
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     cacheType,
		baselineEndpoint: baselineEndpoint,
		method:           "PUT",
		endpoint:         fmt.Sprintf("/tournaments/%s/participants/%s", tournamentID, participantID),
		body:             ref(encodeParticipant(name, seed)),
		triggeredBy:      triggeredBy,
	})
}

func (d *Dispatcher) DeleteParticipant(ctx context.Context, tournamentID, participantID, triggeredBy string) (*provider.Response, error) {
	cacheType, baselineEndpoint := d.participantBaseline(tournamentID)
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     cacheType,
		baselineEndpoint: baselineEndpoint,
		method:           "DELETE",
		endpoint:         fmt.Sprintf("/tournaments/%s/participants/%s", tournamentID, participantID),
		triggeredBy:      triggeredBy,
	})
}

// BulkAddParticipants adds several participants in one request, matching the
// provider's bulk_add sub-endpoint.
func (d *Dispatcher) BulkAddParticipants(ctx context.Context, tournamentID string, names []string, triggeredBy string) (*provider.Response, error) {
	cacheType, baselineEndpoint := d.participantBaseline(tournamentID)
	type bulkAttributes struct {
		Names []string `json:"names"`
	}
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     cacheType,
		baselineEndpoint: baselineEndpoint,
		method:           "POST",
		endpoint:         fmt.Sprintf("/tournaments/%s/participants/bulk_add", tournamentID),
		body:             ref(wrap("Participant", bulkAttributes{Names: names})),
		triggeredBy:      triggeredBy,
	})
}

func (d *Dispatcher) RandomizeSeeds(ctx context.Context, tournamentID, triggeredBy string) (*provider.Response, error) {
	cacheType, baselineEndpoint := d.participantBaseline(tournamentID)
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     cacheType,
		baselineEndpoint: baselineEndpoint,
		method:           "POST",
		endpoint:         fmt.Sprintf("/tournaments/%s/participants/randomize", tournamentID),
		triggeredBy:      triggeredBy,
	})
}

func (d *Dispatcher) CheckIn(ctx context.Context, tournamentID, participantID, triggeredBy string) (*provider.Response, error) {
	cacheType, baselineEndpoint := d.participantBaseline(tournamentID)
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     cacheType,
		baselineEndpoint: baselineEndpoint,
		method:           "POST",
		endpoint:         fmt.Sprintf("/tournaments/%s/participants/%s/process", tournamentID, participantID),
		body:             ref(encodeParticipantProcess("check_in")),
		triggeredBy:      triggeredBy,
	})
}

func (d *Dispatcher) UndoCheckIn(ctx context.Context, tournamentID, participantID, triggeredBy string) (*provider.Response, error) {
	cacheType, baselineEndpoint := d.participantBaseline(tournamentID)
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     cacheType,
		baselineEndpoint: baselineEndpoint,
		method:           "POST",
		endpoint:         fmt.Sprintf("/tournaments/%s/participants/%s/process", tournamentID, participantID),
		body:             ref(encodeParticipantProcess("undo_check_in")),
		triggeredBy:      triggeredBy,
	})
}

// --- Tournament lifecycle ---

// CreateTournament has no existing baseline to refresh.
func (d *Dispatcher) CreateTournament(ctx context.Context, update TournamentUpdate, triggeredBy string) (*provider.Response, error) {
	return d.execute(ctx, plan{
		method:      "POST",
		endpoint:    "/tournaments",
		body:        ref(encodeTournamentUpdate(update)),
		triggeredBy: triggeredBy,
	})
}

func (d *Dispatcher) UpdateTournament(ctx context.Context, tournamentID string, update TournamentUpdate, triggeredBy string) (*provider.Response, error) {
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     models.CacheTournamentDetails,
		baselineEndpoint: fmt.Sprintf("/tournaments/%s", tournamentID),
		method:           "PUT",
		endpoint:         fmt.Sprintf("/tournaments/%s", tournamentID),
		body:             ref(encodeTournamentUpdate(update)),
		triggeredBy:      triggeredBy,
	})
}

func (d *Dispatcher) lifecycleProcess(ctx context.Context, tournamentID, action string, lifecycleAction pubsub.LifecycleAction, triggeredBy string) (*provider.Response, error) {
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     models.CacheTournamentDetails,
		baselineEndpoint: fmt.Sprintf("/tournaments/%s", tournamentID),
		method:           "POST",
		endpoint:         fmt.Sprintf("/tournaments/%s/process", tournamentID),
		body:             ref(encodeProcess(action)),
		triggeredBy:      triggeredBy,
		isLifecycle:      true,
		lifecycleAction:  lifecycleAction,
	})
}

func (d *Dispatcher) StartTournament(ctx context.Context, tournamentID, triggeredBy string) (*provider.Response, error) {
	return d.lifecycleProcess(ctx, tournamentID, "start", pubsub.LifecycleStart, triggeredBy)
}

func (d *Dispatcher) ResetTournament(ctx context.Context, tournamentID, triggeredBy string) (*provider.Response, error) {
	return d.lifecycleProcess(ctx, tournamentID, "reset", pubsub.LifecycleReset, triggeredBy)
}

func (d *Dispatcher) CompleteTournament(ctx context.Context, tournamentID, triggeredBy string) (*provider.Response, error) {
	return d.lifecycleProcess(ctx, tournamentID, "finalize", pubsub.LifecycleComplete, triggeredBy)
}

func (d *Dispatcher) DeleteTournament(ctx context.Context, tournamentID, triggeredBy string) (*provider.Response, error) {
	return d.execute(ctx, plan{
		tournamentID:     tournamentID,
		baselineType:     models.CacheTournamentDetails,
		baselineEndpoint: fmt.Sprintf("/tournaments/%s", tournamentID),
		method:           "DELETE",
		endpoint:         fmt.Sprintf("/tournaments/%s", tournamentID),
		triggeredBy:      triggeredBy,
		isLifecycle:      true,
		lifecycleAction:  pubsub.LifecycleDelete,
	})
}
