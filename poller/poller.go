// Package poller implements the match poller (spec component C5): a
// mode-driven periodic fetch that converts the provider's pull-only match
// data into push events, emitting matches:update only when content actually
// changed.
//
// Grounded on warming/service.go's deduper singleflight.Group field (here
// reused so a manual "fire now" call racing the ticker never double-fetches)
// and on ratecontrol.Controller's ticker-over-mutex-guarded-state shape for
// the idempotent Start/Stop contract.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"encore.app/pkg/models"
	"encore.app/pkg/pubsub"
	"encore.app/pkg/utils"
)

// activeInterval / devModeInterval are the two tick cadences spec.md §4.5
// names; the zero value (disabled) applies whenever mode is IDLE or
// UPCOMING and dev mode is off.
const (
	activeInterval  = 15 * time.Second
	devModeInterval = 5 * time.Second
)

// MatchesFetcher retrieves the current match list for a tournament, routed
// through C1/C4 (cache.GetOrFetch backed by provider.Client.Request).
type MatchesFetcher func(ctx context.Context, tournamentID string) ([]models.Match, error)

// Hint is the C3-derived snapshot the poller consults every tick to decide
// whether to run, which tournament to target, and which cadence to use.
type Hint struct {
	TournamentID string
	Active       bool // mode == ACTIVE
	DevMode      bool
}

// HintFn resolves the current hint; wired to ratecontrol.Controller.Status()
// by appcore via setter injection.
type HintFn func() Hint

// Publisher hands a detected delta off to the broadcast hub (C6). Wired to
// broadcast.Service.Publish by appcore; in tests a fake records calls.
type Publisher func(ctx context.Context, event pubsub.MatchesUpdatedEvent) error

// Poller runs the mode-driven tick loop described above.
type Poller struct {
	mu sync.Mutex

	fetch     MatchesFetcher
	hint      HintFn
	publish   Publisher
	logger    *log.Logger
	dedup     singleflight.Group

	running     bool
	interval    time.Duration
	stopCh      chan struct{}
	wg          sync.WaitGroup
	lastDigest  map[string]string // tournament id -> last observed digest
}

// New constructs a Poller. It does not start ticking until Start or
// Reconcile is called (appcore calls Reconcile on every ratecontrol mode or
// dev-mode change, which starts it while the mode is ACTIVE or dev mode is on).
func New(fetch MatchesFetcher, hint HintFn, publish Publisher, logger *log.Logger) *Poller {
	return &Poller{
		fetch:      fetch,
		hint:       hint,
		publish:    publish,
		logger:     logger,
		lastDigest: make(map[string]string),
	}
}

// DesiredInterval returns the cadence the current hint calls for, or 0 if
// polling should be disabled (spec.md §4.5's schedule contract).
func DesiredInterval(h Hint) time.Duration {
	if h.DevMode {
		return devModeInterval
	}
	if h.Active {
		return activeInterval
	}
	return 0
}

// Reconcile is called whenever C3's mode or dev-mode state changes. It
// starts, restarts at a new interval, or stops the ticker as needed,
// idempotently.
func (p *Poller) Reconcile() {
	want := DesiredInterval(p.hint())

	p.mu.Lock()
	defer p.mu.Unlock()

	if want == 0 {
		if p.running {
			p.stopLocked()
		}
		return
	}
	if p.running && p.interval == want {
		return
	}
	if p.running {
		p.stopLocked()
	}
	p.startLocked(want)
}

// Start begins ticking at interval if not already running at that interval.
func (p *Poller) Start(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running && p.interval == interval {
		return
	}
	if p.running {
		p.stopLocked()
	}
	p.startLocked(interval)
}

// Stop halts ticking. A tick already in flight is allowed to finish
// (spec.md §4.5 "Cancellation"); no further ticks are scheduled.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.stopLocked()
	}
}

func (p *Poller) startLocked(interval time.Duration) {
	p.interval = interval
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.tick(context.Background())
			case <-stopCh:
				return
			}
		}
	}()
}

func (p *Poller) stopLocked() {
	p.running = false
	close(p.stopCh)
	// wg.Wait must not hold p.mu, or a tick's FireNow call (which also
	// locks p.mu) could deadlock against this Stop call.
	p.mu.Unlock()
	p.wg.Wait()
	p.mu.Lock()
}

// FireNow runs one tick immediately, outside the regular schedule. C7's
// mutation paths call this after a match-affecting write so the visible
// latency from operator action to display update stays low (spec.md §4.5
// "Immediate repoll": roughly one round trip plus a small settle, about 4s).
// Concurrent calls (a manual fire racing the ticker) coalesce into a single
// fetch via singleflight, keyed by tournament id.
func (p *Poller) FireNow(ctx context.Context) {
	p.tick(ctx)
}

func (p *Poller) tick(ctx context.Context) {
	h := p.hint()
	if h.TournamentID == "" {
		return
	}

	_, _, _ = p.dedup.Do(h.TournamentID, func() (interface{}, error) {
		p.runTick(ctx, h.TournamentID)
		return nil, nil
	})
}

func (p *Poller) runTick(ctx context.Context, tournamentID string) {
	matches, err := p.fetch(ctx, tournamentID)
	if err != nil {
		p.logf("tick fetch failed for tournament %s: %v", tournamentID, err)
		return
	}

	digest := digestOf(matches)

	p.mu.Lock()
	last := p.lastDigest[tournamentID]
	changed := digest != last
	if changed {
		p.lastDigest[tournamentID] = digest
	}
	p.mu.Unlock()

	if !changed {
		return
	}

	event := buildEvent(tournamentID, digest, matches)
	if err := p.publish(ctx, event); err != nil {
		p.logf("publish failed for tournament %s: %v", tournamentID, err)
	}
}

func digestOf(matches []models.Match) string {
	tuples := make([]utils.MatchDigestTuple, 0, len(matches))
	for _, m := range matches {
		var underway int64
		if !m.UnderwayAt.IsZero() {
			underway = m.UnderwayAt.Unix()
		}
		tuples = append(tuples, utils.MatchDigestTuple{
			ParticipantID: m.Player1ID + "/" + m.Player2ID,
			Score1:        m.Score1,
			Score2:        m.Score2,
			State:         m.State,
			WinnerID:      m.WinnerID,
			StationID:     m.StationID,
			UnderwayAt:    underway,
		})
	}
	return utils.MatchDigest(tuples)
}

// buildEvent computes the broadcast metadata spec.md §4.5 step 4 names:
// next-match id/players, counts by state, and progress percent.
func buildEvent(tournamentID, digest string, matches []models.Match) pubsub.MatchesUpdatedEvent {
	countsByState := make(map[string]int)
	completed := 0
	var nextMatchID string
	var nextMatchPlayers []string

	for _, m := range matches {
		countsByState[m.State]++
		if m.State == "complete" {
			completed++
		}
		if nextMatchID == "" && m.State == "open" {
			nextMatchID = m.ID
			nextMatchPlayers = []string{m.Player1ID, m.Player2ID}
		}
	}

	progress := 0.0
	if len(matches) > 0 {
		progress = float64(completed) / float64(len(matches)) * 100
	}

	return pubsub.MatchesUpdatedEvent{
		Version:          pubsub.EventVersion1,
		TournamentID:     tournamentID,
		Digest:           digest,
		DetectedAt:       time.Now(),
		NextMatchID:      nextMatchID,
		NextMatchPlayers: nextMatchPlayers,
		CountsByState:    countsByState,
		CompletedCount:   completed,
		ProgressPercent:  progress,
	}
}

func (p *Poller) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf("[WARN] poller: "+format, args...)
	}
}
