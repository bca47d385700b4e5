// Package ratecontrol implements the adaptive rate controller (spec
// component C3): a {IDLE, UPCOMING, ACTIVE} mode state machine driving the
// provider request gate's effective rate and the match poller's interval.
//
// Grounded on monitoring/service.go's background-goroutine-plus-mutex-guarded-
// state shape and warming/cron.go's Scheduler. The long check interval runs
// on a plain time.Ticker (encore.dev/cron is not used); the short "recheck
// after a lifecycle mutation" hook is an explicit one-shot schedule per
// Design Notes §9.
package ratecontrol

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"encore.app/pkg/models"
)

// Mode is one of the three classification states (spec.md §4.3).
type Mode string

const (
	ModeIdle     Mode = "IDLE"
	ModeUpcoming Mode = "UPCOMING"
	ModeActive   Mode = "ACTIVE"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeIdle, ModeUpcoming, ModeActive:
		return true
	}
	return false
}

// Config holds the tunable thresholds, mirroring the teacher's per-service
// Config + DefaultConfig() pattern (monitoring.DefaultConfig, warming.DefaultConfig).
type Config struct {
	CheckInterval   time.Duration
	UpcomingWindow  time.Duration
	StaleAfter      time.Duration
	ModeRates       map[Mode]int // req/min ceiling per mode
	ManualCap       int          // 0 means "no cap beyond mode_rates"
	DevModeDuration time.Duration
}

// DefaultConfig returns the spec's defaults (8h check interval, 7-day stale
// filter, rate caps saturating at 60 req/min, floor at 1).
func DefaultConfig() Config {
	return Config{
		CheckInterval:  8 * time.Hour,
		UpcomingWindow: 30 * time.Minute,
		StaleAfter:     7 * 24 * time.Hour,
		ModeRates: map[Mode]int{
			ModeIdle:     2,
			ModeUpcoming: 12,
			ModeActive:   60,
		},
		ManualCap:       0,
		DevModeDuration: 3 * time.Hour,
	}
}

// TournamentFetcher retrieves the current tournament set from the provider
// (via C1/C4), injected so Check() is testable without a live provider.
type TournamentFetcher func(ctx context.Context) ([]models.Tournament, error)

// Status is the read-only snapshot returned by the admin surface (spec.md §6).
type Status struct {
	Mode               Mode       `json:"mode"`
	ManualOverride     *Mode      `json:"manual_override,omitempty"`
	EffectiveRate      int        `json:"effective_rate"`
	NextCheck          time.Time  `json:"next_check"`
	DevModeActive      bool       `json:"dev_mode_active"`
	DevModeExpiresAt   *time.Time `json:"dev_mode_expires_at,omitempty"`
	ActiveTournamentID string     `json:"active_tournament_id,omitempty"`
}

// Controller implements C3. All state is guarded by mu; Check() is the only
// operation that performs I/O (via fetch).
type Controller struct {
	mu sync.Mutex

	cfg    Config
	mode   Mode
	override *Mode

	nextCheck time.Time

	devModeActive   bool
	devModeExpires  time.Time

	activeTournamentID string

	fetch    TournamentFetcher
	onModeChange func(Mode) // notifies C5 to (re)start/stop/retime polling
	onDevMode    func(bool) // notifies C5 to tighten/relax poll interval

	scheduler *Scheduler
	logger    *log.Logger

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Controller in IDLE mode and starts its periodic ticker.
func New(cfg Config, fetch TournamentFetcher, logger *log.Logger) *Controller {
	c := &Controller{
		cfg:       cfg,
		mode:      ModeIdle,
		nextCheck: time.Now().Add(cfg.CheckInterval),
		fetch:     fetch,
		logger:    logger,
		scheduler: NewScheduler(),
		stopCh:    make(chan struct{}),
	}
	c.startTicker()
	return c
}

// SetModeChangeFn and SetDevModeFn wire C5's hooks in (setter-injection,
// matching cache.Service.SetActiveModeFn).
func (c *Controller) SetModeChangeFn(fn func(Mode)) {
	c.mu.Lock()
	c.onModeChange = fn
	c.mu.Unlock()
}

func (c *Controller) SetDevModeFn(fn func(bool)) {
	c.mu.Lock()
	c.onDevMode = fn
	c.mu.Unlock()
}

func (c *Controller) startTicker() {
	c.ticker = time.NewTicker(c.cfg.CheckInterval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ticker.C:
				_ = c.Check(context.Background())
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts the periodic ticker and any pending one-shot schedule.
func (c *Controller) Stop() {
	close(c.stopCh)
	c.ticker.Stop()
	c.scheduler.Stop()
	c.wg.Wait()
}

// CurrentMode honors a manual override if set.
func (c *Controller) CurrentMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentModeLocked()
}

func (c *Controller) currentModeLocked() Mode {
	if c.override != nil {
		return *c.override
	}
	return c.mode
}

// EffectiveRate returns min(mode_rates[mode], manual_cap), ignored entirely
// when dev mode is active (callers should consult DevModeActive first via
// Status, or rely on rategate.Gate.MinDelay which already special-cases dev
// mode upstream of this value).
func (c *Controller) EffectiveRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveRateLocked()
}

func (c *Controller) effectiveRateLocked() int {
	rate := c.cfg.ModeRates[c.currentModeLocked()]
	if rate <= 0 {
		rate = 1
	}
	if c.cfg.ManualCap > 0 && c.cfg.ManualCap < rate {
		rate = c.cfg.ManualCap
	}
	if rate > 60 {
		rate = 60
	}
	if rate < 1 {
		rate = 1
	}
	return rate
}

// DevModeActive reports whether dev mode is currently in effect, lazily
// re-checking expiry on every call (Open Question resolution, spec.md §9):
// a paused process resumes with correct behavior immediately rather than
// waiting for the background timer to fire.
func (c *Controller) DevModeActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devModeActiveLocked()
}

func (c *Controller) devModeActiveLocked() bool {
	if !c.devModeActive {
		return false
	}
	if time.Now().After(c.devModeExpires) {
		c.devModeActive = false
		if c.onDevMode != nil {
			go c.onDevMode(false)
		}
		return false
	}
	return true
}

// Status returns the full admin snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Mode:               c.currentModeLocked(),
		EffectiveRate:      c.effectiveRateLocked(),
		NextCheck:          c.nextCheck,
		DevModeActive:      c.devModeActiveLocked(),
		ActiveTournamentID: c.activeTournamentID,
	}
	if c.override != nil {
		m := *c.override
		s.ManualOverride = &m
	}
	if s.DevModeActive {
		t := c.devModeExpires
		s.DevModeExpiresAt = &t
	}
	return s
}

// SetOverride pins the mode, or clears the override and immediately re-runs
// Check() when mode is the sentinel "auto".
func (c *Controller) SetOverride(ctx context.Context, mode string) error {
	if mode == "auto" {
		c.mu.Lock()
		c.override = nil
		c.mu.Unlock()
		return c.Check(ctx)
	}
	m := Mode(mode)
	if !m.Valid() {
		return fmt.Errorf("ratecontrol: unknown mode %q", mode)
	}
	c.mu.Lock()
	prev := c.currentModeLocked()
	c.override = &m
	changed := prev != m
	onChange := c.onModeChange
	c.mu.Unlock()
	if changed && onChange != nil {
		onChange(m)
	}
	return nil
}

// EnableDevMode activates the 3h bypass and notifies C5.
func (c *Controller) EnableDevMode() {
	c.mu.Lock()
	c.devModeActive = true
	c.devModeExpires = time.Now().Add(c.cfg.DevModeDuration)
	onDevMode := c.onDevMode
	c.mu.Unlock()

	c.scheduler.ScheduleAfter("dev-mode-expiry", c.cfg.DevModeDuration, func() {
		c.DisableDevMode()
	})
	if onDevMode != nil {
		onDevMode(true)
	}
}

// DisableDevMode is the converse of EnableDevMode.
func (c *Controller) DisableDevMode() {
	c.mu.Lock()
	wasActive := c.devModeActive
	c.devModeActive = false
	onDevMode := c.onDevMode
	c.mu.Unlock()

	c.scheduler.Cancel("dev-mode-expiry")
	if wasActive && onDevMode != nil {
		onDevMode(false)
	}
}

// ScheduleRecheck implements the Design Notes §9 hook: C7's lifecycle
// mutation endpoints call this to trigger a Check() 500ms later rather than
// waiting out a full CheckInterval.
func (c *Controller) ScheduleRecheck() {
	c.scheduler.ScheduleAfter("lifecycle-recheck", 500*time.Millisecond, func() {
		_ = c.Check(context.Background())
	})
}

// Check implements the classification algorithm of spec.md §4.3: fetch
// tournaments, drop stale ones (started_at older than StaleAfter), then
// ACTIVE if any remaining tournament is underway, else UPCOMING if any
// starts within UpcomingWindow, else IDLE.
func (c *Controller) Check(ctx context.Context) error {
	if c.fetch == nil {
		return nil
	}
	tournaments, err := c.fetch(ctx)
	if err != nil {
		return fmt.Errorf("ratecontrol: check: %w", err)
	}

	now := time.Now()
	next := classify(tournaments, now, c.cfg.StaleAfter, c.cfg.UpcomingWindow)

	c.mu.Lock()
	prev := c.currentModeLocked()
	c.mode = next.mode
	c.activeTournamentID = next.activeTournamentID
	c.nextCheck = now.Add(c.cfg.CheckInterval)
	effective := c.currentModeLocked()
	onChange := c.onModeChange
	c.mu.Unlock()

	if prev != effective && onChange != nil {
		onChange(effective)
	}
	return nil
}

type classification struct {
	mode               Mode
	activeTournamentID string
}

func classify(tournaments []models.Tournament, now time.Time, staleAfter, upcomingWindow time.Duration) classification {
	var upcomingCandidate string
	for _, t := range tournaments {
		if !t.StartedAt.IsZero() && now.Sub(t.StartedAt) > staleAfter {
			continue // stale filter: orphaned/closed out-of-band
		}
		if t.State == "underway" {
			return classification{mode: ModeActive, activeTournamentID: t.ID}
		}
		if upcomingCandidate == "" && !t.StartsAt.IsZero() && t.StartsAt.Sub(now) <= upcomingWindow && t.StartsAt.After(now) {
			upcomingCandidate = t.ID
		}
	}
	if upcomingCandidate != "" {
		return classification{mode: ModeUpcoming, activeTournamentID: upcomingCandidate}
	}
	return classification{mode: ModeIdle}
}
