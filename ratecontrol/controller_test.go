package ratecontrol

import (
	"context"
	"errors"
	"testing"
	"time"

	"encore.app/pkg/models"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CheckInterval = time.Hour // avoid the ticker firing mid-test
	return cfg
}

func newTestController(fetch TournamentFetcher) *Controller {
	return New(testConfig(), fetch, nil)
}

func TestClassify_ActiveWhenUnderway(t *testing.T) {
	now := time.Now()
	ts := []models.Tournament{
		{ID: "t1", State: "pending", StartsAt: now.Add(time.Hour)},
		{ID: "t2", State: "underway"},
	}
	c := classify(ts, now, 7*24*time.Hour, 30*time.Minute)
	if c.mode != ModeActive || c.activeTournamentID != "t2" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassify_UpcomingWithinWindow(t *testing.T) {
	now := time.Now()
	ts := []models.Tournament{
		{ID: "t1", State: "pending", StartsAt: now.Add(10 * time.Minute)},
	}
	c := classify(ts, now, 7*24*time.Hour, 30*time.Minute)
	if c.mode != ModeUpcoming || c.activeTournamentID != "t1" {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassify_IdleWhenNothingQualifies(t *testing.T) {
	now := time.Now()
	ts := []models.Tournament{
		{ID: "t1", State: "pending", StartsAt: now.Add(48 * time.Hour)},
	}
	c := classify(ts, now, 7*24*time.Hour, 30*time.Minute)
	if c.mode != ModeIdle {
		t.Fatalf("expected IDLE, got %+v", c)
	}
}

func TestClassify_StaleFilterBoundary(t *testing.T) {
	now := time.Now()
	staleAfter := 7 * 24 * time.Hour

	// started_at = now - 7d - 1s: must be ignored (stale).
	stale := []models.Tournament{
		{ID: "old", State: "underway", StartedAt: now.Add(-staleAfter - time.Second)},
	}
	if c := classify(stale, now, staleAfter, 30*time.Minute); c.mode != ModeIdle {
		t.Fatalf("expected a stale underway tournament to be ignored, got %+v", c)
	}

	// started_at = now - 7d + 1s: must NOT be ignored.
	fresh := []models.Tournament{
		{ID: "recent", State: "underway", StartedAt: now.Add(-staleAfter + time.Second)},
	}
	if c := classify(fresh, now, staleAfter, 30*time.Minute); c.mode != ModeActive || c.activeTournamentID != "recent" {
		t.Fatalf("expected the non-stale underway tournament to drive ACTIVE, got %+v", c)
	}
}

func TestCheck_TransitionsModeAndNotifies(t *testing.T) {
	c := newTestController(func(ctx context.Context) ([]models.Tournament, error) {
		return []models.Tournament{{ID: "t1", State: "underway"}}, nil
	})
	defer c.Stop()

	var notified []Mode
	c.SetModeChangeFn(func(m Mode) { notified = append(notified, m) })

	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.CurrentMode() != ModeActive {
		t.Fatalf("expected ACTIVE, got %s", c.CurrentMode())
	}
	if len(notified) != 1 || notified[0] != ModeActive {
		t.Fatalf("expected exactly one mode-change notification to ACTIVE, got %v", notified)
	}
}

func TestCheck_PropagatesFetchError(t *testing.T) {
	c := newTestController(func(ctx context.Context) ([]models.Tournament, error) {
		return nil, errors.New("provider unreachable")
	})
	defer c.Stop()

	if err := c.Check(context.Background()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}

func TestEffectiveRate_SaturatesAtManualCapAndFloorsAtOne(t *testing.T) {
	cfg := testConfig()
	cfg.ManualCap = 5
	c := New(cfg, nil, nil)
	defer c.Stop()

	if err := c.SetOverride(context.Background(), string(ModeActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := c.EffectiveRate(); r != 5 {
		t.Fatalf("expected manual cap of 5 to win over ACTIVE's 60, got %d", r)
	}

	c.mu.Lock()
	c.cfg.ModeRates[ModeActive] = 0
	c.mu.Unlock()
	if r := c.EffectiveRate(); r != 1 {
		t.Fatalf("expected a zero mode rate to be floored at 1, got %d", r)
	}
}

func TestEffectiveRate_CapsAtSixty(t *testing.T) {
	cfg := testConfig()
	cfg.ModeRates[ModeActive] = 1000
	c := New(cfg, nil, nil)
	defer c.Stop()

	_ = c.SetOverride(context.Background(), string(ModeActive))
	if r := c.EffectiveRate(); r != 60 {
		t.Fatalf("expected rate ceiling of 60, got %d", r)
	}
}

func TestSetOverride_AutoClearsAndRechecks(t *testing.T) {
	calls := 0
	c := newTestController(func(ctx context.Context) ([]models.Tournament, error) {
		calls++
		return nil, nil
	})
	defer c.Stop()

	if err := c.SetOverride(context.Background(), string(ModeActive)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.CurrentMode() != ModeActive {
		t.Fatalf("expected override to force ACTIVE")
	}

	if err := c.SetOverride(context.Background(), "auto"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected SetOverride(auto) to trigger exactly one Check(), got %d calls", calls)
	}
	if c.CurrentMode() != ModeIdle {
		t.Fatalf("expected mode to fall back to the classifier's result (IDLE for no tournaments), got %s", c.CurrentMode())
	}
}

func TestSetOverride_RejectsUnknownMode(t *testing.T) {
	c := newTestController(nil)
	defer c.Stop()

	if err := c.SetOverride(context.Background(), "NOT_A_MODE"); err == nil {
		t.Fatal("expected an error for an unrecognized mode")
	}
}

func TestDevMode_EnableAndDisable(t *testing.T) {
	c := newTestController(nil)
	defer c.Stop()

	var transitions []bool
	c.SetDevModeFn(func(active bool) { transitions = append(transitions, active) })

	c.EnableDevMode()
	if !c.DevModeActive() {
		t.Fatal("expected dev mode active immediately after EnableDevMode")
	}

	c.DisableDevMode()
	if c.DevModeActive() {
		t.Fatal("expected dev mode inactive after DisableDevMode")
	}
	if len(transitions) != 2 || transitions[0] != true || transitions[1] != false {
		t.Fatalf("expected [true false] transitions, got %v", transitions)
	}
}

func TestDevMode_LazyExpiryOnRead(t *testing.T) {
	c := newTestController(nil)
	defer c.Stop()

	c.mu.Lock()
	c.devModeActive = true
	c.devModeExpires = time.Now().Add(-time.Second) // already expired
	c.mu.Unlock()

	if c.DevModeActive() {
		t.Fatal("expected DevModeActive to lazily re-check expiry and report false")
	}
}

func TestScheduler_ScheduleAfterRunsTask(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.ScheduleAfter("x", 5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected scheduled task to run")
	}
}

func TestScheduler_CancelPreventsRun(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	ran := false
	s.ScheduleAfter("y", 10*time.Millisecond, func() { ran = true })
	s.Cancel("y")

	time.Sleep(30 * time.Millisecond)
	if ran {
		t.Fatal("expected cancelled task to never run")
	}
}
