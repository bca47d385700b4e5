package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"encore.app/pkg/models"
	"encore.app/pkg/pubsub"
)

func TestDesiredInterval_DisabledWhenIdleAndNoDevMode(t *testing.T) {
	if got := DesiredInterval(Hint{Active: false, DevMode: false}); got != 0 {
		t.Fatalf("expected disabled (0), got %s", got)
	}
}

func TestDesiredInterval_ActiveModeTicksEvery15s(t *testing.T) {
	if got := DesiredInterval(Hint{Active: true}); got != activeInterval {
		t.Fatalf("expected %s, got %s", activeInterval, got)
	}
}

func TestDesiredInterval_DevModeTicksEvery5sRegardlessOfMode(t *testing.T) {
	if got := DesiredInterval(Hint{Active: false, DevMode: true}); got != devModeInterval {
		t.Fatalf("expected %s, got %s", devModeInterval, got)
	}
}

func TestFireNow_EmitsOnDigestChangeAndSkipsWhenUnchanged(t *testing.T) {
	var calls int32
	matches := []models.Match{
		{ID: "m1", Player1ID: "p1", Player2ID: "p2", State: "open", Score1: 0, Score2: 0},
	}

	fetch := func(ctx context.Context, tournamentID string) ([]models.Match, error) {
		return matches, nil
	}

	var published []pubsub.MatchesUpdatedEvent
	var mu sync.Mutex
	publish := func(ctx context.Context, event pubsub.MatchesUpdatedEvent) error {
		mu.Lock()
		published = append(published, event)
		mu.Unlock()
		atomic.AddInt32(&calls, 1)
		return nil
	}

	hint := func() Hint { return Hint{TournamentID: "t1", Active: true} }

	p := New(fetch, hint, publish, nil)
	p.FireNow(context.Background())
	p.FireNow(context.Background())

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one publish for an unchanged digest across two fires, got %d", got)
	}

	// Mutate the match state; digest must change and re-trigger a publish.
	matches = []models.Match{
		{ID: "m1", Player1ID: "p1", Player2ID: "p2", State: "complete", WinnerID: "p1", Score1: 2, Score2: 0},
	}
	p.FireNow(context.Background())

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected a second publish after the match state changed, got %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if published[1].Digest == published[0].Digest {
		t.Fatal("expected the digest to change when match state changed")
	}
	if published[1].CompletedCount != 1 {
		t.Fatalf("expected completed count 1, got %d", published[1].CompletedCount)
	}
	if published[1].ProgressPercent != 100 {
		t.Fatalf("expected 100%% progress with one of one matches complete, got %f", published[1].ProgressPercent)
	}
}

func TestFireNow_NoTournamentIDIsANoOp(t *testing.T) {
	called := false
	fetch := func(ctx context.Context, tournamentID string) ([]models.Match, error) {
		called = true
		return nil, nil
	}
	p := New(fetch, func() Hint { return Hint{} }, func(ctx context.Context, e pubsub.MatchesUpdatedEvent) error { return nil }, nil)
	p.FireNow(context.Background())
	if called {
		t.Fatal("expected no fetch when the hint carries no active tournament id")
	}
}

func TestStartStop_TicksAtConfiguredInterval(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context, tournamentID string) ([]models.Match, error) {
		atomic.AddInt32(&calls, 1)
		return []models.Match{{ID: "m1", State: "open"}}, nil
	}
	hint := func() Hint { return Hint{TournamentID: "t1", Active: true} }
	publish := func(ctx context.Context, e pubsub.MatchesUpdatedEvent) error { return nil }

	p := New(fetch, hint, publish, nil)
	p.Start(10 * time.Millisecond)
	time.Sleep(55 * time.Millisecond)
	p.Stop()

	got := atomic.LoadInt32(&calls)
	if got < 2 {
		t.Fatalf("expected multiple ticks within 55ms at a 10ms interval, got %d", got)
	}

	afterStop := got
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&calls) != afterStop {
		t.Fatal("expected no further ticks after Stop")
	}
}

func TestStart_IdempotentAtSameInterval(t *testing.T) {
	p := New(noopFetch, noopHint, noopPublish, nil)
	p.Start(20 * time.Millisecond)
	p.Start(20 * time.Millisecond) // should not restart or panic
	p.Stop()
}

func TestReconcile_StopsWhenModeGoesIdle(t *testing.T) {
	active := true
	hint := func() Hint { return Hint{TournamentID: "t1", Active: active} }
	p := New(noopFetch, hint, noopPublish, nil)

	p.Reconcile()
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		t.Fatal("expected Reconcile to start ticking while ACTIVE")
	}

	active = false
	p.Reconcile()
	p.mu.Lock()
	running = p.running
	p.mu.Unlock()
	if running {
		t.Fatal("expected Reconcile to stop ticking once mode left ACTIVE")
	}
}

func TestDigestOf_StableAcrossMatchOrder(t *testing.T) {
	a := []models.Match{
		{Player1ID: "p1", Player2ID: "p2", State: "open"},
		{Player1ID: "p3", Player2ID: "p4", State: "open"},
	}
	b := []models.Match{a[1], a[0]}

	if digestOf(a) != digestOf(b) {
		t.Fatal("expected digest to be stable regardless of match iteration order")
	}
}
