package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"encore.app/cache"
	"encore.app/pkg/models"
	"encore.app/pkg/pubsub"
	"encore.app/provider"
)

type fakeClient struct {
	calls   []string
	bodies  []interface{}
	status  int
	body    []byte
	err     error
}

func (f *fakeClient) Request(ctx context.Context, method, endpoint string, body interface{}) (*provider.Response, error) {
	f.calls = append(f.calls, method+" "+endpoint)
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = 200
	}
	return &provider.Response{Status: status, Body: f.body}, nil
}

type fakeCache struct {
	baselineErr        error
	baselineCalls      int
	invalidatedTournament string
	invalidateCalls    int
	invalidatedType     models.CacheType
	invalidatedKey      string
}

func (f *fakeCache) GetOrFetch(ctx context.Context, cacheType models.CacheType, key string, fetch cache.Fetcher, opts cache.Options) (json.RawMessage, *models.Meta, error) {
	f.baselineCalls++
	if f.baselineErr != nil {
		return nil, nil, f.baselineErr
	}
	// Exercise the fetcher the way GetOrFetch(ForWrite) would, to confirm
	// the plan wires a real GET against the provider.
	payload, _, err := fetch(ctx)
	return payload, nil, err
}

func (f *fakeCache) Invalidate(ctx context.Context, cacheType models.CacheType, key string) error {
	f.invalidateCalls++
	f.invalidatedType = cacheType
	f.invalidatedKey = key
	return nil
}

func (f *fakeCache) InvalidateTournament(ctx context.Context, tournamentID string) error {
	f.invalidatedTournament = tournamentID
	return nil
}

type fakePoller struct {
	fired bool
}

func (f *fakePoller) FireNow(ctx context.Context) { f.fired = true }

type fakeRate struct {
	scheduled bool
}

func (f *fakeRate) ScheduleRecheck() { f.scheduled = true }

type fakePublisher struct {
	events []pubsub.TournamentLifecycleEvent
}

func (f *fakePublisher) PublishLifecycle(ctx context.Context, event pubsub.TournamentLifecycleEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeAudit struct {
	records []MutationRecord
}

func (f *fakeAudit) Record(ctx context.Context, rec MutationRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func newTestDispatcher(client *fakeClient, c *fakeCache, p *fakePoller, r *fakeRate, pub *fakePublisher, a *fakeAudit) *Dispatcher {
	return New(client, c, p, r, pub, a, nil)
}

func TestMarkUnderway_RefreshesBaselineThenDispatchesThenInvalidatesAndRepolls(t *testing.T) {
	client := &fakeClient{}
	c := &fakeCache{}
	p := &fakePoller{}
	d := newTestDispatcher(client, c, p, nil, nil, nil)

	_, err := d.MarkUnderway(context.Background(), "t1", "m1", "operator")
	if err != nil {
		t.Fatal(err)
	}
	if c.baselineCalls != 1 {
		t.Fatalf("expected 1 baseline refresh, got %d", c.baselineCalls)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected a GET baseline call plus the change_state call, got %v", client.calls)
	}
	if client.calls[0] != "GET /tournaments/t1/matches" {
		t.Fatalf("unexpected baseline call: %s", client.calls[0])
	}
	if client.calls[1] != "PUT /tournaments/t1/matches/m1/change_state" {
		t.Fatalf("unexpected dispatch call: %s", client.calls[1])
	}
	if c.invalidatedTournament != "t1" {
		t.Fatal("expected tournament t1 to be invalidated")
	}
	if !p.fired {
		t.Fatal("expected poller FireNow to be invoked for a match mutation")
	}
}

func TestBaselineRefreshFailure_AbortsBeforeDispatch(t *testing.T) {
	client := &fakeClient{}
	c := &fakeCache{baselineErr: errors.New("provider unreachable")}
	d := newTestDispatcher(client, c, nil, nil, nil, nil)

	_, err := d.MarkUnderway(context.Background(), "t1", "m1", "operator")
	if err == nil {
		t.Fatal("expected baseline refresh failure to abort the mutation")
	}
	// fakeCache fails the baseline before invoking the fetcher, so neither
	// the baseline GET nor the dispatch call reaches the client.
	if len(client.calls) != 0 {
		t.Fatalf("expected no provider call and no dispatch; got %v", client.calls)
	}
}

func TestDeclareWinner_RejectsMissingScoresWithoutDispatching(t *testing.T) {
	client := &fakeClient{}
	c := &fakeCache{}
	d := newTestDispatcher(client, c, nil, nil, nil, nil)

	entries := []models.MatchSetEntry{{ParticipantID: "p1", ScoreSet: ""}}
	_, err := d.DeclareWinner(context.Background(), "t1", "m1", entries, "operator")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("expected no provider calls, got %v", client.calls)
	}
}

func TestDeclareWinner_DispatchesWhenScoresPresent(t *testing.T) {
	client := &fakeClient{}
	c := &fakeCache{}
	p := &fakePoller{}
	d := newTestDispatcher(client, c, p, nil, nil, nil)

	entries := []models.MatchSetEntry{{ParticipantID: "p1", ScoreSet: "2-1"}}
	_, err := d.DeclareWinner(context.Background(), "t1", "m1", entries, "operator")
	if err != nil {
		t.Fatal(err)
	}
	if !p.fired {
		t.Fatal("expected immediate repoll after declaring a winner")
	}
}

func TestStartTournament_InvalidatesListSchedulesRecheckAndPublishes(t *testing.T) {
	client := &fakeClient{}
	c := &fakeCache{}
	r := &fakeRate{}
	pub := &fakePublisher{}
	d := newTestDispatcher(client, c, nil, r, pub, nil)

	_, err := d.StartTournament(context.Background(), "t1", "operator")
	if err != nil {
		t.Fatal(err)
	}
	if c.invalidateCalls != 1 || c.invalidatedType != models.CacheTournamentsList || c.invalidatedKey != "list" {
		t.Fatalf("expected tournaments_list/list invalidation, got calls=%d type=%s key=%s", c.invalidateCalls, c.invalidatedType, c.invalidatedKey)
	}
	if !r.scheduled {
		t.Fatal("expected a rate-controller recheck to be scheduled")
	}
	if len(pub.events) != 1 || pub.events[0].Action != pubsub.LifecycleStart {
		t.Fatalf("expected one lifecycle start event, got %+v", pub.events)
	}
}

func TestCompleteTournament_UsesFinalizeAction(t *testing.T) {
	client := &fakeClient{}
	c := &fakeCache{}
	d := newTestDispatcher(client, c, nil, nil, nil, nil)

	_, err := d.CompleteTournament(context.Background(), "t1", "operator")
	if err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != 2 || client.calls[1] != "POST /tournaments/t1/process" {
		t.Fatalf("unexpected calls: %v", client.calls)
	}
	body, ok := client.bodies[1].(jsonAPIBody)
	if !ok {
		t.Fatalf("expected a JSON:API body on the process call, got %T", client.bodies[1])
	}
	if attrs, ok := body.Data.Attributes.(processAttributes); !ok || attrs.Action != "finalize" {
		t.Fatalf("expected process action finalize, got %+v", body.Data.Attributes)
	}
}

func TestCreateTournament_SkipsBaselineRefresh(t *testing.T) {
	client := &fakeClient{}
	c := &fakeCache{}
	d := newTestDispatcher(client, c, nil, nil, nil, nil)

	name := "New Open"
	_, err := d.CreateTournament(context.Background(), TournamentUpdate{Name: &name}, "operator")
	if err != nil {
		t.Fatal(err)
	}
	if c.baselineCalls != 0 {
		t.Fatal("expected no baseline refresh for tournament creation")
	}
	if len(client.calls) != 1 || client.calls[0] != "POST /tournaments" {
		t.Fatalf("unexpected calls: %v", client.calls)
	}
}

func TestDispatchFailure_SkipsInvalidationAndRepoll(t *testing.T) {
	client := &fakeClient{err: errors.New("timeout")}
	c := &fakeCache{}
	p := &fakePoller{}
	d := newTestDispatcher(client, c, p, nil, nil, nil)

	_, err := d.MarkUnderway(context.Background(), "t1", "m1", "operator")
	if err == nil {
		t.Fatal("expected dispatch error to propagate")
	}
	if c.invalidatedTournament != "" {
		t.Fatal("expected no invalidation on dispatch failure")
	}
	if p.fired {
		t.Fatal("expected no repoll on dispatch failure")
	}
}

func TestAuditRecordsBothSuccessAndFailure(t *testing.T) {
	a := &fakeAudit{}
	okClient := &fakeClient{}
	d := newTestDispatcher(okClient, &fakeCache{}, nil, nil, nil, a)
	if _, err := d.MarkUnderway(context.Background(), "t1", "m1", "operator"); err != nil {
		t.Fatal(err)
	}

	failClient := &fakeClient{err: errors.New("boom")}
	d2 := newTestDispatcher(failClient, &fakeCache{}, nil, nil, nil, a)
	if _, err := d2.MarkUnderway(context.Background(), "t1", "m1", "operator"); err == nil {
		t.Fatal("expected failure")
	}

	if len(a.records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(a.records))
	}
	if !a.records[0].Success || a.records[1].Success {
		t.Fatalf("expected [success, failure], got %+v", a.records)
	}
}
