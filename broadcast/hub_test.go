package broadcast

import (
	"sync"
	"testing"
	"time"
)

// fakeConn records every JSON message it would have written, guarded by a
// mutex since writePump and the test goroutine both touch it.
type fakeConn struct {
	mu     sync.Mutex
	sent   []OutboundMessage
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v.(OutboundMessage))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) snapshot() []OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]OutboundMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestRegister_WarmStartsLastMatchesUpdate(t *testing.T) {
	h := NewHub(nil)
	h.BroadcastMatchesUpdate(map[string]int{"score": 1})

	conn := &fakeConn{}
	h.Register("d1", "scoreboard", conn)

	waitFor(t, func() bool { return len(conn.snapshot()) == 1 })
	if conn.snapshot()[0].Type != EventMatchesUpdate {
		t.Fatalf("expected a warm-start matches:update, got %+v", conn.snapshot()[0])
	}
}

func TestRegister_NoWarmStartWhenNothingBroadcastYet(t *testing.T) {
	h := NewHub(nil)
	conn := &fakeConn{}
	h.Register("d1", "scoreboard", conn)

	time.Sleep(20 * time.Millisecond)
	if len(conn.snapshot()) != 0 {
		t.Fatalf("expected no warm-start message, got %+v", conn.snapshot())
	}
}

func TestBroadcastMatchesUpdate_FansOutToAllClients(t *testing.T) {
	h := NewHub(nil)
	c1, c2 := &fakeConn{}, &fakeConn{}
	h.Register("d1", "scoreboard", c1)
	h.Register("d2", "bracket", c2)

	h.BroadcastMatchesUpdate("payload")

	waitFor(t, func() bool { return len(c1.snapshot()) >= 1 && len(c2.snapshot()) >= 1 })
}

func TestUnregister_StopsFurtherDelivery(t *testing.T) {
	h := NewHub(nil)
	conn := &fakeConn{}
	h.Register("d1", "scoreboard", conn)
	h.Unregister("d1")

	h.BroadcastTicker("hello", 5)
	time.Sleep(20 * time.Millisecond)
	if len(conn.snapshot()) != 0 {
		t.Fatalf("expected no delivery after unregister, got %+v", conn.snapshot())
	}
	if !conn.closed {
		t.Fatal("expected the connection to be closed on unregister")
	}
}

func TestPerClientOrdering_IsFIFO(t *testing.T) {
	h := NewHub(nil)
	conn := &fakeConn{}
	h.Register("d1", "scoreboard", conn)

	for i := 0; i < 20; i++ {
		h.BroadcastTicker(string(rune('a'+i)), i)
	}

	waitFor(t, func() bool { return len(conn.snapshot()) == 20 })
	sent := conn.snapshot()
	for i, msg := range sent {
		p := msg.Payload.(TickerPayload)
		if p.DurationS != i {
			t.Fatalf("expected FIFO delivery, message %d had duration_s=%d", i, p.DurationS)
		}
	}
}

func TestBroadcastTimerDQ_AckCancelsRetry(t *testing.T) {
	h := NewHub(nil)
	conn := &fakeConn{}
	h.Register("d1", "scoreboard", conn)

	h.BroadcastTimerDQ(EventTimerDQStarted, map[string]string{"match_id": "m1"})

	waitFor(t, func() bool { return len(conn.snapshot()) >= 1 })
	msgID := conn.snapshot()[0].MessageID
	if msgID == "" {
		t.Fatal("expected a message_id on a loss-visible event")
	}

	h.Ack(msgID)

	h.ackMu.Lock()
	_, stillPending := h.pending[msgID]
	h.ackMu.Unlock()
	if stillPending {
		t.Fatal("expected Ack to clear the pending retry state")
	}
}

func TestBroadcastTicker_NoMessageID(t *testing.T) {
	h := NewHub(nil)
	conn := &fakeConn{}
	h.Register("d1", "scoreboard", conn)
	h.BroadcastTicker("hi", 1)

	waitFor(t, func() bool { return len(conn.snapshot()) >= 1 })
	if conn.snapshot()[0].MessageID != "" {
		t.Fatal("expected fire-and-forget events to carry no message_id")
	}
}

func TestEventType_LossVisibleClassification(t *testing.T) {
	cases := map[EventType]bool{
		EventTimerDQStarted:   true,
		EventTimerDQWarning:   true,
		EventTimerDQExpired:   true,
		EventTimerDQCancelled: true,
		EventSponsorShow:      true,
		EventSponsorHide:      true,
		EventSponsorRotate:    false,
		EventSponsorConfig:    false,
		EventMatchesUpdate:    false,
		EventTickerMessage:    false,
		EventQRShow:           false,
	}
	for ev, want := range cases {
		if got := ev.lossVisible(); got != want {
			t.Errorf("%s: expected lossVisible=%v, got %v", ev, want, got)
		}
	}
}
