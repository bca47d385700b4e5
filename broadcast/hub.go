// Package broadcast implements the broadcast hub (spec component C6): the
// registry of connected display clients and the typed event catalogue
// pushed to them, with ack-bearing delivery and retry for loss-visible
// events.
//
// Client registration and per-client serialized emission are grounded on
// monitoring/dashboard.go's Dashboard.sessions map (a mutex-guarded
// map[string]*StreamSession, each session owning its own Updates channel
// and StopChan). This core swaps the teacher's bare channel/SSE transport
// for gorilla/websocket framing (transport.go) since spec.md explicitly
// calls out "connected display clients" as a push target rather than a
// server-sent polling client.
package broadcast

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ackRetrySchedule is the exponential backoff spec.md §4.6 names for
// loss-visible events: "1s/3s/9s", three attempts after the initial send.
var ackRetrySchedule = []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}

// wireWriter is the narrow surface hub.go needs from a client transport.
// *websocket.Conn satisfies this directly; tests inject a recording fake.
type wireWriter interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one registered display.
type Client struct {
	DisplayID string
	Role      string

	mu     sync.Mutex
	conn   wireWriter
	sendCh chan OutboundMessage
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newClient(displayID, role string, conn wireWriter) *Client {
	c := &Client{
		DisplayID: displayID,
		Role:      role,
		conn:      conn,
		sendCh:    make(chan OutboundMessage, 64),
		stopCh:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.writePump()
	return c
}

// writePump is the sole goroutine that ever calls conn.WriteJSON, which
// gives per-client FIFO ordering (spec.md §4.6 "Ordering") without needing
// a lock around the write itself.
func (c *Client) writePump() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.sendCh:
			c.mu.Lock()
			err := c.conn.WriteJSON(msg)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) enqueue(msg OutboundMessage) bool {
	select {
	case c.sendCh <- msg:
		return true
	case <-c.stopCh:
		return false
	default:
		// A saturated send buffer means the client is not draining; drop
		// rather than block the hub on one slow display.
		return false
	}
}

func (c *Client) close() {
	close(c.stopCh)
	c.wg.Wait()
	c.conn.Close()
}

// pendingAck tracks an in-flight ack-bearing delivery awaiting
// acknowledgement or retry exhaustion.
type pendingAck struct {
	cancel chan struct{}
}

// Hub is the singleton client registry and event dispatcher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	lastMatchesUpdate *OutboundMessage

	ackMu   sync.Mutex
	pending map[string]*pendingAck // message_id -> pending retry state

	logger *log.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		pending: make(map[string]*pendingAck),
		logger:  logger,
	}
}

// Register adds a display client and, per spec.md §4.6 "Client
// registration", immediately sends the last known matches:update payload if
// one has been observed (warm start).
func (h *Hub) Register(displayID, role string, conn wireWriter) *Client {
	c := newClient(displayID, role, conn)

	h.mu.Lock()
	if old, ok := h.clients[displayID]; ok {
		old.close()
	}
	h.clients[displayID] = c
	warmStart := h.lastMatchesUpdate
	h.mu.Unlock()

	if warmStart != nil {
		c.enqueue(*warmStart)
	}
	return c
}

// Unregister removes and closes a client's connection.
func (h *Hub) Unregister(displayID string) {
	h.mu.Lock()
	c, ok := h.clients[displayID]
	if ok {
		delete(h.clients, displayID)
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// ClientCount reports the number of registered displays.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshotClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// BroadcastMatchesUpdate fans out a matches:update to every client
// (fire-and-forget per spec.md §4.6) and records it as the warm-start
// payload for future registrations.
func (h *Hub) BroadcastMatchesUpdate(payload interface{}) {
	msg := OutboundMessage{Type: EventMatchesUpdate, Payload: payload}
	h.mu.Lock()
	h.lastMatchesUpdate = &msg
	h.mu.Unlock()
	h.broadcastFireAndForget(msg)
}

// BroadcastTournamentUpdate fans out a tournament:update (fire-and-forget).
func (h *Hub) BroadcastTournamentUpdate(payload interface{}) {
	h.broadcastFireAndForget(OutboundMessage{Type: EventTournamentUpdate, Payload: payload})
}

// BroadcastTicker fans out ticker:message (fire-and-forget).
func (h *Hub) BroadcastTicker(text string, durationS int) {
	h.broadcastFireAndForget(OutboundMessage{
		Type:    EventTickerMessage,
		Payload: TickerPayload{Text: text, DurationS: durationS},
	})
}

// BroadcastActivityNew fans out activity:new (fire-and-forget).
func (h *Hub) BroadcastActivityNew(item ActivityItem) {
	h.broadcastFireAndForget(OutboundMessage{Type: EventActivityNew, Payload: item})
}

// SendActivityInitial pushes the activity feed snapshot to one newly
// registered client.
func (h *Hub) SendActivityInitial(displayID string, items []ActivityItem) {
	h.mu.RLock()
	c, ok := h.clients[displayID]
	h.mu.RUnlock()
	if ok {
		c.enqueue(OutboundMessage{Type: EventActivityInitial, Payload: items})
	}
}

func (h *Hub) broadcastFireAndForget(msg OutboundMessage) {
	for _, c := range h.snapshotClients() {
		c.enqueue(msg)
	}
}

// BroadcastQRShow fans out qr:show, fire-and-forget. An empty url is sent
// as-is; qr:hide has its own method, BroadcastQRHide.
func (h *Hub) BroadcastQRShow(url, label string, durationS int) {
	h.broadcastFireAndForget(OutboundMessage{
		Type:    EventQRShow,
		Payload: QRShowPayload{URL: url, Label: label, DurationS: durationS},
	})
}

// BroadcastQRHide fans out qr:hide, fire-and-forget.
func (h *Hub) BroadcastQRHide() {
	h.broadcastFireAndForget(OutboundMessage{Type: EventQRHide})
}

// BroadcastSponsorRotate / BroadcastSponsorConfig are fire-and-forget
// (only sponsor show/hide are loss-visible per spec.md §4.6).
func (h *Hub) BroadcastSponsorRotate() {
	h.broadcastFireAndForget(OutboundMessage{Type: EventSponsorRotate})
}

func (h *Hub) BroadcastSponsorConfig(cfg SponsorConfigPayload) {
	h.broadcastFireAndForget(OutboundMessage{Type: EventSponsorConfig, Payload: cfg})
}

// BroadcastTimerDQ fans out a timer:dq:* event to every client with
// ack-bearing delivery and retry (spec.md §4.6).
func (h *Hub) BroadcastTimerDQ(eventType EventType, payload interface{}) {
	h.broadcastWithAck(OutboundMessage{Type: eventType, Payload: payload})
}

// BroadcastSponsorShow / BroadcastSponsorHide are the two sponsor events
// spec.md §4.6 calls out as loss-visible.
func (h *Hub) BroadcastSponsorShow(payload interface{}) {
	h.broadcastWithAck(OutboundMessage{Type: EventSponsorShow, Payload: payload})
}

func (h *Hub) BroadcastSponsorHide() {
	h.broadcastWithAck(OutboundMessage{Type: EventSponsorHide})
}

// broadcastWithAck assigns each client its own message_id (acks are
// per-connection, not global) and starts the retry schedule independently
// per client, so one unresponsive display never blocks delivery to others.
func (h *Hub) broadcastWithAck(msg OutboundMessage) {
	for _, c := range h.snapshotClients() {
		h.sendWithAck(c, msg)
	}
}

func (h *Hub) sendWithAck(c *Client, msg OutboundMessage) {
	msg.MessageID = uuid.NewString()
	cancel := make(chan struct{})

	h.ackMu.Lock()
	h.pending[msg.MessageID] = &pendingAck{cancel: cancel}
	h.ackMu.Unlock()

	c.enqueue(msg)

	go func() {
		for _, delay := range ackRetrySchedule {
			select {
			case <-time.After(delay):
				h.ackMu.Lock()
				_, stillPending := h.pending[msg.MessageID]
				h.ackMu.Unlock()
				if !stillPending {
					return
				}
				c.enqueue(msg)
			case <-cancel:
				return
			}
		}
		h.ackMu.Lock()
		delete(h.pending, msg.MessageID)
		h.ackMu.Unlock()
		h.logf("delivery to %s exhausted retries for message %s", c.DisplayID, msg.MessageID)
	}()
}

// Ack records an acknowledgement for messageID, cancelling its retry
// schedule. Called from transport.go's read pump when a client sends back
// an ack.
func (h *Hub) Ack(messageID string) {
	h.ackMu.Lock()
	defer h.ackMu.Unlock()
	if p, ok := h.pending[messageID]; ok {
		close(p.cancel)
		delete(h.pending, messageID)
	}
}

func (h *Hub) logf(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Printf("[WARN] broadcast: "+format, args...)
	}
}
