package broadcast

// EventType names one of the server-to-client push events spec.md §4.6
// catalogues.
type EventType string

const (
	EventMatchesUpdate    EventType = "matches:update"
	EventTournamentUpdate EventType = "tournament:update"
	EventTickerMessage    EventType = "ticker:message"
	EventQRShow           EventType = "qr:show"
	EventQRHide           EventType = "qr:hide"
	EventTimerDQStarted   EventType = "timer:dq:started"
	EventTimerDQWarning   EventType = "timer:dq:warning"
	EventTimerDQExpired   EventType = "timer:dq:expired"
	EventTimerDQCancelled EventType = "timer:dq:cancelled"
	EventSponsorShow      EventType = "sponsor:show"
	EventSponsorHide      EventType = "sponsor:hide"
	EventSponsorRotate    EventType = "sponsor:rotate"
	EventSponsorConfig    EventType = "sponsor:config"
	EventActivityInitial  EventType = "activity:initial"
	EventActivityNew      EventType = "activity:new"

	// EventAck is the inbound message type a client sends to acknowledge a
	// delivery-with-ack event, echoing the original message_id.
	EventAck EventType = "ack"
)

// lossVisible reports whether an event type requires ack-bearing delivery
// with retry, per spec.md §4.6: "events whose loss is visible (timer
// events, sponsor show/hide)". sponsor:rotate/config and all other events
// are fire-and-forget.
func (t EventType) lossVisible() bool {
	switch t {
	case EventTimerDQStarted, EventTimerDQWarning, EventTimerDQExpired, EventTimerDQCancelled,
		EventSponsorShow, EventSponsorHide:
		return true
	default:
		return false
	}
}

// OutboundMessage is the wire envelope sent to a display client.
type OutboundMessage struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// InboundMessage is what a display client may send back, currently only
// used for acks.
type InboundMessage struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"message_id"`
}

// TickerPayload is ticker:message's payload.
type TickerPayload struct {
	Text       string `json:"text"`
	DurationS  int    `json:"duration_s"`
}

// QRShowPayload is qr:show's payload.
type QRShowPayload struct {
	URL       string `json:"url"`
	Label     string `json:"label,omitempty"`
	DurationS int    `json:"duration_s,omitempty"`
}

// SponsorConfigPayload is sponsor:config's payload.
type SponsorConfigPayload struct {
	Sponsors []SponsorEntry `json:"sponsors"`
}

// SponsorEntry is one sponsor slide in the rotation.
type SponsorEntry struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// ActivityItem is one entry in the activity feed (activity:initial's list
// elements, and activity:new's single item).
type ActivityItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
