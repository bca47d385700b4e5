package broadcast

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Displays connect from the venue's own kiosk network; this core does
	// not attempt cross-origin browser auth (spec.md Non-goals).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket connection and registers
// the resulting client under displayID/role, then blocks reading inbound
// acks until the connection closes.
//
//encore:api public raw path=/broadcast/ws/:displayID
func ServeWS(w http.ResponseWriter, r *http.Request) {
	if svc == nil {
		http.Error(w, "broadcast: service not initialized", http.StatusServiceUnavailable)
		return
	}

	displayID := r.URL.Query().Get("display_id")
	if displayID == "" {
		displayID = r.PathValue("displayID")
	}
	role := r.URL.Query().Get("role")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := svc.hub.Register(displayID, role, conn)
	svc.readPump(r.Context(), displayID, conn)
	svc.hub.Unregister(displayID)
	_ = client
}

// readPump drains inbound messages (acks) until the connection errors or
// closes. Anything that isn't a recognized ack is ignored; this endpoint is
// push-dominant by design (spec.md §4.6).
func (s *Service) readPump(ctx context.Context, displayID string, conn *websocket.Conn) {
	for {
		var in InboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Type == EventAck && in.MessageID != "" {
			s.hub.Ack(in.MessageID)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
