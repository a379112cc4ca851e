package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin enforcement happens at the relay; the backend accepts any.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleChannel upgrades /invoice-agent/{instanceId} and binds the connection
// to the session agent: inbound frames are dispatched to the agent, broadcast
// events are written back. Multiple connections per session all receive every
// event.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/invoice-agent/")
	id = strings.Trim(id, "/")
	if id == "" {
		id = defaultInstanceID
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	a := s.registry.Get(id)
	events, cancel := a.Subscribe()

	go func() {
		for msg := range events {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cancel()
				break
			}
		}
		_ = conn.Close()
	}()

	defer cancel()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Dispatch with a fresh context: a dropped connection must not abort
		// an in-flight generation, and events still reach other subscribers.
		a.HandleMessage(context.Background(), raw)
	}
}
