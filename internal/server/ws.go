package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/duobooth/internal/relay"
	"github.com/BioHazard786/duobooth/internal/store"
)

// handleWS upgrades a room participant to a wake-up subscription. The room
// must be live; the socket never carries messages themselves.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomID := store.NormalizeCode(q.Get("roomId"))
	userID := q.Get("userId")

	if err := s.relay.Subscribe(roomID, userID); err != nil {
		s.writeError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.allowRequest,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}

	client := relay.NewClient(s.hub, conn, roomID, userID)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
