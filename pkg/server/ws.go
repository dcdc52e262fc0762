package server

import (
	"log"
	"net/http"

	"github.com/google/uuid"
)

// HandleWebSocket upgrades the connection and streams call events to the
// client as JSON messages until the client disconnects or the server stops.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] websocket upgrade: %v", err)
		return
	}

	id := uuid.New().String()
	s.addClient(id, conn)
	log.Printf("[Server] websocket client connected: %s", id)

	// A read loop is required to observe the close handshake even though
	// clients never send application messages.
	go func() {
		defer s.removeClient(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
