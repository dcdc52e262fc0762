// Package server exposes the monitoring pipeline over HTTP.
//
// Main features:
//
// - JSON endpoints for session stats, enrolled voices, threshold and call history
// - Voice enrollment and one-shot identification from uploaded WAV samples
// - Start/stop control of the monitoring worker
// - Live call event feed over WebSocket
package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voiceguard-ai/voiceguard/pkg/embedding"
	"github.com/voiceguard-ai/voiceguard/pkg/monitor"
	"github.com/voiceguard-ai/voiceguard/pkg/voiceprint"
)

// drainInterval is how often the pump empties the worker's event channel.
const drainInterval = 100 * time.Millisecond

type Server struct {
	sync.RWMutex

	worker    *monitor.Worker
	store     *voiceprint.Store
	extractor embedding.Extractor
	history   *monitor.History

	sampleRate int

	upgrader websocket.Upgrader
	clients  map[string]*websocket.Conn

	// baseCtx outlives individual requests so the worker started from a
	// handler is not torn down when that request completes.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer wires the HTTP surface to a worker and its reference store.
// The extractor and sampleRate must match the ones the worker analyzes with,
// otherwise one-shot identification would disagree with live monitoring.
func NewServer(worker *monitor.Worker, store *voiceprint.Store, extractor embedding.Extractor, sampleRate int) *Server {
	return &Server{
		worker:     worker,
		store:      store,
		extractor:  extractor,
		history:    monitor.NewHistory(monitor.DefaultHistoryLimit),
		sampleRate: sampleRate,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*websocket.Conn),
	}
}

// Start launches the event pump that moves worker events into the call
// history and fans them out to connected WebSocket clients.
func (s *Server) Start(ctx context.Context) {
	s.Lock()
	defer s.Unlock()
	if s.cancel != nil {
		return
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.pump(s.baseCtx)
}

// Stop halts the event pump and disconnects all WebSocket clients.
func (s *Server) Stop() {
	s.Lock()
	cancel := s.cancel
	s.cancel = nil
	for id, conn := range s.clients {
		conn.Close()
		delete(s.clients, id)
	}
	s.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

// History returns the retained call events, newest first.
func (s *Server) History() []monitor.CallEvent {
	return s.history.Recent()
}

func (s *Server) pump(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events := s.worker.Events().DrainAll()
			if len(events) == 0 {
				continue
			}
			s.history.Add(events...)
			s.broadcast(events)
		}
	}
}

func (s *Server) broadcast(events []monitor.CallEvent) {
	s.RLock()
	conns := make(map[string]*websocket.Conn, len(s.clients))
	for id, conn := range s.clients {
		conns[id] = conn
	}
	s.RUnlock()

	for id, conn := range conns {
		for _, evt := range events {
			if err := conn.WriteJSON(evt); err != nil {
				log.Printf("[Server] dropping websocket client %s: %v", id, err)
				s.removeClient(id)
				break
			}
		}
	}
}

func (s *Server) addClient(id string, conn *websocket.Conn) {
	s.Lock()
	s.clients[id] = conn
	s.Unlock()
}

func (s *Server) removeClient(id string) {
	s.Lock()
	if conn, ok := s.clients[id]; ok {
		conn.Close()
		delete(s.clients, id)
	}
	s.Unlock()
}

// Routes registers all handlers on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.HandleStats)
	mux.HandleFunc("/voices", s.HandleVoices)
	mux.HandleFunc("/voices/", s.HandleEnroll)
	mux.HandleFunc("/threshold", s.HandleThreshold)
	mux.HandleFunc("/events", s.HandleEvents)
	mux.HandleFunc("/identify", s.HandleIdentify)
	mux.HandleFunc("/monitor", s.HandleMonitor)
	mux.HandleFunc("/ws", s.HandleWebSocket)
	return mux
}
