package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
	"github.com/voiceguard-ai/voiceguard/pkg/monitor"
)

// maxUploadBytes caps enrollment and identification uploads (about 30 s of
// 16 kHz mono PCM16 with headroom).
const maxUploadBytes = 2 << 20

func writeCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleStats serves the current session snapshot.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "GET")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":     s.worker.State().String(),
		"stats":     s.worker.Stats().Snapshot(),
		"enrolled":  s.store.Count(),
		"threshold": s.worker.Matcher().Threshold(),
	})
}

type voiceInfo struct {
	Name       string    `json:"name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// HandleVoices lists the enrolled references on GET and removes all of them
// on DELETE. Deletion is destructive and must carry confirm=true.
func (s *Server) HandleVoices(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "GET, DELETE")
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		refs := s.store.References()
		voices := make([]voiceInfo, 0, len(refs))
		for _, ref := range refs {
			voices = append(voices, voiceInfo{Name: ref.Name, EnrolledAt: ref.EnrolledAt})
		}
		writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
	case http.MethodDelete:
		if r.URL.Query().Get("confirm") != "true" {
			http.Error(w, "Clearing all voices requires confirm=true", http.StatusBadRequest)
			return
		}
		if err := s.store.Clear(); err != nil {
			log.Printf("[Server] clear voices: %v", err)
			http.Error(w, "Failed to clear voices", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleEnroll registers a voice from a WAV upload at /voices/{name}.
func (s *Server) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "POST")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/voices/")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" {
		http.Error(w, "Voice name is required", http.StatusBadRequest)
		return
	}

	wav, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if err := s.store.Enroll(r.Context(), name, wav); err != nil {
		log.Printf("[Server] enroll %q: %v", name, err)
		http.Error(w, fmt.Sprintf("Enrollment failed: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"name": name, "enrolled": s.store.Count()})
}

// HandleThreshold reads or updates the authorization threshold.
func (s *Server) HandleThreshold(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "GET, PUT")
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"threshold": s.worker.Matcher().Threshold()})
	case http.MethodPut:
		var req struct {
			Threshold float64 `json:"threshold"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to parse body", http.StatusBadRequest)
			return
		}
		if req.Threshold < 0 || req.Threshold > 1 {
			http.Error(w, "Threshold must be between 0 and 1", http.StatusBadRequest)
			return
		}
		s.worker.Matcher().SetThreshold(req.Threshold)
		writeJSON(w, http.StatusOK, map[string]any{"threshold": req.Threshold})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleEvents serves the retained call events, newest first. Pending worker
// events are pulled into the history before responding so polling clients see
// results without waiting for the pump.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "GET")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if pending := s.worker.Events().DrainAll(); len(pending) > 0 {
		s.history.Add(pending...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.history.Recent()})
}

// HandleIdentify runs a one-shot match on an uploaded WAV sample without
// touching session stats or the call history.
func (s *Server) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "POST")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wav, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	samples, info, err := audio.DecodeWAV(wav)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid WAV: %v", err), http.StatusBadRequest)
		return
	}
	if info.SampleRate != s.sampleRate {
		http.Error(w, fmt.Sprintf("Sample rate must be %d Hz, got %d Hz", s.sampleRate, info.SampleRate), http.StatusBadRequest)
		return
	}

	emb, err := s.extractor.Extract(r.Context(), samples)
	if err != nil {
		log.Printf("[Server] identify: %v", err)
		http.Error(w, "Failed to extract voice embedding", http.StatusInternalServerError)
		return
	}

	decision := s.worker.Matcher().Match(emb, s.store.References())
	status := monitor.StatusBlocked
	if decision.Authorized {
		status = monitor.StatusAuthorized
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"caller":     decision.Caller,
		"confidence": decision.Confidence,
		"authorized": decision.Authorized,
		"status":     status,
	})
}

// HandleMonitor starts or stops the monitoring worker.
func (s *Server) HandleMonitor(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "POST")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to parse body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "start":
		s.RLock()
		ctx := s.baseCtx
		s.RUnlock()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := s.worker.Start(ctx); err != nil {
			status := http.StatusConflict
			if monitor.CodeOf(err) == monitor.ErrCodeCapture {
				status = http.StatusInternalServerError
			}
			http.Error(w, fmt.Sprintf("Failed to start monitoring: %v", err), status)
			return
		}
	case "stop":
		if err := s.worker.Stop(); err != nil {
			http.Error(w, fmt.Sprintf("Failed to stop monitoring: %v", err), http.StatusInternalServerError)
			return
		}
	default:
		http.Error(w, "Action must be start or stop", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": s.worker.State().String()})
}
