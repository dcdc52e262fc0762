// Package monitor runs the real-time voice-monitoring pipeline: it drains
// captured audio into a sliding window, compares the window's voice
// embedding against enrolled references at a fixed cadence, and publishes
// authorization decisions to consumers.
package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voiceguard-ai/voiceguard/pkg/voiceprint"
)

// CallStatus is the authorization outcome of one analysis cycle.
type CallStatus string

const (
	StatusAuthorized CallStatus = "Authorized"
	StatusBlocked    CallStatus = "Blocked"
)

// CallEvent is one published authorization decision. Immutable once
// created.
type CallEvent struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	Caller     string     `json:"caller"`
	Confidence float64    `json:"confidence"`
	Status     CallStatus `json:"status"`
}

// NewCallEvent builds a CallEvent from a match decision.
func NewCallEvent(d voiceprint.Decision) CallEvent {
	status := StatusBlocked
	if d.Authorized {
		status = StatusAuthorized
	}
	return CallEvent{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Caller:     d.Caller,
		Confidence: d.Confidence,
		Status:     status,
	}
}

// DefaultHistoryLimit bounds the trailing call history consumers keep.
const DefaultHistoryLimit = 20

// History is a bounded trailing list of CallEvents, newest first. It is
// consumer-side state: the worker publishes to an EventChan and whoever
// drains it appends here.
type History struct {
	mu     sync.Mutex
	limit  int
	events []CallEvent
}

// NewHistory creates a History keeping at most limit events.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Add appends events, discarding the oldest beyond the limit.
func (h *History) Add(events ...CallEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, events...)
	if over := len(h.events) - h.limit; over > 0 {
		h.events = append(h.events[:0], h.events[over:]...)
	}
}

// Recent returns the retained events, most recent first.
func (h *History) Recent() []CallEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]CallEvent, len(h.events))
	for i, evt := range h.events {
		out[len(h.events)-1-i] = evt
	}
	return out
}

// Len returns the number of retained events.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}
