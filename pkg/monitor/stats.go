package monitor

import (
	"sync/atomic"
	"time"
)

// SessionStats holds the cumulative counters of one monitoring session.
// Only the worker increments them; any goroutine may read a snapshot at
// any time. Each counter read is atomic, so a single counter is never
// torn, but the triple is not read under one lock.
type SessionStats struct {
	total      atomic.Int64
	authorized atomic.Int64
	blocked    atomic.Int64
	startNanos atomic.Int64
}

// StatsSnapshot is a point-in-time view of SessionStats.
type StatsSnapshot struct {
	TotalCalls      int64     `json:"total_calls"`
	AuthorizedCalls int64     `json:"authorized_calls"`
	BlockedCalls    int64     `json:"blocked_calls"`
	BlockRate       float64   `json:"block_rate"`
	StartTime       time.Time `json:"start_time"`
}

// reset zeroes the counters and records the session start time.
func (s *SessionStats) reset(start time.Time) {
	s.total.Store(0)
	s.authorized.Store(0)
	s.blocked.Store(0)
	s.startNanos.Store(start.UnixNano())
}

// record counts one completed analysis. Exactly one of authorized or
// blocked is incremented alongside the total.
func (s *SessionStats) record(authorized bool) {
	s.total.Add(1)
	if authorized {
		s.authorized.Add(1)
	} else {
		s.blocked.Add(1)
	}
}

// Total returns the number of completed analyses.
func (s *SessionStats) Total() int64 {
	return s.total.Load()
}

// Authorized returns the number of authorized decisions.
func (s *SessionStats) Authorized() int64 {
	return s.authorized.Load()
}

// Blocked returns the number of blocked decisions.
func (s *SessionStats) Blocked() int64 {
	return s.blocked.Load()
}

// StartTime returns when the current session started. Zero before the
// first start.
func (s *SessionStats) StartTime() time.Time {
	nanos := s.startNanos.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Snapshot returns a point-in-time view of all counters plus the derived
// block rate in percent.
func (s *SessionStats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		TotalCalls:      s.Total(),
		AuthorizedCalls: s.Authorized(),
		BlockedCalls:    s.Blocked(),
		StartTime:       s.StartTime(),
	}
	if snap.TotalCalls > 0 {
		snap.BlockRate = float64(snap.BlockedCalls) / float64(snap.TotalCalls) * 100
	}
	return snap
}
