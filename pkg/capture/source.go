// Package capture provides audio capture sources for the monitoring
// pipeline. A Source is the producer side of the worker's input queue: it
// delivers fixed-format mono chunks and returns immediately, never
// blocking the capture context. When the queue is full the chunk is
// dropped; the worker's load-shedding keeps that rare.
package capture

import (
	"context"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
)

// Source asynchronously delivers audio chunks into a queue.
type Source interface {
	// Start opens the source and begins delivering chunks into sink.
	// Delivery is non-blocking; chunks that do not fit are dropped.
	// A source that fails to open returns an error and delivers nothing.
	Start(ctx context.Context, sink chan<- audio.Chunk) error

	// Stop detaches the source and ends delivery. Idempotent.
	Stop() error
}

// deliver performs the non-blocking hand-off into the queue. It reports
// whether the chunk was accepted.
func deliver(sink chan<- audio.Chunk, chunk audio.Chunk) bool {
	select {
	case sink <- chunk:
		return true
	default:
		return false
	}
}
