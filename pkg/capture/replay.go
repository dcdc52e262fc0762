package capture

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
)

// ReplaySource replays pre-recorded samples through the pipeline as if a
// call were in progress. It backs simulated calls and tests: the samples
// are split into fixed-size chunks and delivered either paced in real
// time or as fast as the queue accepts them.
type ReplaySource struct {
	samples    []float32
	sampleRate int
	chunkMs    int
	realtime   bool
	loop       bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// ReplayConfig configures a ReplaySource.
type ReplayConfig struct {
	// Samples is the mono audio to replay.
	Samples []float32
	// SampleRate of the samples in Hz.
	SampleRate int
	// ChunkMs is the chunk duration (default 20ms, the device period).
	ChunkMs int
	// Realtime paces delivery at the chunk cadence; false delivers as
	// fast as possible (burst mode, exercises load-shedding).
	Realtime bool
	// Loop restarts from the beginning after the last chunk.
	Loop bool
}

// NewReplaySource creates a replay source over the given samples.
func NewReplaySource(cfg ReplayConfig) (*ReplaySource, error) {
	if len(cfg.Samples) == 0 {
		return nil, fmt.Errorf("no samples to replay")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", cfg.SampleRate)
	}
	if cfg.ChunkMs <= 0 {
		cfg.ChunkMs = DevicePeriodMs
	}
	return &ReplaySource{
		samples:    cfg.Samples,
		sampleRate: cfg.SampleRate,
		chunkMs:    cfg.ChunkMs,
		realtime:   cfg.Realtime,
		loop:       cfg.Loop,
	}, nil
}

// Start implements Source. Delivery runs on its own goroutine until the
// samples are exhausted (unless looping), the context ends, or Stop is
// called.
func (r *ReplaySource) Start(ctx context.Context, sink chan<- audio.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return fmt.Errorf("replay already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	chunkLen := r.sampleRate * r.chunkMs / 1000
	interval := time.Duration(r.chunkMs) * time.Millisecond

	// The goroutine closes its own copy of done; Stop nils the field, so
	// touching r.done here would race.
	go func() {
		defer close(done)

		for {
			for off := 0; off < len(r.samples); off += chunkLen {
				end := off + chunkLen
				if end > len(r.samples) {
					end = len(r.samples)
				}
				deliver(sink, audio.NewChunk(r.samples[off:end]))

				if r.realtime {
					select {
					case <-ctx.Done():
						return
					case <-time.After(interval):
					}
				} else if ctx.Err() != nil {
					return
				}
			}
			if !r.loop {
				return
			}
		}
	}()

	log.Printf("[Capture] replaying %d sample(s) in %dms chunks (realtime=%v loop=%v)",
		len(r.samples), r.chunkMs, r.realtime, r.loop)
	return nil
}

// Stop implements Source. It waits for the delivery goroutine to exit.
func (r *ReplaySource) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Ensure ReplaySource implements Source at compile time.
var _ Source = (*ReplaySource)(nil)
