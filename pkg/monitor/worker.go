package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
	"github.com/voiceguard-ai/voiceguard/pkg/capture"
	"github.com/voiceguard-ai/voiceguard/pkg/embedding"
	"github.com/voiceguard-ai/voiceguard/pkg/trace"
	"github.com/voiceguard-ai/voiceguard/pkg/voiceprint"
)

// State is the worker lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds the monitoring worker configuration.
type Config struct {
	// SampleRate of the captured audio in Hz.
	SampleRate int
	// WindowSec is the analyzed window duration in seconds.
	WindowSec int
	// HopInterval is the pause after each completed analysis.
	HopInterval time.Duration
	// QueueSize bounds the capture input queue.
	QueueSize int
	// QueueWaitTimeout bounds each queue wait so stop requests are
	// observed promptly even with no incoming audio.
	QueueWaitTimeout time.Duration
	// EventBuffer bounds the outgoing event channel.
	EventBuffer int
}

// DefaultConfig returns the standard monitoring configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		WindowSec:        3,
		HopInterval:      time.Second,
		QueueSize:        64,
		QueueWaitTimeout: 200 * time.Millisecond,
		EventBuffer:      64,
	}
}

// Worker is the monitoring state machine. While running, a single
// dedicated goroutine drains the input queue into the sliding window and,
// whenever the queue is empty after a push, extracts the window's
// embedding, matches it against the enrolled references and publishes a
// CallEvent. When chunks arrive faster than one hop interval the analysis
// step is skipped until the backlog drains (load-shedding), so matching
// never falls behind real time.
//
// The worker owns the window exclusively and performs all matching
// serially. Stop is cooperative and idempotent; a stopped worker can be
// restarted.
type Worker struct {
	cfg       Config
	store     *voiceprint.Store
	matcher   *voiceprint.Matcher
	extractor embedding.Extractor
	source    capture.Source

	window *audio.SlidingWindow
	in     chan audio.Chunk
	events *EventChan
	stats  *SessionStats

	mu     sync.Mutex
	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker assembles a worker from its collaborators.
func NewWorker(cfg Config, store *voiceprint.Store, matcher *voiceprint.Matcher, extractor embedding.Extractor, source capture.Source) *Worker {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.WindowSec <= 0 {
		cfg.WindowSec = 3
	}
	if cfg.HopInterval <= 0 {
		cfg.HopInterval = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.QueueWaitTimeout <= 0 {
		cfg.QueueWaitTimeout = 200 * time.Millisecond
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}

	return &Worker{
		cfg:       cfg,
		store:     store,
		matcher:   matcher,
		extractor: extractor,
		source:    source,
		window:    audio.NewSlidingWindow(cfg.SampleRate, cfg.WindowSec),
		in:        make(chan audio.Chunk, cfg.QueueSize),
		events:    NewEventChan(cfg.EventBuffer),
		stats:     &SessionStats{},
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Stats returns the session statistics, readable at any time.
func (w *Worker) Stats() *SessionStats {
	return w.stats
}

// Events returns the outgoing event channel.
func (w *Worker) Events() *EventChan {
	return w.events
}

// Matcher returns the matcher, whose threshold may be adjusted while the
// worker runs; the next analysis cycle observes the new value.
func (w *Worker) Matcher() *voiceprint.Matcher {
	return w.matcher
}

// Start transitions Idle → Running: it requires at least one enrolled
// reference, resets the sliding window, records the session start time,
// attaches the capture source and launches the processing loop. On
// failure the state stays Idle.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == StateRunning {
		return &Error{Code: ErrCodeConfiguration, Message: "monitoring already running"}
	}
	if w.store.Count() == 0 {
		return &Error{Code: ErrCodeConfiguration, Message: "no enrolled reference voices"}
	}

	// Discard chunks a lingering capture stream queued while idle.
	stale := 0
	for {
		select {
		case <-w.in:
			stale++
			continue
		default:
		}
		break
	}
	if stale > 0 {
		log.Printf("[Worker] discarded %d stale chunk(s) queued while idle", stale)
	}

	w.window.Reset()
	w.stats.reset(time.Now())
	w.events.Clear()

	runCtx, cancel := context.WithCancel(ctx)
	if err := w.source.Start(runCtx, w.in); err != nil {
		cancel()
		return &Error{Code: ErrCodeCapture, Message: "failed to open capture source", Err: err}
	}

	w.cancel = cancel
	w.state.Store(int32(StateRunning))
	w.wg.Add(1)
	go w.loop(runCtx)

	log.Printf("[Worker] monitoring started: %d reference(s), %ds window, %s hop",
		w.store.Count(), w.cfg.WindowSec, w.cfg.HopInterval)
	return nil
}

// Stop transitions Running → Idle. The loop observes the request at the
// next queue wait or timeout; the capture source is detached. Calling
// Stop while idle is a no-op.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() != StateRunning {
		return nil
	}

	w.cancel()
	w.cancel = nil
	w.wg.Wait()

	if err := w.source.Stop(); err != nil {
		log.Printf("[Worker] capture source stop: %v", err)
	}
	w.state.Store(int32(StateIdle))

	log.Printf("[Worker] monitoring stopped after %d analysis cycle(s)", w.stats.Total())
	return nil
}

// loop is the processing loop, run on the worker's dedicated goroutine.
func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	timeout := time.NewTimer(w.cfg.QueueWaitTimeout)
	defer timeout.Stop()

	for {
		if !timeout.Stop() {
			select {
			case <-timeout.C:
			default:
			}
		}
		timeout.Reset(w.cfg.QueueWaitTimeout)

		select {
		case <-ctx.Done():
			return

		case chunk := <-w.in:
			w.window.Push(chunk.Samples)

			// Load-shedding: more chunks already queued means we are
			// behind real time. Keep draining; the analysis catches up
			// on a slightly older window instead of lagging further.
			if len(w.in) > 0 {
				continue
			}

			if w.analyze(ctx) {
				// Rate-limit to the hop cadence. Skipped iterations do
				// not pause.
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.cfg.HopInterval):
				}
			}

		case <-timeout.C:
			// No audio within the wait bound; loop to observe a stop
			// request.
		}
	}
}

// analyze runs one extraction + match cycle over the current window and
// reports whether it completed. Failures are logged and skipped; they
// never terminate the loop.
func (w *Worker) analyze(ctx context.Context) (completed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Worker] analysis panic recovered: %v", r)
			completed = false
		}
	}()

	ctx, span := trace.StartSpan(ctx, "monitor.analyze")
	defer span.End()
	trace.SetAttributes(span,
		attribute.Int(trace.AttrAudioSampleRate, w.cfg.SampleRate),
		attribute.Int(trace.AttrAudioWindowSec, w.cfg.WindowSec),
	)

	snapshot := w.window.Snapshot()
	vec, err := w.extractor.Extract(ctx, snapshot)
	if err != nil {
		trace.RecordError(span, err)
		log.Printf("[Worker] extraction failed, skipping cycle: %v", err)
		return false
	}

	refs := w.store.References()
	decision := w.matcher.Match(vec, refs)
	evt := NewCallEvent(decision)

	w.stats.record(decision.Authorized)
	w.events.Publish(evt)

	trace.SetAttributes(span,
		attribute.Int(trace.AttrAnalysisReferences, len(refs)),
		attribute.String(trace.AttrAnalysisCaller, evt.Caller),
		attribute.Float64(trace.AttrAnalysisConfidence, evt.Confidence),
		attribute.Bool(trace.AttrAnalysisAuthorized, decision.Authorized),
	)
	log.Printf("[Worker] %s: caller=%q confidence=%.2f", evt.Status, evt.Caller, evt.Confidence)
	return true
}
