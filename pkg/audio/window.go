// Package audio provides audio processing utilities.
//
// SlidingWindow implements the fixed-duration trailing slice of captured
// audio that is analyzed as one unit. Unlike a growable buffer, the window
// is always exactly full length: before the first fill the head is
// zero-padded, and every push evicts as many of the oldest samples as it
// appends.
//
// Main features:
//   - Fixed length based on sample rate and window duration
//   - Oldest-first eviction on every push (shift-register semantics)
//   - Side-effect free snapshots for analysis
//
// Usage:
//
//	w := NewSlidingWindow(16000, 3) // 3s at 16kHz
//	w.Push(chunk.Samples)
//	samples := w.Snapshot()
//
// SlidingWindow is not safe for concurrent use. It is owned by a single
// monitoring goroutine; snapshots are copies and may outlive the owner.
package audio

// SlidingWindow holds the most recent windowSec seconds of mono float32
// samples at a fixed sample rate.
type SlidingWindow struct {
	data     []float32
	writePos int // next write position
	filled   int // samples written so far, capped at len(data)
}

// NewSlidingWindow creates a window of windowSec seconds at sampleRate Hz.
// sampleRate: audio sample rate in Hz (e.g., 16000)
// windowSec: window duration in seconds (e.g., 3)
func NewSlidingWindow(sampleRate, windowSec int) *SlidingWindow {
	return &SlidingWindow{
		data: make([]float32, sampleRate*windowSec),
	}
}

// Len returns the fixed window length in samples.
func (w *SlidingWindow) Len() int {
	return len(w.data)
}

// Push appends samples to the window, evicting an equal count of the
// oldest samples. If the slice is longer than the window, only its tail
// is kept.
func (w *SlidingWindow) Push(samples []float32) {
	n := len(samples)
	if n == 0 {
		return
	}

	// Incoming slice covers the whole window: keep only the tail.
	if n >= len(w.data) {
		copy(w.data, samples[n-len(w.data):])
		w.writePos = 0
		w.filled = len(w.data)
		return
	}

	spaceToEnd := len(w.data) - w.writePos
	if n <= spaceToEnd {
		copy(w.data[w.writePos:], samples)
		w.writePos += n
		if w.writePos == len(w.data) {
			w.writePos = 0
		}
	} else {
		copy(w.data[w.writePos:], samples[:spaceToEnd])
		copy(w.data[0:], samples[spaceToEnd:])
		w.writePos = n - spaceToEnd
	}

	w.filled += n
	if w.filled > len(w.data) {
		w.filled = len(w.data)
	}
}

// Snapshot returns the window contents in chronological order as a copy of
// fixed length Len(). Samples not yet written read as zero (leading pad).
// Does not modify the window state.
func (w *SlidingWindow) Snapshot() []float32 {
	result := make([]float32, len(w.data))

	if w.filled < len(w.data) {
		// Not yet wrapped: data occupies [0, filled), pad leads.
		copy(result[len(w.data)-w.filled:], w.data[:w.filled])
	} else {
		// Full: oldest sample sits at writePos.
		firstPartLen := len(w.data) - w.writePos
		copy(result[:firstPartLen], w.data[w.writePos:])
		copy(result[firstPartLen:], w.data[:w.writePos])
	}

	return result
}

// Reset returns the window to its initial zero-padded state.
func (w *SlidingWindow) Reset() {
	for i := range w.data {
		w.data[i] = 0
	}
	w.writePos = 0
	w.filled = 0
}
