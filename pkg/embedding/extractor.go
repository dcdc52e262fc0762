// Package embedding turns an audio window into a fixed-dimension voice
// embedding vector. The model itself is opaque to the rest of the system:
// callers only rely on the Extractor contract, which allows swapping the
// built-in spectral extractor for an ONNX speaker model (build tag "onnx")
// or a mock in tests.
package embedding

import "context"

// Extractor maps a mono audio window to a fixed-dimension voice embedding.
type Extractor interface {
	// Extract computes the embedding for samples, normalized float32
	// values in [-1, 1] at the extractor's expected sample rate. The
	// returned vector always has Dim() elements.
	Extract(ctx context.Context, samples []float32) ([]float32, error)

	// Dim returns the embedding dimension.
	Dim() int
}

// Error wraps an extraction failure.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
