package embedding

import (
	"context"
	"fmt"
	"math"
)

const (
	// SpectralDim is the embedding dimension of the built-in extractor.
	SpectralDim = 32

	frameSize = 400 // 25ms at 16kHz
	frameHop  = 160 // 10ms at 16kHz

	bandLowHz  = 100.0
	bandHighHz = 3800.0
)

// SpectralExtractor is the built-in pure-Go extractor. It characterizes a
// voice by its long-term spectral envelope: per-frame band energies from a
// geometrically spaced Goertzel filterbank, averaged over the window,
// log-compressed and L2-normalized. It is deterministic, so identical
// audio always produces the identical embedding.
//
// It is the default when no ONNX model is configured. It resolves timbre
// differences well enough for the demo pipeline but is no substitute for
// a trained speaker model.
type SpectralExtractor struct {
	sampleRate int
	coeffs     []float64 // Goertzel coefficient per band
}

// NewSpectralExtractor creates an extractor for audio at sampleRate Hz.
func NewSpectralExtractor(sampleRate int) (*SpectralExtractor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if float64(sampleRate)/2 <= bandHighHz {
		return nil, fmt.Errorf("sample rate %d too low for %0.f Hz filterbank", sampleRate, bandHighHz)
	}

	// Geometric spacing packs more bands into the low frequencies where
	// voices differ most.
	ratio := math.Pow(bandHighHz/bandLowHz, 1.0/float64(SpectralDim-1))
	coeffs := make([]float64, SpectralDim)
	freq := bandLowHz
	for i := range coeffs {
		coeffs[i] = 2 * math.Cos(2*math.Pi*freq/float64(sampleRate))
		freq *= ratio
	}

	return &SpectralExtractor{
		sampleRate: sampleRate,
		coeffs:     coeffs,
	}, nil
}

// Dim implements Extractor.
func (e *SpectralExtractor) Dim() int {
	return SpectralDim
}

// Extract implements Extractor. Silent (all-zero) audio yields the zero
// vector, which downstream matching scores as similarity 0.
func (e *SpectralExtractor) Extract(ctx context.Context, samples []float32) ([]float32, error) {
	if len(samples) < frameSize {
		return nil, &Error{Message: fmt.Sprintf("window too short: %d samples, need at least %d", len(samples), frameSize)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Message: "extraction canceled", Err: err}
	}

	acc := make([]float64, SpectralDim)
	frames := 0
	for off := 0; off+frameSize <= len(samples); off += frameHop {
		frame := samples[off : off+frameSize]
		for b, coeff := range e.coeffs {
			acc[b] += goertzelPower(frame, coeff)
		}
		frames++
	}

	// Average over frames, log-compress, L2-normalize.
	var norm float64
	out := make([]float32, SpectralDim)
	for b := range acc {
		v := math.Log1p(acc[b] / float64(frames))
		out[b] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for b := range out {
			out[b] *= inv
		}
	}

	return out, nil
}

// goertzelPower evaluates a single-bin Goertzel filter over one frame and
// returns its output power.
func goertzelPower(frame []float32, coeff float64) float64 {
	var s0, s1, s2 float64
	for _, x := range frame {
		s0 = float64(x) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}

// Ensure SpectralExtractor implements Extractor at compile time.
var _ Extractor = (*SpectralExtractor)(nil)
