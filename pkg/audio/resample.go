package audio

import "fmt"

// Resample converts mono samples between rates by linear interpolation.
// Telephone-quality sources arrive at 8 kHz while the pipeline analyzes at
// 16 kHz, so upsampling by an integer factor is the common case. For speech
// matching the interpolation error is well below the quantization noise of
// the 16-bit source.
func Resample(samples []float32, inRate, outRate int) ([]float32, error) {
	if inRate <= 0 {
		return nil, fmt.Errorf("invalid input sample rate: %d", inRate)
	}
	if outRate <= 0 {
		return nil, fmt.Errorf("invalid output sample rate: %d", outRate)
	}
	if inRate == outRate || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	outLen := len(samples) * outRate / inRate
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float32, outLen)

	ratio := float64(inRate) / float64(outRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out, nil
}
