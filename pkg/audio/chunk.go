package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Chunk is one block of captured mono audio. Ownership transfers into the
// monitor's input queue on delivery; it is consumed exactly once.
type Chunk struct {
	// Samples are mono float32 values in [-1, 1].
	Samples []float32
	// Frames is the frame count (equals len(Samples) for mono).
	Frames int
	// Timestamp is the capture time of the first sample.
	Timestamp time.Time
}

// NewChunk wraps samples in a Chunk stamped with the current time.
func NewChunk(samples []float32) Chunk {
	return Chunk{
		Samples:   samples,
		Frames:    len(samples),
		Timestamp: time.Now(),
	}
}

// BytesToFloat32 converts little-endian 16-bit PCM bytes to normalized
// float32 samples in [-1, 1]. A trailing odd byte is ignored.
func BytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// Float32ToBytes converts normalized float32 samples to little-endian
// 16-bit PCM bytes, clipping values outside [-1, 1]. Rounding uses the
// same 32768 scale as BytesToFloat32 so a round trip stays within half a
// quantization step.
func Float32ToBytes(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, v := range samples {
		s := int32(math.Round(float64(v) * 32768))
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(data[i*2:i*2+2], uint16(int16(s)))
	}
	return data
}
