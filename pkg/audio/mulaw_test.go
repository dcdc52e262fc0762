package audio

import "testing"

func TestMuLawKnownValues(t *testing.T) {
	cases := []struct {
		b    byte
		want int16
	}{
		{0x00, -32124},
		{0x7F, 0},
		{0x80, 32124},
		{0xFF, 0},
	}
	for _, c := range cases {
		if got := MuLawDecode(c.b); got != c.want {
			t.Errorf("MuLawDecode(0x%02x) = %d, want %d", c.b, got, c.want)
		}
	}
}

func TestMuLawCodeRoundTrip(t *testing.T) {
	// Every code except negative zero (0x7F) survives decode then encode.
	for b := 0; b < 256; b++ {
		if b == 0x7F {
			continue
		}
		decoded := MuLawDecode(byte(b))
		if got := MuLawEncode(decoded); got != byte(b) {
			t.Errorf("encode(decode(0x%02x)) = 0x%02x", b, got)
		}
	}
}

func TestMuLawSampleRoundTripIsClose(t *testing.T) {
	// Compression is lossy but the error stays within the segment's
	// quantization step.
	samples := []int16{0, 100, 1000, 10000, 32000, -100, -1000, -10000, -32000}
	for _, original := range samples {
		decoded := MuLawDecode(MuLawEncode(original))
		diff := original - decoded
		if diff < 0 {
			diff = -diff
		}
		abs := original
		if abs < 0 {
			abs = -abs
		}
		maxError := int16(float64(abs) * 0.05)
		if maxError < 200 {
			maxError = 200
		}
		if diff > maxError {
			t.Errorf("round trip of %d gave %d, diff %d exceeds %d", original, decoded, diff, maxError)
		}
	}
}

func TestMuLawBufferConversion(t *testing.T) {
	mulaw := []byte{0x00, 0x7F, 0x80, 0xFF, 0x25, 0xA5}
	pcm := MuLawToPCM(mulaw)
	if len(pcm) != len(mulaw)*2 {
		t.Fatalf("pcm length = %d, want %d", len(pcm), len(mulaw)*2)
	}
	for i, b := range mulaw {
		want := MuLawDecode(b)
		got := int16(pcm[i*2]) | (int16(pcm[i*2+1]) << 8)
		if got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}

	back := PCMToMuLaw(pcm)
	for i := range mulaw {
		if mulaw[i] == 0x7F {
			continue
		}
		if back[i] != mulaw[i] {
			t.Errorf("byte %d = 0x%02x, want 0x%02x", i, back[i], mulaw[i])
		}
	}
}
