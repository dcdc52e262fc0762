package audio

// G.711 μ-law codec. Telephony gateways in North America and Japan deliver
// call audio in this encoding, so recorded call samples may arrive as 8-bit
// μ-law instead of linear PCM.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// muLawTable maps each μ-law byte to its 16-bit linear PCM value.
var muLawTable [256]int16

func init() {
	for b := 0; b < 256; b++ {
		u := ^byte(b)
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		magnitude := ((int16(mantissa) << 3) + muLawBias) << exponent
		magnitude -= muLawBias
		if u&0x80 != 0 {
			magnitude = -magnitude
		}
		muLawTable[b] = magnitude
	}
}

// MuLawDecode converts a single μ-law byte to a 16-bit signed PCM sample.
func MuLawDecode(b byte) int16 {
	return muLawTable[b]
}

// MuLawEncode converts a 16-bit signed PCM sample to μ-law.
func MuLawEncode(pcm int16) byte {
	sign := (pcm >> 8) & 0x80
	if sign != 0 {
		pcm = -pcm
	}
	if pcm > muLawClip {
		pcm = muLawClip
	}
	pcm += muLawBias

	segment := int16(7)
	for i, end := range [8]int16{0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF, 0x1FFF, 0x3FFF, 0x7FFF} {
		if pcm <= end {
			segment = int16(i)
			break
		}
	}

	return byte(^(sign | (segment << 4) | ((pcm >> (segment + 3)) & 0x0F)))
}

// MuLawToPCM expands μ-law bytes to little-endian 16-bit PCM.
func MuLawToPCM(mulaw []byte) []byte {
	pcm := make([]byte, len(mulaw)*2)
	for i, b := range mulaw {
		sample := muLawTable[b]
		pcm[i*2] = byte(sample)
		pcm[i*2+1] = byte(sample >> 8)
	}
	return pcm
}

// PCMToMuLaw compresses little-endian 16-bit PCM to μ-law bytes.
func PCMToMuLaw(pcm []byte) []byte {
	mulaw := make([]byte, len(pcm)/2)
	for i := range mulaw {
		sample := int16(pcm[i*2]) | (int16(pcm[i*2+1]) << 8)
		mulaw[i] = MuLawEncode(sample)
	}
	return mulaw
}
