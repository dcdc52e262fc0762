package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps raw 16-bit PCM data in a standard RIFF/WAVE container.
// This is the on-disk format for enrolled voice samples.
func EncodeWAV(pcmData []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer

	// RIFF header
	buf.WriteString("RIFF")
	fileSize := uint32(36 + len(pcmData))
	binary.Write(&buf, binary.LittleEndian, fileSize)
	buf.WriteString("WAVE")

	// fmt sub-chunk
	buf.WriteString("fmt ")
	subChunk1Size := uint32(16)
	binary.Write(&buf, binary.LittleEndian, subChunk1Size)
	audioFormat := uint16(1) // PCM
	binary.Write(&buf, binary.LittleEndian, audioFormat)
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))

	bitsPerSample := 16
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	binary.Write(&buf, binary.LittleEndian, byteRate)

	blockAlign := uint16(channels * bitsPerSample / 8)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	// data sub-chunk
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcmData)))
	buf.Write(pcmData)

	return buf.Bytes()
}

// WAV format codes.
const (
	wavFormatPCM  = 1
	wavFormatULaw = 7
)

// WAVInfo describes the format of a decoded WAV payload.
type WAVInfo struct {
	SampleRate int
	Channels   int
}

// DecodeWAV parses a RIFF/WAVE payload and returns normalized mono float32
// samples plus the declared format. 16-bit PCM and 8-bit G.711 μ-law are
// accepted; μ-law is what telephony gateways record. Multi-channel input is
// downmixed by averaging.
func DecodeWAV(data []byte) ([]float32, WAVInfo, error) {
	var info WAVInfo

	if len(data) < 44 {
		return nil, info, fmt.Errorf("wav payload too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, info, fmt.Errorf("not a RIFF/WAVE payload")
	}

	// Walk sub-chunks; "fmt " must precede "data".
	var (
		raw         []byte
		audioFormat uint16
		haveFormat  bool
	)
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, info, fmt.Errorf("malformed fmt chunk: %d bytes", chunkSize)
			}
			audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			switch {
			case audioFormat == wavFormatPCM && bits == 16:
			case audioFormat == wavFormatULaw && bits == 8:
			default:
				return nil, info, fmt.Errorf("unsupported wav format %d with %d-bit samples (want 16-bit PCM or 8-bit mu-law)", audioFormat, bits)
			}
			haveFormat = true
		case "data":
			raw = data[body : body+chunkSize]
		}

		// Chunks are word aligned.
		if chunkSize%2 == 1 {
			chunkSize++
		}
		pos = body + chunkSize
	}

	if !haveFormat {
		return nil, info, fmt.Errorf("missing fmt chunk")
	}
	if raw == nil {
		return nil, info, fmt.Errorf("missing data chunk")
	}
	if info.Channels < 1 {
		return nil, info, fmt.Errorf("invalid channel count %d", info.Channels)
	}

	if audioFormat == wavFormatULaw {
		raw = MuLawToPCM(raw)
	}
	samples := BytesToFloat32(raw)
	if info.Channels > 1 {
		mono := make([]float32, len(samples)/info.Channels)
		for i := range mono {
			var sum float32
			for c := 0; c < info.Channels; c++ {
				sum += samples[i*info.Channels+c]
			}
			mono[i] = sum / float32(info.Channels)
		}
		samples = mono
	}

	return samples, info, nil
}
