package capture

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
)

const (
	// DeviceSampleRate is the capture device sample rate in Hz.
	DeviceSampleRate = 16000
	// DeviceChannels is the capture channel count (mono).
	DeviceChannels = 1
	// DevicePeriodMs is the device period, i.e. chunk duration.
	DevicePeriodMs = 20
)

// DeviceSource captures microphone audio through malgo (miniaudio). The
// device callback converts each S16 period to float32 and hands it to the
// queue without blocking; dropped chunks are counted and logged.
type DeviceSource struct {
	mu           sync.Mutex
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	dropped      atomic.Uint64
}

// NewDeviceSource creates an unopened microphone source.
func NewDeviceSource() *DeviceSource {
	return &DeviceSource{}
}

// Start implements Source. It initializes the default capture device at
// 16kHz mono S16 with 20ms periods.
func (d *DeviceSource) Start(ctx context.Context, sink chan<- audio.Chunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return fmt.Errorf("capture device already started")
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInMilliseconds = DevicePeriodMs
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = DeviceChannels
	deviceConfig.SampleRate = DeviceSampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(audioCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			// The callback runs on the audio thread and must return
			// immediately: convert, hand off, done.
			chunk := audio.NewChunk(audio.BytesToFloat32(inputSamples))
			if !deliver(sink, chunk) {
				if n := d.dropped.Add(1); n%100 == 1 {
					log.Printf("[Capture] input queue full, dropped %d chunk(s)", n)
				}
			}
		},
	})
	if err != nil {
		audioCtx.Uninit()
		audioCtx.Free()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		audioCtx.Uninit()
		audioCtx.Free()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	d.audioContext = audioCtx
	d.device = device
	log.Printf("[Capture] device started: %dHz mono, %dms periods", DeviceSampleRate, DevicePeriodMs)
	return nil
}

// Stop implements Source.
func (d *DeviceSource) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}

	d.device.Uninit()
	d.device = nil

	d.audioContext.Uninit()
	d.audioContext.Free()
	d.audioContext = nil

	log.Printf("[Capture] device stopped")
	return nil
}

// Ensure DeviceSource implements Source at compile time.
var _ Source = (*DeviceSource)(nil)
