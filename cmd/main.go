package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
	"github.com/voiceguard-ai/voiceguard/pkg/capture"
	"github.com/voiceguard-ai/voiceguard/pkg/embedding"
	"github.com/voiceguard-ai/voiceguard/pkg/monitor"
	"github.com/voiceguard-ai/voiceguard/pkg/server"
	"github.com/voiceguard-ai/voiceguard/pkg/trace"
	"github.com/voiceguard-ai/voiceguard/pkg/voiceprint"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[Main] invalid %s=%q, using %d", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("[Main] invalid %s=%q, using %g", key, v, defaultValue)
	}
	return defaultValue
}

// newExtractor picks the embedding backend. An ONNX speaker model is used
// when VOICEGUARD_MODEL_PATH is set and the binary was built with the onnx
// tag, otherwise the built-in spectral extractor.
func newExtractor(sampleRate int) (embedding.Extractor, error) {
	modelPath := os.Getenv("VOICEGUARD_MODEL_PATH")
	if modelPath != "" {
		if err := embedding.InitRuntime(os.Getenv("ONNXRUNTIME_LIB_PATH")); err != nil {
			log.Printf("[Main] ONNX runtime unavailable: %v, falling back to spectral extractor", err)
		} else {
			ex, err := embedding.NewONNXExtractor(embedding.ONNXConfig{
				ModelPath:    modelPath,
				SampleRate:   sampleRate,
				EmbeddingDim: getEnvInt("VOICEGUARD_MODEL_DIM", 192),
			})
			if err == nil {
				log.Printf("[Main] using ONNX extractor: %s", modelPath)
				return ex, nil
			}
			log.Printf("[Main] ONNX extractor unavailable: %v, falling back to spectral extractor", err)
		}
	}
	return embedding.NewSpectralExtractor(sampleRate)
}

// newSource picks the audio source. VOICEGUARD_REPLAY_FILE switches from the
// default microphone capture to looping playback of a WAV file, which is how
// incoming calls are simulated without audio hardware.
func newSource(sampleRate int) (capture.Source, error) {
	replayFile := os.Getenv("VOICEGUARD_REPLAY_FILE")
	if replayFile == "" {
		return capture.NewDeviceSource(), nil
	}

	data, err := os.ReadFile(replayFile)
	if err != nil {
		return nil, err
	}
	samples, info, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	if info.SampleRate != sampleRate {
		log.Printf("[Main] resampling replay file from %d Hz to %d Hz", info.SampleRate, sampleRate)
		samples, err = audio.Resample(samples, info.SampleRate, sampleRate)
		if err != nil {
			return nil, err
		}
	}
	log.Printf("[Main] replaying %s (%d samples, looped)", replayFile, len(samples))
	return capture.NewReplaySource(capture.ReplayConfig{
		Samples:    samples,
		SampleRate: sampleRate,
		Realtime:   true,
		Loop:       true,
	})
}

func main() {
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Printf("[Main] tracing disabled: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		trace.Shutdown(shutdownCtx)
	}()

	cfg := monitor.DefaultConfig()
	cfg.SampleRate = getEnvInt("VOICEGUARD_SAMPLE_RATE", cfg.SampleRate)
	cfg.WindowSec = getEnvInt("VOICEGUARD_WINDOW_SEC", cfg.WindowSec)
	if hopMs := getEnvInt("VOICEGUARD_HOP_MS", 0); hopMs > 0 {
		cfg.HopInterval = time.Duration(hopMs) * time.Millisecond
	}

	extractor, err := newExtractor(cfg.SampleRate)
	if err != nil {
		log.Fatalf("[Main] create extractor: %v", err)
	}

	voicesDir := getEnv("VOICEGUARD_VOICES_DIR", "voices")
	store := voiceprint.NewStore(voicesDir, cfg.SampleRate, extractor)
	failures, err := store.Load(ctx)
	if err != nil {
		log.Fatalf("[Main] load voices from %s: %v", voicesDir, err)
	}
	for name, ferr := range failures {
		log.Printf("[Main] skipping voice sample %s: %v", name, ferr)
	}
	log.Printf("[Main] loaded %d enrolled voices from %s", store.Count(), voicesDir)

	source, err := newSource(cfg.SampleRate)
	if err != nil {
		log.Fatalf("[Main] create audio source: %v", err)
	}

	threshold := getEnvFloat("VOICEGUARD_THRESHOLD", 0.75)
	matcher := voiceprint.NewMatcher(threshold)
	worker := monitor.NewWorker(cfg, store, matcher, extractor, source)

	srv := server.NewServer(worker, store, extractor, cfg.SampleRate)
	srv.Start(ctx)

	if getEnv("VOICEGUARD_AUTOSTART", "false") == "true" {
		if err := worker.Start(ctx); err != nil {
			log.Printf("[Main] monitoring not started: %v", err)
		}
	}

	addr := getEnv("VOICEGUARD_HTTP_ADDR", ":8080")
	httpServer := &http.Server{Addr: addr, Handler: srv.Routes()}
	go func() {
		log.Printf("[Main] VoiceGuard server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Main] HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[Main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] HTTP shutdown: %v", err)
	}
	if err := worker.Stop(); err != nil {
		log.Printf("[Main] worker stop: %v", err)
	}
	srv.Stop()
}
