//go:build onnx

package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// runtimeInitialized tracks whether the ONNX runtime has been initialized.
var (
	runtimeInitialized bool
	runtimeMu          sync.Mutex
)

// InitRuntime initializes the ONNX runtime environment. libraryPath can be
// empty to use auto-detection, or specify the path to libonnxruntime.so.
// Call once at application startup before creating any ONNX extractors.
func InitRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInitialized {
		return nil
	}

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	} else if libPath := findONNXRuntimeLibrary(); libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	runtimeInitialized = true
	return nil
}

// DestroyRuntime destroys the ONNX runtime environment at shutdown.
func DestroyRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !runtimeInitialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX runtime: %w", err)
	}

	runtimeInitialized = false
	return nil
}

// findONNXRuntimeLibrary tries common locations for the shared library.
func findONNXRuntimeLibrary() string {
	paths := []string{
		os.Getenv("ONNXRUNTIME_LIB"),
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/onnxruntime/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}

	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		for _, dir := range filepath.SplitList(ldPath) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.so"))
		}
	}
	if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
		for _, dir := range filepath.SplitList(dyldPath) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.dylib"))
		}
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// ONNXConfig holds configuration for creating an ONNX extractor.
type ONNXConfig struct {
	// ModelPath is the path to the speaker-embedding ONNX model.
	ModelPath string
	// SampleRate of the input audio. Most speaker models expect 16000.
	SampleRate int
	// EmbeddingDim is the model's output dimension (e.g., 192 or 256).
	EmbeddingDim int
	// InputName and OutputName override the model tensor names.
	// Defaults: "input" and "embedding".
	InputName  string
	OutputName string
}

// IsValid validates the configuration.
func (c ONNXConfig) IsValid() error {
	if c.ModelPath == "" {
		return fmt.Errorf("invalid ModelPath: should not be empty")
	}
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("invalid SampleRate: valid values are 8000 and 16000")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("invalid EmbeddingDim: %d", c.EmbeddingDim)
	}
	return nil
}

// ONNXExtractor runs a speaker-embedding model through ONNX Runtime. Each
// Extract call is a full forward pass over the audio window; the model is
// stateless between calls.
type ONNXExtractor struct {
	session *ort.DynamicAdvancedSession
	cfg     ONNXConfig

	inputNames  []string
	outputNames []string
}

// NewONNXExtractor creates an extractor for the given model. The ONNX
// runtime is initialized automatically if InitRuntime was not called.
func NewONNXExtractor(cfg ONNXConfig) (*ONNXExtractor, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "embedding"
	}

	runtimeMu.Lock()
	initialized := runtimeInitialized
	runtimeMu.Unlock()
	if !initialized {
		if err := InitRuntime(""); err != nil {
			return nil, fmt.Errorf("ONNX runtime not initialized: %w", err)
		}
	}

	ex := &ONNXExtractor{
		cfg:         cfg,
		inputNames:  []string{cfg.InputName},
		outputNames: []string{cfg.OutputName},
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("failed to set graph optimization level: %w", err)
	}
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		ex.inputNames,
		ex.outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	ex.session = session
	return ex, nil
}

// Dim implements Extractor.
func (ex *ONNXExtractor) Dim() int {
	return ex.cfg.EmbeddingDim
}

// Extract implements Extractor.
func (ex *ONNXExtractor) Extract(ctx context.Context, samples []float32) ([]float32, error) {
	if ex == nil || ex.session == nil {
		return nil, &Error{Message: "extractor not initialized"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Message: "extraction canceled", Err: err}
	}

	inputShape := ort.NewShape(1, int64(len(samples)))
	inputTensor, err := ort.NewTensor(inputShape, samples)
	if err != nil {
		return nil, &Error{Message: "failed to create input tensor", Err: err}
	}
	defer inputTensor.Destroy()

	outputShape := ort.NewShape(1, int64(ex.cfg.EmbeddingDim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, &Error{Message: "failed to create output tensor", Err: err}
	}
	defer outputTensor.Destroy()

	inputs := []ort.Value{inputTensor}
	outputs := []ort.Value{outputTensor}
	if err := ex.session.Run(inputs, outputs); err != nil {
		return nil, &Error{Message: "failed to run inference", Err: err}
	}

	data := outputTensor.GetData()
	if len(data) != ex.cfg.EmbeddingDim {
		return nil, &Error{Message: fmt.Sprintf("model returned %d values, want %d", len(data), ex.cfg.EmbeddingDim)}
	}

	out := make([]float32, ex.cfg.EmbeddingDim)
	copy(out, data)
	return out, nil
}

// Destroy releases the model session. The extractor must not be used
// afterwards.
func (ex *ONNXExtractor) Destroy() error {
	if ex.session != nil {
		if err := ex.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
		ex.session = nil
	}
	return nil
}

// Ensure ONNXExtractor implements Extractor at compile time.
var _ Extractor = (*ONNXExtractor)(nil)
