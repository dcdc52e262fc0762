//go:build !onnx

package embedding

import (
	"context"
	"fmt"
)

// Stub implementations used when the binary is built without the "onnx"
// tag. They let callers reference the ONNX extractor unconditionally and
// fail at construction time instead of compile time.

// ONNXConfig holds configuration for creating an ONNX extractor.
type ONNXConfig struct {
	ModelPath    string
	SampleRate   int
	EmbeddingDim int
	InputName    string
	OutputName   string
}

// ONNXExtractor is unavailable without the "onnx" build tag.
type ONNXExtractor struct{}

// InitRuntime reports that ONNX support is not compiled in.
func InitRuntime(libraryPath string) error {
	return fmt.Errorf("ONNX support not compiled in (build with -tags onnx)")
}

// DestroyRuntime is a no-op without ONNX support.
func DestroyRuntime() error {
	return nil
}

// NewONNXExtractor reports that ONNX support is not compiled in.
func NewONNXExtractor(cfg ONNXConfig) (*ONNXExtractor, error) {
	return nil, fmt.Errorf("ONNX support not compiled in (build with -tags onnx)")
}

// Dim implements Extractor.
func (ex *ONNXExtractor) Dim() int { return 0 }

// Extract implements Extractor.
func (ex *ONNXExtractor) Extract(ctx context.Context, samples []float32) ([]float32, error) {
	return nil, fmt.Errorf("ONNX support not compiled in (build with -tags onnx)")
}

// Destroy is a no-op without ONNX support.
func (ex *ONNXExtractor) Destroy() error { return nil }
