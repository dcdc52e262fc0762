package embedding

import (
	"context"
	"sync"
)

// MockExtractor is a mock implementation of Extractor for testing. It
// allows customizing the behavior of Extract through the ExtractFunc
// field.
type MockExtractor struct {
	// ExtractFunc is called when Extract is invoked. If nil, a zero
	// vector of dimension Dimension is returned.
	ExtractFunc func(samples []float32) ([]float32, error)

	// Dimension is returned by Dim. Defaults to 4 via NewMockExtractor.
	Dimension int

	// ExtractCalls counts calls to Extract.
	ExtractCalls int

	mu sync.Mutex
}

// NewMockExtractor creates a MockExtractor with the default dimension.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{Dimension: 4}
}

// NewMockExtractorWithVector creates a MockExtractor that always returns
// a copy of the given vector.
func NewMockExtractorWithVector(vec []float32) *MockExtractor {
	return &MockExtractor{
		Dimension: len(vec),
		ExtractFunc: func(samples []float32) ([]float32, error) {
			out := make([]float32, len(vec))
			copy(out, vec)
			return out, nil
		},
	}
}

// Extract implements Extractor.
func (m *MockExtractor) Extract(ctx context.Context, samples []float32) ([]float32, error) {
	m.mu.Lock()
	m.ExtractCalls++
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(samples)
	}
	return make([]float32, m.Dimension), nil
}

// Dim implements Extractor.
func (m *MockExtractor) Dim() int {
	return m.Dimension
}

// CallCount returns how many times Extract was invoked.
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExtractCalls
}

// Ensure MockExtractor implements Extractor at compile time.
var _ Extractor = (*MockExtractor)(nil)
