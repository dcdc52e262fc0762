// Package voiceprint manages enrolled reference voices and matches live
// voice embeddings against them.
package voiceprint

import (
	"math"
	"sync/atomic"
	"time"
)

// UnknownCaller is the caller label used when no reference scores above
// the authorization threshold.
const UnknownCaller = "Unknown"

// Reference is an enrolled, named voice embedding used as a comparison
// target. The embedding is derived once at enrollment and never mutated.
type Reference struct {
	Name       string
	Embedding  []float32
	EnrolledAt time.Time
}

// Decision is the outcome of matching one live embedding against the
// enrolled references.
type Decision struct {
	// Caller is the best-matching reference name, or UnknownCaller.
	Caller string
	// Confidence is the best cosine similarity found, 0 with no references.
	Confidence float64
	// Authorized is true when Confidence reached the threshold.
	Authorized bool
}

// Matcher scores live embeddings against references using cosine
// similarity and a mutable authorization threshold. The threshold is read
// once per Match call, so concurrent SetThreshold takes effect on the
// next decision, never mid-decision.
type Matcher struct {
	threshold atomic.Uint64 // float64 bits
}

// NewMatcher creates a Matcher with the given initial threshold.
func NewMatcher(threshold float64) *Matcher {
	m := &Matcher{}
	m.SetThreshold(threshold)
	return m
}

// Threshold returns the current authorization threshold.
func (m *Matcher) Threshold() float64 {
	return math.Float64frombits(m.threshold.Load())
}

// SetThreshold updates the authorization threshold.
func (m *Matcher) SetThreshold(threshold float64) {
	m.threshold.Store(math.Float64bits(threshold))
}

// Match scores live against every reference and decides authorization.
// References are scanned in order and ties keep the first maximum, so
// repeated calls with the same inputs return the same winner. With no
// references the decision is always unauthorized with confidence 0.
func (m *Matcher) Match(live []float32, refs []Reference) Decision {
	threshold := m.Threshold()

	best := -1
	bestScore := 0.0
	for i, ref := range refs {
		score := CosineSimilarity(live, ref.Embedding)
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best == -1 {
		return Decision{Caller: UnknownCaller, Confidence: 0, Authorized: false}
	}
	if bestScore >= threshold {
		return Decision{Caller: refs[best].Name, Confidence: bestScore, Authorized: true}
	}
	// Confidence is reported in [0, 1]; anti-correlated vectors floor at 0.
	if bestScore < 0 {
		bestScore = 0
	}
	return Decision{Caller: UnknownCaller, Confidence: bestScore, Authorized: false}
}

// CosineSimilarity returns the cosine of the angle between a and b: their
// dot product over the product of their L2 norms. If either vector has
// zero norm the similarity is 0, never NaN. Vectors of unequal length are
// compared over the shorter prefix.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
