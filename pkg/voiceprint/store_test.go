package voiceprint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
	"github.com/voiceguard-ai/voiceguard/pkg/embedding"
)

const testRate = 16000

// wavSample builds a PCM16 WAV payload with a constant value.
func wavSample(value float32, n int) []byte {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return audio.EncodeWAV(audio.Float32ToBytes(samples), testRate, 1)
}

func TestStore_EnrollAndGet(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testRate, embedding.NewMockExtractorWithVector([]float32{1, 0, 0, 0}))

	err := store.Enroll(context.Background(), "Mom", wavSample(0.5, testRate))
	require.NoError(t, err)

	assert.Equal(t, 1, store.Count())
	ref, ok := store.Get("Mom")
	require.True(t, ok)
	assert.Equal(t, "Mom", ref.Name)
	assert.Equal(t, []float32{1, 0, 0, 0}, ref.Embedding)
	assert.False(t, ref.EnrolledAt.IsZero())

	// Sample persisted under a name-derived filename.
	_, err = os.Stat(filepath.Join(dir, "Mom.wav"))
	assert.NoError(t, err)
}

func TestStore_ReEnrollReplaces(t *testing.T) {
	dir := t.TempDir()
	mock := embedding.NewMockExtractor()
	next := []float32{1, 0}
	mock.ExtractFunc = func(samples []float32) ([]float32, error) {
		out := make([]float32, len(next))
		copy(out, next)
		return out, nil
	}
	store := NewStore(dir, testRate, mock)

	require.NoError(t, store.Enroll(context.Background(), "Dad", wavSample(0.2, testRate)))
	require.NoError(t, store.Enroll(context.Background(), "Sister", wavSample(0.3, testRate)))

	next = []float32{0, 1}
	require.NoError(t, store.Enroll(context.Background(), "Dad", wavSample(0.4, testRate)))

	// Never two entries for the same name, and insertion order is kept.
	assert.Equal(t, 2, store.Count())
	assert.Equal(t, []string{"Dad", "Sister"}, store.Names())

	ref, ok := store.Get("Dad")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1}, ref.Embedding)
}

func TestStore_EnrollFailureKeepsPreviousEntry(t *testing.T) {
	dir := t.TempDir()
	mock := embedding.NewMockExtractor()
	fail := false
	mock.ExtractFunc = func(samples []float32) ([]float32, error) {
		if fail {
			return nil, fmt.Errorf("model unavailable")
		}
		return []float32{1, 2, 3, 4}, nil
	}
	store := NewStore(dir, testRate, mock)

	require.NoError(t, store.Enroll(context.Background(), "Mom", wavSample(0.5, testRate)))

	fail = true
	err := store.Enroll(context.Background(), "Mom", wavSample(0.9, testRate))
	require.Error(t, err)

	ref, ok := store.Get("Mom")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3, 4}, ref.Embedding, "failed re-enrollment must not touch the prior entry")
}

func TestStore_EnrollRejectsBadInput(t *testing.T) {
	store := NewStore(t.TempDir(), testRate, embedding.NewMockExtractor())

	t.Run("empty name", func(t *testing.T) {
		err := store.Enroll(context.Background(), "  ", wavSample(0.5, testRate))
		assert.Error(t, err)
	})

	t.Run("not a wav", func(t *testing.T) {
		err := store.Enroll(context.Background(), "X", []byte("definitely not audio"))
		assert.Error(t, err)
	})

	t.Run("wrong sample rate", func(t *testing.T) {
		payload := audio.EncodeWAV(audio.Float32ToBytes(make([]float32, 8000)), 8000, 1)
		err := store.Enroll(context.Background(), "X", payload)
		assert.Error(t, err)
	})

	assert.Equal(t, 0, store.Count())
}

func TestStore_LoadPartialFailure(t *testing.T) {
	dir := t.TempDir()

	// Two valid samples and one corrupt file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Mom.wav"), wavSample(0.5, testRate), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dad.wav"), wavSample(0.3, testRate), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.wav"), []byte("garbage"), 0o644))
	// Non-wav files are ignored entirely.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))

	store := NewStore(dir, testRate, embedding.NewMockExtractorWithVector([]float32{1, 1}))
	failures, err := store.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, store.Count())
	_, momOK := store.Get("Mom")
	_, dadOK := store.Get("Dad")
	assert.True(t, momOK)
	assert.True(t, dadOK)

	require.Len(t, failures, 1)
	assert.Contains(t, failures, "Broken")
}

func TestStore_LoadMissingDirectoryCreatesIt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "voices")
	store := NewStore(dir, testRate, embedding.NewMockExtractor())

	failures, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 0, store.Count())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_Clear(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testRate, embedding.NewMockExtractor())

	require.NoError(t, store.Enroll(context.Background(), "Mom", wavSample(0.5, testRate)))
	require.NoError(t, store.Enroll(context.Background(), "Dad", wavSample(0.3, testRate)))

	require.NoError(t, store.Clear())

	assert.Equal(t, 0, store.Count())
	assert.Empty(t, store.Names())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "persisted samples must be deleted")
}

func TestStore_SanitizedFilename(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testRate, embedding.NewMockExtractor())

	require.NoError(t, store.Enroll(context.Background(), "Best Friend", wavSample(0.5, testRate)))
	_, err := os.Stat(filepath.Join(dir, "Best Friend.wav"))
	assert.NoError(t, err)

	require.NoError(t, store.Enroll(context.Background(), "a/b:c", wavSample(0.5, testRate)))
	_, err = os.Stat(filepath.Join(dir, "a_b_c.wav"))
	assert.NoError(t, err)

	// A reload reads names back from the filename stems, so a sanitized
	// name stays sanitized.
	reloaded := NewStore(dir, testRate, embedding.NewMockExtractor())
	failures, err := reloaded.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.ElementsMatch(t, []string{"Best Friend", "a_b_c"}, reloaded.Names())
}

func TestStore_ReferencesInsertionOrder(t *testing.T) {
	store := NewStore(t.TempDir(), testRate, embedding.NewMockExtractor())

	for _, name := range []string{"C", "A", "B"} {
		require.NoError(t, store.Enroll(context.Background(), name, wavSample(0.5, testRate)))
	}

	refs := store.References()
	require.Len(t, refs, 3)
	assert.Equal(t, "C", refs[0].Name)
	assert.Equal(t, "A", refs[1].Name)
	assert.Equal(t, "B", refs[2].Name)
}
