package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
	"github.com/voiceguard-ai/voiceguard/pkg/embedding"
)

// Store is the file-backed registry of enrolled reference voices. Each
// voice persists as one WAV file under the sample directory, named after
// the enrolled name; the in-memory embedding map is rebuilt from those
// files by Load.
//
// Mutations (Enroll, Clear) may run from an operator context while the
// monitoring worker reads References concurrently; the next analysis
// cycle simply observes the updated mapping.
type Store struct {
	dir        string
	sampleRate int
	extractor  embedding.Extractor

	mu    sync.RWMutex
	order []string // insertion order, fixes matching tie-breaks
	refs  map[string]Reference
}

// NewStore creates a Store over dir. Enrollment samples must be PCM16 WAV
// at sampleRate Hz; embeddings are computed with extractor.
func NewStore(dir string, sampleRate int, extractor embedding.Extractor) *Store {
	return &Store{
		dir:        dir,
		sampleRate: sampleRate,
		extractor:  extractor,
		refs:       make(map[string]Reference),
	}
}

// Dir returns the voice-sample directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load scans the sample directory and rebuilds the in-memory mapping, one
// embedding per WAV file. A file that fails to read or extract is skipped
// and reported in the returned map keyed by name; loading the remaining
// files continues. The returned error covers only the directory itself.
//
// Names are taken from the filename stem. There is no manifest, so a name
// that Enroll had to sanitize for the filesystem comes back in its
// sanitized form after a reload.
func (s *Store) Load(ctx context.Context) (map[string]error, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create voice directory %s: %w", s.dir, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice directory %s: %w", s.dir, err)
	}

	failures := make(map[string]error)
	order := make([]string, 0, len(entries))
	refs := make(map[string]Reference, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		path := filepath.Join(s.dir, entry.Name())

		ref, err := s.loadFile(ctx, name, path)
		if err != nil {
			failures[name] = err
			log.Printf("[Store] skipping voice %q: %v", name, err)
			continue
		}
		order = append(order, name)
		refs[name] = ref
	}

	s.mu.Lock()
	s.order = order
	s.refs = refs
	s.mu.Unlock()

	log.Printf("[Store] loaded %d voice reference(s) from %s (%d failed)", len(refs), s.dir, len(failures))
	if len(failures) == 0 {
		return nil, nil
	}
	return failures, nil
}

func (s *Store) loadFile(ctx context.Context, name, path string) (Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reference{}, fmt.Errorf("read sample: %w", err)
	}

	vec, err := s.extract(ctx, data)
	if err != nil {
		return Reference{}, err
	}

	enrolledAt := time.Now()
	if info, err := os.Stat(path); err == nil {
		enrolledAt = info.ModTime()
	}

	return Reference{Name: name, Embedding: vec, EnrolledAt: enrolledAt}, nil
}

// extract decodes a WAV payload and computes its embedding.
func (s *Store) extract(ctx context.Context, wav []byte) ([]float32, error) {
	samples, info, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	if info.SampleRate != s.sampleRate {
		return nil, fmt.Errorf("sample rate %d does not match store rate %d", info.SampleRate, s.sampleRate)
	}

	vec, err := s.extractor.Extract(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("extract embedding: %w", err)
	}
	return vec, nil
}

// Enroll registers name with the given WAV sample: the embedding is
// computed, the raw audio is persisted under a name-derived filename
// (overwriting any prior sample for that name), and the mapping entry is
// inserted or replaced. On any failure the previous entry, if one exists,
// is left unchanged. Re-enrolling keeps the name's original insertion
// position.
func (s *Store) Enroll(ctx context.Context, name string, wav []byte) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("voice name must not be empty")
	}

	vec, err := s.extract(ctx, wav)
	if err != nil {
		return fmt.Errorf("enroll %q: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("enroll %q: create voice directory: %w", name, err)
	}
	path := s.samplePath(name)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return fmt.Errorf("enroll %q: persist sample: %w", name, err)
	}

	s.mu.Lock()
	if _, exists := s.refs[name]; !exists {
		s.order = append(s.order, name)
	}
	s.refs[name] = Reference{Name: name, Embedding: vec, EnrolledAt: time.Now()}
	s.mu.Unlock()

	log.Printf("[Store] enrolled voice %q (%s)", name, path)
	return nil
}

// Clear removes every enrolled voice from memory and deletes the
// persisted sample files. Irreversible; confirmation belongs to the
// caller.
func (s *Store) Clear() error {
	s.mu.Lock()
	names := s.order
	s.order = nil
	s.refs = make(map[string]Reference)
	s.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := os.Remove(s.samplePath(name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("delete sample for %q: %w", name, err))
		}
	}

	log.Printf("[Store] cleared %d voice reference(s)", len(names))
	return errors.Join(errs...)
}

// Names returns the enrolled names in insertion order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Count returns the number of enrolled voices.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

// Get returns the reference for name, if enrolled.
func (s *Store) Get(name string) (Reference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[name]
	return ref, ok
}

// References returns all enrolled references in insertion order. The
// slice is a copy; the embeddings it shares are immutable.
func (s *Store) References() []Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reference, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.refs[name])
	}
	return out
}

// samplePath derives the on-disk filename for an enrolled name.
func (s *Store) samplePath(name string) string {
	return filepath.Join(s.dir, sanitizeName(name)+".wav")
}

// sanitizeName maps a display name to a safe filename stem. Letters,
// digits, spaces, dots, dashes and underscores pass through; everything
// else becomes an underscore.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
