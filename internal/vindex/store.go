// Package vindex maintains the visual-search index: three artifacts that
// must stay positionally aligned — an ordered name manifest, a feature
// matrix, and the nearest-neighbor index. Entry i of each artifact describes
// the same book; breaking that alignment corrupts every match from then on,
// which is what the reconciler exists to repair.
package vindex

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"ridizi/internal/ann"
	"ridizi/internal/embedding"
)

const (
	indexFile    = "index.gob"
	featuresFile = "features.gob"
	namesFile    = "image_names.json"
)

var (
	// ErrIndexUnavailable means an artifact exists but could not be loaded.
	// Callers surface this as "search is broken", distinct from "no match".
	ErrIndexUnavailable = errors.New("vindex: index artifacts unavailable")

	// ErrCoverMissing means Append was asked to index a book whose cover
	// file is not on disk.
	ErrCoverMissing = errors.New("vindex: cover file missing")
)

// Store owns the three index artifacts. All mutations are serialized behind
// a single writer lock and every artifact is written via temp+rename, so a
// crashed writer leaves the previous generation readable. Searches reload
// from disk on every call so they observe appends from other processes.
type Store struct {
	mu        sync.Mutex
	dataDir   string
	coversDir string
	embedder  embedding.Embedder
}

func NewStore(dataDir, coversDir string, embedder embedding.Embedder) *Store {
	return &Store{
		dataDir:   dataDir,
		coversDir: coversDir,
		embedder:  embedder,
	}
}

func (s *Store) indexPath() string    { return filepath.Join(s.dataDir, indexFile) }
func (s *Store) featuresPath() string { return filepath.Join(s.dataDir, featuresFile) }
func (s *Store) namesPath() string    { return filepath.Join(s.dataDir, namesFile) }

// CoverPath returns where the cover for an ISBN-10 lives (or would live).
func (s *Store) CoverPath(isbn10 string) string {
	return filepath.Join(s.coversDir, isbn10+".jpg")
}

// state is one loaded generation of the three artifacts.
type state struct {
	index    *ann.Index
	features [][]float32
	names    []string
}

// load reads all three artifacts. Missing artifacts yield an empty state so
// the first Append bootstraps the store; present-but-unreadable artifacts
// are ErrIndexUnavailable.
func (s *Store) load() (*state, error) {
	st := &state{index: ann.New(s.embedder.Dimension())}

	if _, err := os.Stat(s.indexPath()); err == nil {
		idx, err := ann.Load(s.indexPath())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		st.index = idx
	}

	if data, err := os.ReadFile(s.featuresPath()); err == nil {
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st.features); err != nil {
			return nil, fmt.Errorf("%w: decode features: %v", ErrIndexUnavailable, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: read features: %v", ErrIndexUnavailable, err)
	}

	names, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	st.names = names

	return st, nil
}

// save writes all three artifacts back. Each write is atomic on its own;
// the trio is not one transaction, which is the documented gap the
// reconciler closes.
func (s *Store) save(st *state) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("vindex: ensure data dir: %w", err)
	}
	if err := st.index.Save(s.indexPath()); err != nil {
		return fmt.Errorf("vindex: save index: %w", err)
	}
	if err := writeAtomic(s.featuresPath(), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(st.features)
	}); err != nil {
		return fmt.Errorf("vindex: save features: %w", err)
	}
	if err := writeAtomic(s.namesPath(), func(f *os.File) error {
		return json.NewEncoder(f).Encode(st.names)
	}); err != nil {
		return fmt.Errorf("vindex: save names: %w", err)
	}
	return nil
}

// Append embeds the cover for isbn10 and appends the vector to all three
// artifacts. The cover must already be on disk. On any failure the prior
// on-disk state is left untouched.
func (s *Store) Append(ctx context.Context, isbn10 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coverPath := s.CoverPath(isbn10)
	image, err := os.ReadFile(coverPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrCoverMissing, coverPath)
		}
		return fmt.Errorf("vindex: read cover: %w", err)
	}

	st, err := s.load()
	if err != nil {
		return err
	}

	vec, err := s.embedder.Embed(ctx, image)
	if err != nil {
		return fmt.Errorf("vindex: embed %s: %w", isbn10, err)
	}

	if err := st.index.Add(vec); err != nil {
		return err
	}
	st.features = append(st.features, vec)
	st.names = append(st.names, isbn10+".jpg")

	return s.save(st)
}

// Hit is one search result mapped back to the manifest.
type Hit struct {
	Position int     `json:"position"`
	Name     string  `json:"name"` // manifest entry, "{isbn10}.jpg"
	Distance float32 `json:"distance"`
}

// Search reloads the artifacts and returns the k nearest neighbors by
// ascending distance. No in-process cache: a concurrent Append from another
// worker is visible to the next call.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}

	raw, err := st.index.Search(query, k)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		if h.Position < 0 || h.Position >= len(st.names) {
			// index ahead of the manifest: drifted entry, skip it
			continue
		}
		hits = append(hits, Hit{Position: h.Position, Name: st.names[h.Position], Distance: h.Distance})
	}
	return hits, nil
}

// Manifest returns the ordered name manifest. A missing file is an empty
// manifest.
func (s *Store) Manifest() ([]string, error) {
	data, err := os.ReadFile(s.namesPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read names: %v", ErrIndexUnavailable, err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%w: decode names: %v", ErrIndexUnavailable, err)
	}
	return names, nil
}

// WriteManifest replaces the name manifest, preserving whatever order the
// caller established.
func (s *Store) WriteManifest(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("vindex: ensure data dir: %w", err)
	}
	if err := writeAtomic(s.namesPath(), func(f *os.File) error {
		return json.NewEncoder(f).Encode(names)
	}); err != nil {
		return fmt.Errorf("vindex: write names: %w", err)
	}
	return nil
}

// IndexCount reports how many vectors the persisted index holds. A missing
// artifact counts as zero.
func (s *Store) IndexCount() (int, error) {
	if _, err := os.Stat(s.indexPath()); os.IsNotExist(err) {
		return 0, nil
	}
	idx, err := ann.Load(s.indexPath())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return idx.Len(), nil
}

// Rebuild discards the index and feature matrix and re-embeds every cover in
// the given order, writing fresh artifacts. This is the only way entries
// leave the index; only the reconciler calls it. Covers that fail to embed
// are skipped (and logged), leaving them for the next reconcile pass.
func (s *Store) Rebuild(ctx context.Context, orderedISBNs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &state{index: ann.New(s.embedder.Dimension())}

	for _, isbn10 := range orderedISBNs {
		image, err := os.ReadFile(s.CoverPath(isbn10))
		if err != nil {
			log.Printf("[vindex] rebuild: cover unreadable for %s: %v", isbn10, err)
			continue
		}
		vec, err := s.embedder.Embed(ctx, image)
		if err != nil {
			log.Printf("[vindex] rebuild: embed failed for %s: %v", isbn10, err)
			continue
		}
		if err := st.index.Add(vec); err != nil {
			return 0, err
		}
		st.features = append(st.features, vec)
		st.names = append(st.names, isbn10+".jpg")
	}

	if err := s.save(st); err != nil {
		return 0, err
	}
	return len(st.names), nil
}

// writeAtomic writes a file via temp+fsync+rename in the target directory.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
