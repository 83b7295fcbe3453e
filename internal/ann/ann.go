// Package ann wraps the HNSW graph behind the small add/search/save/load
// surface the index store needs. Positions are insertion order, starting at
// zero, so position i always names manifest entry i.
package ann

import (
	"container/heap"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/vecgo/hnsw"
)

const defaultEFSearch = 100

// Index is an append-only nearest-neighbor index over fixed-dimension
// vectors. The graph itself is not serialized: the artifact stores the raw
// vectors in insertion order and the graph is rebuilt on load.
type Index struct {
	dim     int
	graph   *hnsw.HNSW
	vectors [][]float32
}

func New(dim int) *Index {
	return &Index{
		dim:   dim,
		graph: hnsw.New(dim),
	}
}

func (i *Index) Len() int       { return len(i.vectors) }
func (i *Index) Dimension() int { return i.dim }

// Add appends a vector. The graph assigns ids starting at 1 (id 0 is its
// internal entry point), so position = id - 1.
func (i *Index) Add(vec []float32) error {
	if len(vec) != i.dim {
		return fmt.Errorf("ann: vector has %d dims, index wants %d", len(vec), i.dim)
	}
	if _, err := i.graph.Insert(vec); err != nil {
		return fmt.Errorf("ann: insert: %w", err)
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	i.vectors = append(i.vectors, stored)
	return nil
}

// Hit is one search result: the insertion position and its distance
// (squared L2, smaller is more similar).
type Hit struct {
	Position int
	Distance float32
}

// Search returns up to k nearest neighbors ordered by ascending distance.
func (i *Index) Search(q []float32, k int) ([]Hit, error) {
	if len(q) != i.dim {
		return nil, fmt.Errorf("ann: query has %d dims, index wants %d", len(q), i.dim)
	}
	if len(i.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	ef := defaultEFSearch
	if k+1 > ef {
		ef = k + 1
	}

	// Ask for one extra so the internal entry point, if returned, does not
	// cost a real result.
	pq, err := i.graph.KNNSearch(q, k+1, ef)
	if err != nil {
		return nil, fmt.Errorf("ann: knn search: %w", err)
	}

	hits := make([]Hit, 0, pq.Len())
	for pq.Len() > 0 {
		item, _ := heap.Pop(pq).(*hnsw.PriorityQueueItem)
		if item == nil || item.Node == 0 {
			continue
		}
		hits = append(hits, Hit{Position: int(item.Node) - 1, Distance: item.Distance})
	}

	sort.Slice(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// artifact is the on-disk form of the index.
type artifact struct {
	Dim     int
	Vectors [][]float32
}

// Save writes the index artifact to path via temp file and rename, so a
// crash mid-write leaves the previous artifact intact.
func (i *Index) Save(path string) error {
	// Temp file in the same directory so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ann-*.gob")
	if err != nil {
		return fmt.Errorf("ann: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(artifact{Dim: i.dim, Vectors: i.vectors}); err != nil {
		tmp.Close()
		return fmt.Errorf("ann: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ann: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ann: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("ann: rename into place: %w", err)
	}
	return nil
}

// Load reads an index artifact and reconstructs the graph by re-inserting
// every stored vector in order.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ann: open %s: %w", path, err)
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("ann: decode %s: %w", path, err)
	}

	idx := New(a.Dim)
	for n, vec := range a.Vectors {
		if err := idx.Add(vec); err != nil {
			return nil, fmt.Errorf("ann: reinsert vector %d: %w", n, err)
		}
	}
	return idx, nil
}
