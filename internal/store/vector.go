package store

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// subIndex is one kind-specific accelerated vector sub-index, backed
// by an in-memory HNSW graph keyed by row id and persisted next to
// the database at commit. It is a pure accelerator: every failure
// path here leaves the row-table untouched.
type subIndex struct {
	mu    sync.RWMutex
	kind  ContentKind
	dims  int
	graph *hnsw.Graph[uint64]
}

// newSubIndex creates an empty sub-index fixed to the kind's
// dimensionality.
func newSubIndex(kind ContentKind, dims int) (idx *subIndex, err error) {
	// hnsw graph construction panics rather than erroring on bad
	// parameters; an accelerator must never take the store down.
	defer func() {
		if r := recover(); r != nil {
			idx = nil
			err = fmt.Errorf("hnsw init: %v", r)
		}
	}()

	if dims <= 0 {
		return nil, fmt.Errorf("invalid dimensionality %d", dims)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &subIndex{kind: kind, dims: dims, graph: graph}, nil
}

// add mirrors one entry into the graph. Vector length is validated by
// the store before the row insert, so a mismatch here is an error the
// caller swallows.
func (s *subIndex) add(id int64, vec []float32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hnsw add: %v", r)
		}
	}()

	if len(vec) != s.dims {
		return fmt.Errorf("dimension mismatch: %d vs %d", len(vec), s.dims)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.Add(hnsw.MakeNode(uint64(id), vec))
	return nil
}

// search returns up to k nearest row ids for the query vector.
func (s *subIndex) search(query []float32, k int) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph.Len() == 0 {
		return nil
	}

	nodes := s.graph.Search(query, k)
	ids := make([]uint64, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.Key)
	}
	return ids
}

// count returns the number of mirrored vectors.
func (s *subIndex) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Len()
}

// save persists the graph atomically (temp file + rename). A save
// failure degrades the next process to linear scans; it is logged and
// otherwise ignored by the caller.
func (s *subIndex) save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// load restores a persisted graph. Missing or corrupt files return an
// error; the caller degrades to linear scans.
func (s *subIndex) load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	s.mu.Lock()
	defer s.mu.Unlock()
	// coder/hnsw Import requires an io.ByteReader
	reader := bufio.NewReader(file)
	if err := s.graph.Import(reader); err != nil {
		slog.Warn("vector sub-index import failed, falling back to linear scan",
			slog.String("kind", string(s.kind)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
