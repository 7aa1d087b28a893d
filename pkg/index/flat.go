// Package index implements a flat, exact inner-product vector index.
// Entries are identified by dense sequential handles assigned in
// insertion order; handles are positional and valid only for the
// lifetime of the index.
package index

import (
	"fmt"
	"sort"

	"github.com/verba-ai/verba/pkg/vector"
)

// Result is a single search hit.
type Result struct {
	Handle int
	Score  float64
}

// Flat is an append-only brute-force index. It is not safe for
// concurrent use; callers serialize access.
type Flat struct {
	dim  int
	vecs [][]float32
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Add appends a vector and returns its handle: 0 for the first entry,
// one past the previous maximum otherwise.
func (f *Flat) Add(vec []float32) (int, error) {
	if len(vec) != f.dim {
		return 0, fmt.Errorf("index: vector dim %d != index dim %d", len(vec), f.dim)
	}
	v := append([]float32(nil), vec...)
	f.vecs = append(f.vecs, v)
	return len(f.vecs) - 1, nil
}

// Search returns up to k entries ordered by descending inner product
// with query. Equal scores are ordered by ascending handle, so results
// are deterministic. An empty index yields an empty result set.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if len(f.vecs) == 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("index: query dim %d != index dim %d", len(query), f.dim)
	}

	results := make([]Result, 0, len(f.vecs))
	for h, v := range f.vecs {
		score, err := vector.Dot(query, v)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Handle: h, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Size returns the number of entries in the index.
func (f *Flat) Size() int {
	return len(f.vecs)
}
