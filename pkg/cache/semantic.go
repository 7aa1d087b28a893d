// Package cache implements the semantic response cache: an in-memory
// vector index over previously answered queries, backed by the durable
// query store. A lookup is served from the index when a strong match
// exists (fast path), from a store scan otherwise (fallback), and
// reported as a miss when neither finds a similar enough question.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/verba-ai/verba/pkg/index"
	"github.com/verba-ai/verba/pkg/models"
	"github.com/verba-ai/verba/pkg/store"
	"github.com/verba-ai/verba/pkg/vector"
)

// ErrInconsistentIndex is returned when the vector index and the
// response arena disagree about a handle. It indicates a bug, not a
// miss, and is never masked.
var ErrInconsistentIndex = errors.New("semantic cache: index and response arena out of sync")

// Embedder turns text into a fixed-dimension unit vector. The same text
// must always produce the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Params tunes the two-tier lookup. HighThreshold gates fast-path
// candidates (strict greater-than); LowThreshold gates the fallback
// scan. The fast path votes among several candidates and so only
// trusts strong matches; the fallback accepts a weaker single match as
// a last resort before fresh generation, hence HighThreshold >= LowThreshold.
type Params struct {
	HighThreshold float64
	LowThreshold  float64
	TopK          int
}

// Semantic is the cache orchestrator. The vector index and the response
// arena grow only in lockstep under one mutex: entry h of the arena is
// the response for index handle h.
type Semantic struct {
	store    *store.Store
	embedder Embedder
	params   Params

	mu        sync.Mutex
	idx       *index.Flat
	responses []string
	handles   map[string]int // query text -> handle, for refreshing repeat records

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Semantic cache for vectors of the given dimension and
// rebuilds the in-memory structures by replaying the store in insertion
// order, so handles align 1:1 with store order at start. No lookup is
// possible before New returns.
func New(ctx context.Context, st *store.Store, emb Embedder, dim int, p Params) (*Semantic, error) {
	if p.HighThreshold < p.LowThreshold {
		return nil, fmt.Errorf("semantic cache: high threshold %.2f below low threshold %.2f",
			p.HighThreshold, p.LowThreshold)
	}
	if p.TopK <= 0 {
		p.TopK = 5
	}

	s := &Semantic{
		store:    st,
		embedder: emb,
		params:   p,
		idx:      index.NewFlat(dim),
		handles:  make(map[string]int),
	}

	records, err := st.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild semantic cache: %w", err)
	}
	for _, rec := range records {
		if err := s.appendLocked(rec.Query, rec.Embedding, rec.Response); err != nil {
			return nil, fmt.Errorf("rebuild semantic cache: %w", err)
		}
	}
	return s, nil
}

// appendLocked grows the index and the arena as one unit. Callers hold
// s.mu (or run before the cache is published, during rebuild).
func (s *Semantic) appendLocked(query string, vec []float32, response string) error {
	h, err := s.idx.Add(vec)
	if err != nil {
		return err
	}
	if h != len(s.responses) {
		return ErrInconsistentIndex
	}
	s.responses = append(s.responses, response)
	s.handles[query] = h
	return nil
}

// Lookup returns the cached response for a semantically similar query,
// or ok=false on a genuine miss. Errors are never reported as misses.
func (s *Semantic) Lookup(ctx context.Context, query string) (string, bool, error) {
	v, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", false, fmt.Errorf("embed query: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Fast path: strong matches in the in-memory index, majority vote.
	results, err := s.idx.Search(v, s.params.TopK)
	if err != nil {
		return "", false, err
	}
	var candidates []index.Result
	for _, r := range results {
		if r.Score > s.params.HighThreshold {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) > 0 {
		resp, err := s.vote(candidates)
		if err != nil {
			return "", false, err
		}
		s.hits.Add(1)
		return resp, true, nil
	}

	// Fallback: scan the store in insertion order, first acceptable
	// match wins (older entries beat newer semantically equal ones).
	records, err := s.store.All(ctx)
	if err != nil {
		return "", false, err
	}
	for _, rec := range records {
		sim, err := vector.Dot(v, rec.Embedding)
		if err != nil {
			return "", false, fmt.Errorf("stored embedding for %q: %w", rec.Query, err)
		}
		if sim > s.params.LowThreshold {
			// Self-heal: future similar queries hit the fast path.
			if _, known := s.handles[rec.Query]; !known {
				if err := s.appendLocked(rec.Query, rec.Embedding, rec.Response); err != nil {
					return "", false, err
				}
			}
			s.hits.Add(1)
			return rec.Response, true, nil
		}
	}

	s.misses.Add(1)
	return "", false, nil
}

// vote resolves candidate handles to responses and returns the most
// frequent one. On a tied count the response backed by the
// higher-similarity handle wins; candidates arrive in descending score
// order, so the first response to reach the maximum count is it.
func (s *Semantic) vote(candidates []index.Result) (string, error) {
	counts := make(map[string]int, len(candidates))
	for _, c := range candidates {
		if c.Handle < 0 || c.Handle >= len(s.responses) {
			return "", ErrInconsistentIndex
		}
		counts[s.responses[c.Handle]]++
	}
	best := ""
	bestCount := 0
	for _, c := range candidates {
		resp := s.responses[c.Handle]
		if counts[resp] > bestCount {
			best = resp
			bestCount = counts[resp]
		}
	}
	return best, nil
}

// Record writes a freshly generated answer through to the store and the
// in-memory structures. Callers invoke it only after a miss and a
// successful generation. A repeat of the same query text refreshes the
// existing handle's response instead of appending a duplicate entry.
func (s *Semantic) Record(ctx context.Context, query string, embedding []float32, response string) error {
	if _, err := s.store.Upsert(ctx, query, embedding, response); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, known := s.handles[query]; known {
		if h < 0 || h >= len(s.responses) {
			return ErrInconsistentIndex
		}
		s.responses[h] = response
		return nil
	}
	// Not in the volatile structures yet: either a brand-new row, or one
	// that existed durably but was never surfaced by a lookup in this
	// process. Either way it gets a fresh handle.
	return s.appendLocked(query, embedding, response)
}

// Size returns the number of in-memory entries.
func (s *Semantic) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Size()
}

// Stats reports durable entry count and in-process hit/miss counters.
func (s *Semantic) Stats(ctx context.Context) (models.CacheStats, error) {
	entries, err := s.store.Count(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	return models.CacheStats{
		Entries: entries,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}
