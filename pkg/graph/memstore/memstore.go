// Package memstore is the in-memory reference implementation of
// graph.GraphStore. It is the default backend — no external dependency is
// required to run the engine against it — and is the backend the engine's
// and enrichment loop's own test suites exercise. Grounded on the teacher's
// internal/entity/memstore.go: a mutex-guarded map with upsert-by-id
// semantics and best-effort bulk operations.
package memstore

import (
	"context"
	"sync"

	"github.com/nrgforge/plexus/pkg/graph"
)

var _ graph.GraphStore = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory GraphStore. The zero value is not
// ready to use — construct with New.
type MemStore struct {
	mu       sync.RWMutex
	contexts map[graph.ContextId]graph.Context
}

// New returns an initialized, empty MemStore.
func New() *MemStore {
	return &MemStore{contexts: make(map[graph.ContextId]graph.Context)}
}

// PersistContext implements graph.GraphStore. The entire context is
// replaced with a clone of c — the caller (the engine) is expected to hand
// in the full, already-merged context, so no further per-node/per-edge
// merge is needed here.
func (s *MemStore) PersistContext(_ context.Context, c graph.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contexts == nil {
		s.contexts = make(map[graph.ContextId]graph.Context)
	}
	s.contexts[c.ID] = c.Clone()
	return nil
}

// RetractContributions implements graph.GraphStore.
func (s *MemStore) RetractContributions(_ context.Context, ctxID graph.ContextId, contributorID graph.ContributorId) (graph.RetractionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[ctxID]
	if !ok {
		return graph.RetractionSummary{}, graph.ErrContextNotFound
	}

	var summary graph.RetractionSummary
	kept := c.Edges[:0:0]
	for _, e := range c.Edges {
		if _, has := e.Contributions[contributorID]; has {
			delete(e.Contributions, contributorID)
			summary.SlotsRemoved++
		}
		if e.HasEmptyContributions() {
			summary.EdgesPruned++
			continue
		}
		e.RecomputeWeight()
		kept = append(kept, e)
	}
	c.Edges = kept
	c.Touch()
	s.contexts[ctxID] = c

	return summary, nil
}

// LoadContext implements graph.GraphStore.
func (s *MemStore) LoadContext(_ context.Context, ctxID graph.ContextId) (graph.Context, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[ctxID]
	if !ok {
		return graph.Context{}, false, nil
	}
	c = c.Clone()
	c.RecomputeWeights()
	return c, true, nil
}

// LoadAll implements graph.GraphStore.
func (s *MemStore) LoadAll(_ context.Context) ([]graph.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graph.Context, 0, len(s.contexts))
	for _, c := range s.contexts {
		c = c.Clone()
		c.RecomputeWeights()
		out = append(out, c)
	}
	return out, nil
}

// DeleteContext implements graph.GraphStore.
func (s *MemStore) DeleteContext(_ context.Context, ctxID graph.ContextId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, ctxID)
	return nil
}

// Close implements graph.GraphStore. MemStore holds no external resources.
func (s *MemStore) Close() error { return nil }
