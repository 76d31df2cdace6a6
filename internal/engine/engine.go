// Package engine implements the Plexus engine (spec §4.3): the sole
// authority for graph invariants 1–5, owning an in-memory cache of contexts
// behind per-context exclusive write locks and a write-through GraphStore.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nrgforge/plexus/pkg/graph"
)

// Engine is the in-memory cache of graph.Context values, keyed by
// ContextId, write-through to a graph.GraphStore. One writer at a time per
// context is enforced by a per-context sync.Mutex held for the duration of
// an entire emit — including every enrichment round (§5).
type Engine struct {
	store graph.GraphStore

	cacheMu sync.RWMutex
	cache   map[graph.ContextId]graph.Context

	locksMu sync.Mutex
	locks   map[graph.ContextId]*sync.Mutex

	loadGroup singleflight.Group

	logger *slog.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the engine's slog.Logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New constructs an Engine backed by store. Call LoadAll to populate the
// cache from existing store state at startup.
func New(store graph.GraphStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		cache:  make(map[graph.ContextId]graph.Context),
		locks:  make(map[graph.ContextId]*sync.Mutex),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadAll rebuilds the cache from the store, as at startup (§4.3).
func (e *Engine) LoadAll(ctx context.Context) error {
	contexts, err := e.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	for _, c := range contexts {
		e.cache[c.ID] = c
	}
	return nil
}

// UpsertContext inserts or wholesale-replaces a context, persisting it.
func (e *Engine) UpsertContext(ctx context.Context, c graph.Context) (graph.ContextId, error) {
	if c.ID == "" {
		c.ID = graph.NewContextId()
	}
	if err := e.store.PersistContext(ctx, c); err != nil {
		return "", err
	}
	e.setCache(c)
	e.logger.Info("plexus: context upserted", "context_id", c.ID, "name", c.Name)
	return c.ID, nil
}

// DeleteContext removes a context from both cache and store.
func (e *Engine) DeleteContext(ctx context.Context, id graph.ContextId) error {
	if err := e.store.DeleteContext(ctx, id); err != nil {
		return err
	}
	e.cacheMu.Lock()
	delete(e.cache, id)
	e.cacheMu.Unlock()
	return nil
}

// ListContexts returns the ids of every cached context. Callers that need
// the authoritative list after external store mutation should call LoadAll
// first.
func (e *Engine) ListContexts() []graph.ContextId {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	ids := make([]graph.ContextId, 0, len(e.cache))
	for id := range e.cache {
		ids = append(ids, id)
	}
	return ids
}

// GetContext returns a snapshot of the context, reading from cache when
// present, or loading from the store on a cache miss. Concurrent cache
// misses for the same id are collapsed into a single store load via
// singleflight. Readers never block on a writer's per-context lock — they
// observe whatever was last committed to the cache (§5).
func (e *Engine) GetContext(ctx context.Context, id graph.ContextId) (graph.Context, bool, error) {
	if c, ok := e.getCache(id); ok {
		return c, true, nil
	}

	v, err, _ := e.loadGroup.Do(string(id), func() (any, error) {
		c, found, err := e.store.LoadContext(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		e.setCache(c)
		return c, nil
	})
	if err != nil {
		return graph.Context{}, false, err
	}
	if v == nil {
		return graph.Context{}, false, nil
	}
	return v.(graph.Context), true, nil
}

func (e *Engine) getCache(id graph.ContextId) (graph.Context, bool) {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	c, ok := e.cache[id]
	if !ok {
		return graph.Context{}, false
	}
	return c.Clone(), true
}

func (e *Engine) setCache(c graph.Context) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache[c.ID] = c.Clone()
}

// Lock acquires the exclusive per-context write lock for id and returns the
// unlock function. Callers (the sink) hold this lock for the duration of an
// entire emit, including every enrichment round, per §5.
func (e *Engine) Lock(id graph.ContextId) func() {
	m := e.lockFor(id)
	m.Lock()
	return m.Unlock
}

func (e *Engine) lockFor(id graph.ContextId) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	m, ok := e.locks[id]
	if !ok {
		m = &sync.Mutex{}
		e.locks[id] = m
	}
	return m
}

// Commit persists c as the new authoritative state for its id, updating
// both the cache and the store. The caller must already hold the
// per-context write lock (via Lock).
func (e *Engine) Commit(ctx context.Context, c graph.Context) error {
	if err := e.store.PersistContext(ctx, c); err != nil {
		return err
	}
	e.setCache(c)
	return nil
}

// RetractContributions removes every contribution slot keyed by
// contributorID from every edge of ctxID, prunes edges left with no
// contributions, persists the change, and reloads the affected context
// into cache with weights recomputed (§4.8).
func (e *Engine) RetractContributions(ctx context.Context, ctxID graph.ContextId, contributorID graph.ContributorId) (graph.RetractionSummary, error) {
	unlock := e.Lock(ctxID)
	defer unlock()

	summary, err := e.store.RetractContributions(ctx, ctxID, contributorID)
	if err != nil {
		return graph.RetractionSummary{}, err
	}

	reloaded, found, err := e.store.LoadContext(ctx, ctxID)
	if err != nil {
		return graph.RetractionSummary{}, err
	}
	if found {
		reloaded.RecomputeWeights()
		e.setCache(reloaded)
	}

	e.logger.Info("plexus: contributions retracted",
		"context_id", ctxID,
		"contributor_id", contributorID,
		"edges_pruned", summary.EdgesPruned,
		"slots_removed", summary.SlotsRemoved,
	)

	return summary, nil
}
