// Package facade implements the library API surface spec §6 describes:
// context lifecycle (context_create/delete/list/rename/add_sources/
// remove_sources), the single ingest write endpoint, and the read-only
// query wrappers (find_nodes, traverse, find_path, evidence_trail). It is
// the seam a CLI or MCP transport would delegate to — the core itself
// ships no such transport (§6 "Out of scope as a core concern").
package facade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nrgforge/plexus/internal/outbound"
	"github.com/nrgforge/plexus/internal/pipeline"
	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
	"github.com/nrgforge/plexus/pkg/query"
)

// ErrNameNotFound is returned when a context name does not resolve to a
// known ContextId.
var ErrNameNotFound = errors.New("facade: context name not found")

// ErrNameInUse is returned by ContextCreate/ContextRename when the target
// name already resolves to a different context.
var ErrNameInUse = errors.New("facade: context name already in use")

// Engine is the subset of *engine.Engine the facade depends on directly
// (beyond what it reaches through *pipeline.IngestPipeline).
type Engine interface {
	UpsertContext(ctx context.Context, c graph.Context) (graph.ContextId, error)
	DeleteContext(ctx context.Context, id graph.ContextId) error
	ListContexts() []graph.ContextId
	GetContext(ctx context.Context, id graph.ContextId) (graph.Context, bool, error)
}

// Facade wires the engine, ingest pipeline, and optional outbound
// publisher into the single surface described by spec §6. The zero value
// is not ready to use — construct with New.
type Facade struct {
	engine   Engine
	pipeline *pipeline.IngestPipeline
	outbound *outbound.Publisher
	logger   *slog.Logger

	namesMu sync.RWMutex
	names   map[string]graph.ContextId
}

// Option configures a [Facade].
type Option func(*Facade)

// WithOutbound attaches an outbound.Publisher that mirrors every Ingest
// call's OutboundEvents. Passing nil (the default) disables mirroring.
func WithOutbound(p *outbound.Publisher) Option {
	return func(f *Facade) { f.outbound = p }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Facade) { f.logger = l }
}

// New constructs a Facade bound to engine and pipeline.
func New(engine Engine, p *pipeline.IngestPipeline, opts ...Option) *Facade {
	f := &Facade{
		engine:   engine,
		pipeline: p,
		logger:   slog.Default(),
		names:    make(map[string]graph.ContextId),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Hydrate rebuilds the name→ContextId index from every context currently
// known to the engine. Call once after the engine's own LoadAll, before
// serving any facade call — the facade has no other way to learn about
// contexts persisted in a prior process.
func (f *Facade) Hydrate(ctx context.Context) error {
	f.namesMu.Lock()
	defer f.namesMu.Unlock()

	f.names = make(map[string]graph.ContextId)
	for _, id := range f.engine.ListContexts() {
		c, ok, err := f.engine.GetContext(ctx, id)
		if err != nil {
			return fmt.Errorf("facade: hydrate %s: %w", id, err)
		}
		if ok {
			f.names[c.Name] = c.ID
		}
	}
	return nil
}

// ContextCreate creates a new, empty context named name and returns its id.
func (f *Facade) ContextCreate(ctx context.Context, name string) (graph.ContextId, error) {
	f.namesMu.Lock()
	defer f.namesMu.Unlock()

	if _, exists := f.names[name]; exists {
		return "", fmt.Errorf("%w: %s", ErrNameInUse, name)
	}

	c := graph.NewContext(name)
	id, err := f.engine.UpsertContext(ctx, c)
	if err != nil {
		return "", err
	}
	f.names[name] = id
	f.logger.Info("facade: context created", "name", name, "context_id", id)
	return id, nil
}

// ContextDelete deletes the context named name.
func (f *Facade) ContextDelete(ctx context.Context, name string) error {
	f.namesMu.Lock()
	defer f.namesMu.Unlock()

	id, ok := f.names[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	if err := f.engine.DeleteContext(ctx, id); err != nil {
		return err
	}
	delete(f.names, name)
	f.logger.Info("facade: context deleted", "name", name, "context_id", id)
	return nil
}

// ContextList returns the ids of every known context. When name is
// non-empty, it returns at most one id — the one matching that name.
func (f *Facade) ContextList(name string) []graph.ContextId {
	f.namesMu.RLock()
	defer f.namesMu.RUnlock()

	if name != "" {
		if id, ok := f.names[name]; ok {
			return []graph.ContextId{id}
		}
		return nil
	}
	ids := make([]graph.ContextId, 0, len(f.names))
	for _, id := range f.names {
		ids = append(ids, id)
	}
	return ids
}

// ContextRename renames a context from oldName to newName.
func (f *Facade) ContextRename(ctx context.Context, oldName, newName string) error {
	f.namesMu.Lock()
	defer f.namesMu.Unlock()

	id, ok := f.names[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNameNotFound, oldName)
	}
	if _, taken := f.names[newName]; taken && newName != oldName {
		return fmt.Errorf("%w: %s", ErrNameInUse, newName)
	}

	c, ok, err := f.engine.GetContext(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrContextNotFound, id)
	}
	c.Name = newName
	c.Touch()
	if _, err := f.engine.UpsertContext(ctx, c); err != nil {
		return err
	}

	delete(f.names, oldName)
	f.names[newName] = id
	return nil
}

// ContextAddSources appends source paths/URIs to a context's metadata.
func (f *Facade) ContextAddSources(ctx context.Context, name string, sources []string) error {
	return f.mutateContext(ctx, name, func(c *graph.Context) {
		for _, s := range sources {
			c.AddSource(s)
		}
	})
}

// ContextRemoveSources removes source paths/URIs from a context's metadata.
func (f *Facade) ContextRemoveSources(ctx context.Context, name string, sources []string) error {
	return f.mutateContext(ctx, name, func(c *graph.Context) {
		for _, s := range sources {
			c.RemoveSource(s)
		}
	})
}

// ContextAddTags appends tags to a context's metadata.
func (f *Facade) ContextAddTags(ctx context.Context, name string, tags []string) error {
	return f.mutateContext(ctx, name, func(c *graph.Context) {
		for _, t := range tags {
			c.AddTag(t)
		}
	})
}

// ContextRemoveTags removes tags from a context's metadata.
func (f *Facade) ContextRemoveTags(ctx context.Context, name string, tags []string) error {
	return f.mutateContext(ctx, name, func(c *graph.Context) {
		for _, t := range tags {
			c.RemoveTag(t)
		}
	})
}

func (f *Facade) mutateContext(ctx context.Context, name string, mutate func(*graph.Context)) error {
	id, ok := f.resolve(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	c, ok, err := f.engine.GetContext(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrContextNotFound, id)
	}
	mutate(&c)
	_, err = f.engine.UpsertContext(ctx, c)
	return err
}

// Ingest is the single write endpoint: it routes data of inputKind to
// every adapter registered for it against the named context, and returns
// the OutboundEvents produced. When an outbound.Publisher is attached, the
// same events are additionally mirrored onto NATS before returning.
func (f *Facade) Ingest(ctx context.Context, contextName, inputKind string, data any) ([]emission.OutboundEvent, error) {
	id, ok := f.resolve(contextName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, contextName)
	}

	events, err := f.pipeline.Ingest(ctx, id, inputKind, data)
	if err != nil {
		return nil, err
	}

	if perr := f.outbound.Publish(ctx, id, events); perr != nil {
		f.logger.Warn("facade: outbound publish failed", "context_id", id, "error", perr)
	}
	return events, nil
}

// FindNodes runs a read-only Find query against the named context.
func (f *Facade) FindNodes(ctx context.Context, contextName string, opts ...query.FindOpt) (query.QueryResult, error) {
	snapshot, err := f.snapshot(ctx, contextName)
	if err != nil {
		return query.QueryResult{}, err
	}
	return query.Find(snapshot, opts...), nil
}

// Traverse runs a read-only neighborhood traversal against the named context.
func (f *Facade) Traverse(ctx context.Context, contextName string, origin graph.NodeId, opts ...query.TraverseOpt) (query.TraversalResult, error) {
	snapshot, err := f.snapshot(ctx, contextName)
	if err != nil {
		return query.TraversalResult{}, err
	}
	return query.Traverse(snapshot, origin, opts...), nil
}

// FindPath runs a read-only shortest-path search against the named context.
func (f *Facade) FindPath(ctx context.Context, contextName string, source, target graph.NodeId) (query.PathResult, error) {
	snapshot, err := f.snapshot(ctx, contextName)
	if err != nil {
		return query.PathResult{}, err
	}
	return query.FindPath(snapshot, source, target), nil
}

// EvidenceTrail runs a read-only evidence-trail lookup against the named context.
func (f *Facade) EvidenceTrail(ctx context.Context, contextName string, nodeID graph.NodeId) (query.EvidenceTrail, error) {
	snapshot, err := f.snapshot(ctx, contextName)
	if err != nil {
		return query.EvidenceTrail{}, err
	}
	return query.Evidence(snapshot, nodeID), nil
}

func (f *Facade) snapshot(ctx context.Context, contextName string) (graph.Context, error) {
	id, ok := f.resolve(contextName)
	if !ok {
		return graph.Context{}, fmt.Errorf("%w: %s", ErrNameNotFound, contextName)
	}
	c, ok, err := f.engine.GetContext(ctx, id)
	if err != nil {
		return graph.Context{}, err
	}
	if !ok {
		return graph.Context{}, fmt.Errorf("%w: %s", graph.ErrContextNotFound, id)
	}
	return c, nil
}

func (f *Facade) resolve(name string) (graph.ContextId, bool) {
	f.namesMu.RLock()
	defer f.namesMu.RUnlock()
	id, ok := f.names[name]
	return id, ok
}
