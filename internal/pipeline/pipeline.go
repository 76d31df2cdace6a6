// Package pipeline implements the ingest pipeline (§4.7): routing of
// opaque input payloads to registered adapters by input_kind, fan-out
// across adapters sharing a kind, assembly of the global enrichment
// registry, and the transform_events translation layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nrgforge/plexus/internal/enrichment"
	"github.com/nrgforge/plexus/internal/observe"
	"github.com/nrgforge/plexus/internal/resilience"
	"github.com/nrgforge/plexus/internal/sink"
	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
)

// ErrNoAdapter is returned when no adapter is registered for an input_kind.
var ErrNoAdapter = errors.New("pipeline: no adapter registered for input kind")

// ErrAllAdaptersFailed is returned when every adapter fan-out for an
// input_kind either errored or had an open circuit breaker.
var ErrAllAdaptersFailed = errors.New("pipeline: all adapters failed")

// ErrInvalidInput is the error an adapter returns, alone or wrapped, when
// it cannot decode the payload in its [AdapterInput].
var ErrInvalidInput = errors.New("pipeline: invalid input")

// Engine is the subset of *engine.Engine the pipeline's sinks depend on.
type Engine interface {
	sink.Applier
}

// Integration binds one adapter to zero or more enrichments that travel
// with it into the pipeline's global, deduplicated enrichment registry.
type Integration struct {
	Adapter     Adapter
	Enrichments []enrichment.Enrichment
}

// IngestPipeline routes ingest calls to registered adapters and drives
// their sinks. The zero value is not ready to use — construct with New.
type IngestPipeline struct {
	engine Engine

	integrations []Integration
	byKind       map[string][]Adapter
	global       *enrichment.Registry
	breakers     map[string]*resilience.CircuitBreaker
}

// New constructs an empty IngestPipeline bound to engine.
func New(engine Engine) *IngestPipeline {
	return &IngestPipeline{
		engine:   engine,
		byKind:   make(map[string][]Adapter),
		global:   enrichment.NewRegistry(),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// Register adds an integration: its adapter is indexed under its declared
// InputKind (appended to any existing fan-out list for that kind, in
// registration order), and its enrichments are merged into the pipeline's
// global registry, deduplicated by id — the first registration of a given
// id wins (§4.6 "Registry").
func (p *IngestPipeline) Register(i Integration) {
	p.integrations = append(p.integrations, i)
	kind := i.Adapter.InputKind()
	p.byKind[kind] = append(p.byKind[kind], i.Adapter)
	adapterID := i.Adapter.ID()
	p.breakers[adapterID] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: adapterID,
		OnStateChange: func(from, to resilience.State) {
			observe.DefaultMetrics().RecordCircuitTransition(context.Background(), adapterID, from.String(), to.String())
		},
	})
	for _, en := range i.Enrichments {
		p.global.Register(en)
	}
}

// Ingest routes opaque_data for inputKind to every adapter registered for
// it, sequentially in registration order (fan-out is never concurrent —
// §5), then runs transform_events for every adapter that ran against the
// accumulated events and the final snapshot, returning the concatenation.
//
// Each adapter runs behind its own [resilience.CircuitBreaker]: one
// adapter's failure (or open breaker) is logged and skipped rather than
// aborting the other adapters sharing this input_kind. Ingest only fails
// outright if every adapter for inputKind failed.
func (p *IngestPipeline) Ingest(ctx context.Context, contextID graph.ContextId, inputKind string, data any) ([]emission.OutboundEvent, error) {
	adapters := p.byKind[inputKind]
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, inputKind)
	}

	cancel := NewCancelToken()

	type ran struct {
		adapter Adapter
		events  []emission.GraphEvent
	}
	results := make([]ran, 0, len(adapters))
	var failures []error

	// Sequential fan-out: errgroup.SetLimit(1) expresses "one at a time,
	// in submission order" without a bespoke loop, while still giving us
	// errgroup's context propagation. Per-adapter errors never reach the
	// group's own error aggregation — they're isolated below.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)

	for _, adapter := range adapters {
		adapter := adapter
		g.Go(func() error {
			s := sink.New(p.engine, contextID, adapter.ID(), p.global)
			input := AdapterInput{Kind: inputKind, Data: data, ContextID: contextID, Cancel: cancel}
			breaker := p.breakers[adapter.ID()]
			err := breaker.Execute(func() error {
				return adapter.Process(gctx, input, s)
			})
			if err != nil {
				if errors.Is(err, resilience.ErrCircuitOpen) {
					slog.Debug("pipeline: skipping adapter, circuit open", "adapter", adapter.ID())
				} else {
					slog.Warn("pipeline: adapter failed, isolating", "adapter", adapter.ID(), "error", err)
				}
				failures = append(failures, fmt.Errorf("adapter %s: %w", adapter.ID(), err))
				return nil
			}
			results = append(results, ran{adapter: adapter, events: s.Events()})
			return nil
		})
	}

	// Every function handed to g.Go returns nil (adapter errors are
	// collected in failures above), so g.Wait reports no error here.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.Join(append([]error{ErrAllAdaptersFailed}, failures...)...)
	}

	snapshot, found, err := p.engine.GetContext(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("pipeline: %w: %s", graph.ErrContextNotFound, contextID)
	}

	// transform_events observes the union of every GraphEvent produced
	// across the whole ingest call — an adapter's own emission plus every
	// other adapter's emissions and every enrichment round they triggered —
	// not just the events its own sink recorded (§4.7 Open Question (a)).
	var allEvents []emission.GraphEvent
	for _, r := range results {
		allEvents = append(allEvents, r.events...)
	}

	var outbound []emission.OutboundEvent
	for _, r := range results {
		transformer, ok := r.adapter.(EventTransformer)
		if !ok {
			continue
		}
		outbound = append(outbound, transformer.TransformEvents(allEvents, snapshot)...)
	}

	return outbound, nil
}
