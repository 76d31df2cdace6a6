// Package sink implements the adapter commit protocol (§4.5): a thin
// wrapper around the engine and enrichment loop that holds a context's
// write lock for one entire emit — the primary commit plus every
// enrichment round it triggers — and assembles the provenance record for
// what it committed.
package sink

import (
	"context"
	"strconv"

	"github.com/nrgforge/plexus/internal/enrichment"
	"github.com/nrgforge/plexus/internal/provenance"
	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
)

// Applier is the engine surface the sink depends on.
type Applier interface {
	Lock(id graph.ContextId) func()
	ApplyEmission(ctx context.Context, ctxID graph.ContextId, adapterID string, em emission.Emission) (emission.EmitResult, error)
	GetContext(ctx context.Context, id graph.ContextId) (graph.Context, bool, error)
}

// Sink is an AdapterSink bound to one context and one adapter. A pipeline
// integration constructs one per (adapter, context) pair feeding an ingest
// call.
type Sink struct {
	engine      Applier
	contextID   graph.ContextId
	adapterID   string
	enrichments *enrichment.Registry

	events []emission.GraphEvent
}

// New constructs a Sink. enrichments may be nil — a sink with no
// enrichments registered runs only the primary commit.
func New(engine Applier, contextID graph.ContextId, adapterID string, enrichments *enrichment.Registry) *Sink {
	return &Sink{engine: engine, contextID: contextID, adapterID: adapterID, enrichments: enrichments}
}

// Events returns every GraphEvent accumulated across every Emit call made
// through this sink so far — the primary commits and all enrichment
// rounds. The ingest pipeline reads this after an adapter's Process
// returns, to feed transform_events (§4.7 step 3).
func (s *Sink) Events() []emission.GraphEvent {
	return s.events
}

// Emit runs the full commit protocol for em: acquire the context's write
// lock (held for the whole call, including every enrichment round, per
// §5), apply the primary emission, assemble its provenance entry, then
// drive the enrichment loop from the events the primary commit produced.
// The returned EmitResult is the primary commit merged with every
// enrichment round's result.
func (s *Sink) Emit(ctx context.Context, em emission.Emission, annotation *emission.Annotation) (emission.EmitResult, emission.ProvenanceEntry, error) {
	unlock := s.engine.Lock(s.contextID)
	defer unlock()

	em.Annotation = annotation

	primary, err := s.engine.ApplyEmission(ctx, s.contextID, s.adapterID, em)
	if err != nil {
		return emission.EmitResult{}, emission.ProvenanceEntry{}, err
	}

	entry := provenance.Assemble(provenance.FrameworkContext{
		AdapterID:    s.adapterID,
		ContextID:    s.contextID,
		InputSummary: summarize(em),
	}, annotation)

	result := primary
	if s.enrichments != nil && len(primary.Events) > 0 {
		enriched, err := s.enrichments.Run(ctx, s.engine, s.contextID, primary.Events)
		if err != nil {
			s.events = append(s.events, result.Events...)
			return result, entry, err
		}
		result = result.Merge(enriched)
	}

	s.events = append(s.events, result.Events...)
	return result, entry, nil
}

func summarize(em emission.Emission) string {
	return "nodes=" + strconv.Itoa(len(em.Nodes)) +
		" edges=" + strconv.Itoa(len(em.Edges)) +
		" updates=" + strconv.Itoa(len(em.NodeUpdates)) +
		" removals=" + strconv.Itoa(len(em.NodeRemovals)+len(em.EdgeRemovals))
}
