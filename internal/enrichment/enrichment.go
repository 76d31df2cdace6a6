// Package enrichment implements the round-based fixed-point algorithm
// (§4.6) that the sink drives after every primary commit: registered
// Enrichments observe the GraphEvents a round produced and may propose
// further Emissions, which themselves generate events for the next round,
// until a round produces nothing new or max_rounds is reached.
package enrichment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
)

// DefaultMaxRounds is the safety-valve round budget (§4.6) applied when a
// Registry is constructed without an explicit override.
const DefaultMaxRounds = 16

// Enrichment observes a round's GraphEvents against the context snapshot
// they were produced against, and proposes an Emission of further
// mutations. Returning a nil or empty Emission means "nothing to add this
// round." Idempotence — not re-proposing the same mutation when it already
// holds — is each Enrichment's own responsibility (§4.6); the loop does not
// deduplicate emitted content across rounds.
type Enrichment interface {
	ID() string
	Enrich(ctx context.Context, events []emission.GraphEvent, snapshot graph.Context) (*emission.Emission, error)
}

// Registry holds an ordered, id-deduplicated set of Enrichments. The first
// Enrichment registered under a given ID wins; later registrations of the
// same ID are ignored.
type Registry struct {
	order []string
	byID  map[string]Enrichment
	maxRounds int
}

// NewRegistry returns an empty Registry with DefaultMaxRounds.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Enrichment), maxRounds: DefaultMaxRounds}
}

// WithMaxRounds overrides the round safety valve.
func (r *Registry) WithMaxRounds(n int) *Registry {
	if n > 0 {
		r.maxRounds = n
	}
	return r
}

// Register adds e to the registry, ignoring duplicate IDs.
func (r *Registry) Register(e Enrichment) {
	if _, exists := r.byID[e.ID()]; exists {
		return
	}
	r.byID[e.ID()] = e
	r.order = append(r.order, e.ID())
}

// List returns the registered Enrichments in registration order.
func (r *Registry) List() []Enrichment {
	out := make([]Enrichment, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Applier is the subset of *engine.Engine the loop needs: apply a round's
// proposed Emission and return the resulting events, against a context that
// must already be write-locked by the caller.
type Applier interface {
	ApplyEmission(ctx context.Context, ctxID graph.ContextId, adapterID string, em emission.Emission) (emission.EmitResult, error)
	GetContext(ctx context.Context, id graph.ContextId) (graph.Context, bool, error)
}

// Run drives the fixed-point loop starting from seedEvents (the primary
// commit's GraphEvents). Round k's Enrichments observe only round k-1's
// events (§4.6 "per-round event visibility") — never the cumulative
// history. Run assumes the caller already holds ctxID's write lock for the
// entire call.
func (r *Registry) Run(ctx context.Context, applier Applier, ctxID graph.ContextId, seedEvents []emission.GraphEvent) (emission.EmitResult, error) {
	var total emission.EmitResult
	round := seedEvents

	for i := 0; i < r.maxRounds; i++ {
		if len(round) == 0 {
			return total, nil
		}
		slog.Debug("enrichment: dispatching round", "context_id", ctxID, "round", i, "events", len(round))

		snapshot, found, err := applier.GetContext(ctx, ctxID)
		if err != nil {
			return total, err
		}
		if !found {
			return total, fmt.Errorf("enrichment: round %d: %w: %s", i, graph.ErrContextNotFound, ctxID)
		}

		var nextEvents []emission.GraphEvent
		produced := false

		for _, en := range r.List() {
			em, err := en.Enrich(ctx, round, snapshot)
			if err != nil {
				return total, fmt.Errorf("enrichment: %s: round %d: %w", en.ID(), i, err)
			}
			if em == nil || em.IsEmpty() {
				continue
			}

			stampDefaultContributions(em, en.ID())

			result, err := applier.ApplyEmission(ctx, ctxID, "enrichment:"+en.ID(), *em)
			if err != nil {
				return total, err
			}
			total = total.Merge(result)
			if len(result.Events) > 0 {
				produced = true
				nextEvents = append(nextEvents, result.Events...)
			}
		}

		if !produced {
			return total, nil
		}
		round = nextEvents
	}

	slog.Warn("enrichment: safety valve reached, discarding remaining events",
		"context_id", ctxID, "max_rounds", r.maxRounds, "discarded_events", len(round))
	return total, nil
}

// stampDefaultContributions ensures every edge an enrichment proposes
// carries a contribution slot attributed to that enrichment, when it didn't
// supply one itself — the "<enrichment-kind>:<id>" auto-stamp (§4.6).
func stampDefaultContributions(em *emission.Emission, enrichmentID string) {
	for i, e := range em.Edges {
		if len(e.Contributions) > 0 {
			continue
		}
		em.Edges[i] = e.WithContribution(graph.ContributorId("enrichment:"+enrichmentID), 1.0)
	}
}
