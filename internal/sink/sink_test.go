package sink_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrgforge/plexus/internal/engine"
	"github.com/nrgforge/plexus/internal/enrichment"
	"github.com/nrgforge/plexus/internal/sink"
	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
	"github.com/nrgforge/plexus/pkg/graph/memstore"
)

type coOccurrence struct{}

func (coOccurrence) ID() string { return "co_occurrence" }

func (coOccurrence) Enrich(_ context.Context, events []emission.GraphEvent, snapshot graph.Context) (*emission.Emission, error) {
	var added []graph.NodeId
	for _, ev := range events {
		if ev.Kind == emission.NodesAdded {
			added = append(added, ev.NodeIDs...)
		}
	}
	if len(added) < 2 {
		return nil, nil
	}
	existing := snapshot.EdgeIndex()
	em := &emission.Emission{}
	for i := 0; i < len(added); i++ {
		for j := i + 1; j < len(added); j++ {
			key := graph.EdgeKey{Source: added[i], Target: added[j], Relationship: "co_occurs_with"}
			if _, ok := existing[key]; ok {
				continue
			}
			em.Edges = append(em.Edges, graph.NewEdge(added[i], added[j], "co_occurs_with"))
		}
	}
	if len(em.Edges) == 0 {
		return nil, nil
	}
	return em, nil
}

func TestSink_Emit_RunsPrimaryCommitAndEnrichmentLoop(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	e := engine.New(store)
	c := graph.NewContext("session")
	id, err := e.UpsertContext(context.Background(), c)
	require.NoError(t, err)

	reg := enrichment.NewRegistry()
	reg.Register(coOccurrence{})

	s := sink.New(e, id, "fragment", reg)

	a := graph.NewNode("fragment", graph.Structure)
	b := graph.NewNode("fragment", graph.Structure)
	result, entry, err := s.Emit(context.Background(), emission.Emission{Nodes: []graph.Node{a, b}}, &emission.Annotation{Confidence: 0.9, Method: "heuristic"})
	require.NoError(t, err)
	require.Equal(t, 2, result.NodesCommitted)
	require.Equal(t, 1, result.EdgesCommitted)
	require.Equal(t, "fragment", entry.AdapterID)
	require.NotNil(t, entry.Annotation)
	require.InDelta(t, 0.9, entry.Annotation.Confidence, 1e-9)

	committed, _, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, committed.Edges, 1)
}

func TestSink_Emit_WithoutEnrichments(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	e := engine.New(store)
	c := graph.NewContext("session")
	id, err := e.UpsertContext(context.Background(), c)
	require.NoError(t, err)

	s := sink.New(e, id, "fragment", nil)
	result, _, err := s.Emit(context.Background(), emission.Emission{
		Nodes: []graph.Node{graph.NewNode("fragment", graph.Structure)},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.NodesCommitted)
}
