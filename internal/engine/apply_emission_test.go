package engine_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrgforge/plexus/internal/engine"
	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
	"github.com/nrgforge/plexus/pkg/graph/memstore"
)

func newTestContext(t *testing.T, e *engine.Engine) graph.ContextId {
	t.Helper()
	c := graph.NewContext("test")
	id, err := e.UpsertContext(context.Background(), c)
	require.NoError(t, err)
	return id
}

func TestApplyEmission_EmptyEmissionIsNoOp(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{})
	require.NoError(t, err)
	require.Zero(t, result)
}

func TestApplyEmission_UnknownContext(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	_, err := e.ApplyEmission(context.Background(), "ghost", "fragment", emission.Emission{
		Nodes: []graph.Node{graph.NewNode("concept", graph.Semantic)},
	})
	require.ErrorIs(t, err, graph.ErrContextNotFound)
}

func TestApplyEmission_AddsNodesAndEdges(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)
	edge := graph.NewEdge(a.ID, b.ID, "related_to").WithContribution("adapter:fragment", 0.8)

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{edge},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.NodesCommitted)
	require.Equal(t, 1, result.EdgesCommitted)
	require.Empty(t, result.Rejections)
	require.Len(t, result.Events, 2)
	require.Equal(t, emission.NodesAdded, result.Events[0].Kind)
	require.Equal(t, emission.EdgesAdded, result.Events[1].Kind)

	committed, found, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, committed.Edges, 1)
	require.InDelta(t, float32(0.8), committed.Edges[0].RawWeight, 1e-6)
}

func TestApplyEmission_DanglingReferenceRejected(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	edge := graph.NewEdge(a.ID, graph.NewNodeId(), "related_to").WithContribution("adapter:fragment", 1.0)

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a},
		Edges: []graph.Edge{edge},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.EdgesCommitted)
	require.Len(t, result.Rejections, 1)
	require.Equal(t, emission.ReasonDanglingReference, result.Rejections[0].Reason)
}

func TestApplyEmission_DimensionMismatchRejected(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("fragment", graph.Structure)
	edge := graph.NewEdge(a.ID, b.ID, "related_to").
		WithContribution("adapter:fragment", 1.0).
		WithDimensions(graph.Structure, graph.Structure)

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{edge},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.EdgesCommitted)
	require.Len(t, result.Rejections, 1)
	require.Equal(t, emission.ReasonDimensionMismatch, result.Rejections[0].Reason)
}

func TestApplyEmission_InvalidContributionRejected(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)
	edge := graph.NewEdge(a.ID, b.ID, "related_to")
	edge.Contributions["embedding:v1"] = float32(math.NaN())

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{edge},
	})
	require.NoError(t, err)
	require.Len(t, result.Rejections, 1)
	require.Equal(t, emission.ReasonInvalidContribution, result.Rejections[0].Reason)
	// The edge still commits, with the synthesized default contribution
	// slot standing in for the rejected one.
	require.Equal(t, 1, result.EdgesCommitted)
}

func TestApplyEmission_SynthesizedContributionHonorsRawWeightHint(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)
	edge := graph.NewEdge(a.ID, b.ID, "related_to")
	edge.Contributions["embedding:v1"] = float32(math.NaN())
	// RawWeight is a contribution hint (§4.5 step 2): a hint above 1.0 must
	// survive into the synthesized default slot rather than being discarded
	// in favor of a hardcoded 1.0.
	edge.RawWeight = 2.5

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{edge},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.EdgesCommitted)

	committed, _, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	got, ok := committed.FindEdge(edge.Key())
	require.True(t, ok)
	require.Equal(t, float32(2.5), got.Contributions[graph.ContributorId("adapter:fragment")])
	require.Equal(t, float32(2.5), got.RawWeight)
}

func TestApplyEmission_SynthesizedContributionFloorsHintAtOne(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)
	edge := graph.NewEdge(a.ID, b.ID, "related_to")
	edge.Contributions["embedding:v1"] = float32(math.NaN())
	edge.RawWeight = 0.2

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{edge},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.EdgesCommitted)

	committed, _, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	got, ok := committed.FindEdge(edge.Key())
	require.True(t, ok)
	require.Equal(t, float32(1.0), got.Contributions[graph.ContributorId("adapter:fragment")])
}

func TestApplyEmission_MultiContributorEdge_SumsAcrossSeparateEmissions(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)
	_, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{graph.NewEdge(a.ID, b.ID, "similar_to").WithContribution("adapter:fragment", 1.0)},
	})
	require.NoError(t, err)

	_, err = e.ApplyEmission(context.Background(), id, "embedding", emission.Emission{
		Edges: []graph.Edge{graph.NewEdge(a.ID, b.ID, "similar_to").WithContribution("embedding:v1", 0.5)},
	})
	require.NoError(t, err)

	committed, _, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, committed.Edges, 1)
	require.InDelta(t, float32(1.5), committed.Edges[0].RawWeight, 1e-6)
	require.Len(t, committed.Edges[0].Contributions, 2)
}

func TestApplyEmission_RepeatedContributorWithinSameEmissionOverwrites(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{
			graph.NewEdge(a.ID, b.ID, "similar_to").WithContribution("embedding:v1", 0.2),
			graph.NewEdge(a.ID, b.ID, "similar_to").WithContribution("embedding:v1", 0.9),
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.EdgesCommitted)

	committed, _, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, committed.Edges, 1)
	require.InDelta(t, float32(0.9), committed.Edges[0].RawWeight, 1e-6)
}

func TestApplyEmission_PropertyUpdateMergesFields(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic).WithProperty("name", "Travel").WithProperty("weight", 1)
	_, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{Nodes: []graph.Node{a}})
	require.NoError(t, err)

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		NodeUpdates: []emission.PropertyUpdate{{NodeID: a.ID, Patch: graph.Properties{"weight": 2}}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.NodesUpdated)

	committed, _, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Travel", committed.Nodes[a.ID].Properties["name"])
	require.Equal(t, 2, committed.Nodes[a.ID].Properties["weight"])
}

func TestApplyEmission_NodeRemovalCascadesToIncidentEdges(t *testing.T) {
	t.Parallel()

	e := engine.New(memstore.New())
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)
	edge := graph.NewEdge(a.ID, b.ID, "related_to").WithContribution("adapter:fragment", 1.0)
	_, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{edge},
	})
	require.NoError(t, err)

	result, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		NodeRemovals: []emission.Removal{{NodeID: a.ID}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.ItemsRemoved) // 1 node + 1 cascaded edge

	committed, _, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	require.Empty(t, committed.Edges)
	_, hasA := committed.Nodes[a.ID]
	require.False(t, hasA)
}

func TestApplyEmission_RetractThenReingest(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	e := engine.New(store)
	id := newTestContext(t, e)

	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)
	_, err := e.ApplyEmission(context.Background(), id, "fragment", emission.Emission{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{
			graph.NewEdge(a.ID, b.ID, "similar_to").WithContribution("embedding:v1", 0.9),
		},
	})
	require.NoError(t, err)

	_, err = e.RetractContributions(context.Background(), id, "embedding:v1")
	require.NoError(t, err)

	committed, found, err := e.GetContext(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, committed.Edges)

	_, err = e.ApplyEmission(context.Background(), id, "embedding", emission.Emission{
		Edges: []graph.Edge{
			graph.NewEdge(a.ID, b.ID, "similar_to").WithContribution("embedding:v1", 0.4),
		},
	})
	require.NoError(t, err)

	committed, _, err = e.GetContext(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, committed.Edges, 1)
	require.InDelta(t, float32(0.4), committed.Edges[0].RawWeight, 1e-6)
}
