package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrgforge/plexus/pkg/graph"
	"github.com/nrgforge/plexus/pkg/graph/memstore"
)

func TestPersistAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()

	c := graph.NewContext("research")
	n := graph.NewNode("fragment", graph.Structure)
	c.Nodes[n.ID] = n

	e := graph.NewEdge(n.ID, n.ID, "self_loop").WithContribution("adapter:test", 1.0)
	c.Edges = append(c.Edges, e)

	require.NoError(t, s.PersistContext(ctx, c))

	loaded, found, err := s.LoadContext(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, loaded.Edges, 1)
	require.InDelta(t, float32(1.0), loaded.Edges[0].RawWeight, 1e-6)
}

func TestLoadContext_Unknown(t *testing.T) {
	t.Parallel()

	s := memstore.New()
	_, found, err := s.LoadContext(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRetractContributions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()

	c := graph.NewContext("research")
	a := graph.NewNode("concept", graph.Semantic)
	b := graph.NewNode("concept", graph.Semantic)
	c.Nodes[a.ID] = a
	c.Nodes[b.ID] = b

	onlyV1 := graph.NewEdge(a.ID, b.ID, "similar_to").WithContribution("embedding:v1", 0.9)
	multi := graph.NewEdge(a.ID, b.ID, "references").
		WithContribution("embedding:v1", 0.5).
		WithContribution("adapter:fragment", 1.0)
	c.Edges = []graph.Edge{onlyV1, multi}

	require.NoError(t, s.PersistContext(ctx, c))

	summary, err := s.RetractContributions(ctx, c.ID, "embedding:v1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.EdgesPruned)
	require.Equal(t, 2, summary.SlotsRemoved)

	loaded, found, err := s.LoadContext(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, loaded.Edges, 1)
	require.Equal(t, "references", loaded.Edges[0].Relationship)
	_, hasV1 := loaded.Edges[0].Contributions["embedding:v1"]
	require.False(t, hasV1)
	require.InDelta(t, float32(1.0), loaded.Edges[0].RawWeight, 1e-6)
}

func TestRetractContributions_UnknownContext(t *testing.T) {
	t.Parallel()

	s := memstore.New()
	_, err := s.RetractContributions(context.Background(), "ghost", "adapter:x")
	require.ErrorIs(t, err, graph.ErrContextNotFound)
}

func TestLoadAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()

	for _, name := range []string{"one", "two"} {
		c := graph.NewContext(name)
		require.NoError(t, s.PersistContext(ctx, c))
	}

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDeleteContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	c := graph.NewContext("doomed")
	require.NoError(t, s.PersistContext(ctx, c))

	require.NoError(t, s.DeleteContext(ctx, c.ID))

	_, found, err := s.LoadContext(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, found)
}
