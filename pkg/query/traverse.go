package query

import "github.com/nrgforge/plexus/pkg/graph"

// Direction controls which edges a traversal follows from each frontier
// node.
type Direction int

const (
	// Outgoing follows edges where the frontier node is the Source.
	Outgoing Direction = iota
	// Incoming follows edges where the frontier node is the Target.
	Incoming
	// Both follows edges in either direction.
	Both
)

type traverseOptions struct {
	direction    Direction
	maxDepth     int
	relationship string
}

// TraverseOpt configures a traversal.
type TraverseOpt func(*traverseOptions)

// WithDirection sets which edges to follow (default Outgoing).
func WithDirection(d Direction) TraverseOpt {
	return func(o *traverseOptions) { o.direction = d }
}

// WithMaxDepth bounds how many hops the traversal expands (default 1).
func WithMaxDepth(depth int) TraverseOpt {
	return func(o *traverseOptions) { o.maxDepth = depth }
}

// WithRelationship restricts traversal to edges of the given relationship
// type; empty (the default) follows every relationship.
func WithRelationship(relationship string) TraverseOpt {
	return func(o *traverseOptions) { o.relationship = relationship }
}

// TraversalResult is the outcome of Traverse: the nodes discovered at each
// depth (Levels[0] is just the origin, or nil when the origin is not in the
// snapshot) and every edge followed to reach them.
type TraversalResult struct {
	Origin graph.NodeId
	Levels [][]graph.Node
	Edges  []graph.Edge
}

// AllNodes returns every node discovered beyond the origin, across all
// depths.
func (r TraversalResult) AllNodes() []graph.Node {
	var out []graph.Node
	for _, level := range r.Levels[1:] {
		out = append(out, level...)
	}
	return out
}

// MaxDepth returns the deepest level reached.
func (r TraversalResult) MaxDepth() int {
	return len(r.Levels) - 1
}

// Traverse performs a breadth-first expansion from origin within snapshot,
// up to maxDepth hops, following edges per the configured Direction and
// optional relationship filter.
func Traverse(snapshot graph.Context, origin graph.NodeId, opts ...TraverseOpt) TraversalResult {
	o := traverseOptions{maxDepth: 1}
	for _, opt := range opts {
		opt(&o)
	}

	result := TraversalResult{Origin: origin}
	if originNode, ok := snapshot.Nodes[origin]; ok {
		result.Levels = append(result.Levels, []graph.Node{originNode})
	} else {
		result.Levels = append(result.Levels, nil)
		return result
	}

	visited := map[graph.NodeId]bool{origin: true}
	frontier := []graph.NodeId{origin}
	seenEdges := make(map[graph.EdgeId]bool)

	for depth := 0; depth < o.maxDepth && len(frontier) > 0; depth++ {
		var nextLevel []graph.Node
		var nextFrontier []graph.NodeId

		for _, nodeID := range frontier {
			for _, e := range snapshot.Edges {
				if o.relationship != "" && e.Relationship != o.relationship {
					continue
				}
				var neighbor graph.NodeId
				switch o.direction {
				case Incoming:
					if e.Target != nodeID {
						continue
					}
					neighbor = e.Source
				case Both:
					switch nodeID {
					case e.Source:
						neighbor = e.Target
					case e.Target:
						neighbor = e.Source
					default:
						continue
					}
				default: // Outgoing
					if e.Source != nodeID {
						continue
					}
					neighbor = e.Target
				}

				if !seenEdges[e.ID] {
					seenEdges[e.ID] = true
					result.Edges = append(result.Edges, e)
				}
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				if n, ok := snapshot.Nodes[neighbor]; ok {
					nextLevel = append(nextLevel, n)
					nextFrontier = append(nextFrontier, neighbor)
				}
			}
		}

		if len(nextLevel) == 0 {
			break
		}
		result.Levels = append(result.Levels, nextLevel)
		frontier = nextFrontier
	}

	return result
}
