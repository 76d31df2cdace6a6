package query

import "github.com/nrgforge/plexus/pkg/graph"

// PathResult is the outcome of FindPath.
type PathResult struct {
	Found bool
	Path  []graph.Node
	Edges []graph.Edge
}

// Length returns the number of hops in the path.
func (r PathResult) Length() int { return len(r.Edges) }

type pathStep struct {
	via  graph.Edge
	prev graph.NodeId
}

// FindPath runs a breadth-first shortest-path search from source to target
// over snapshot's edges, treating every edge as traversable in its
// declared direction only (source -> target). Returns PathResult{Found:
// false} if no path exists within the graph as given.
func FindPath(snapshot graph.Context, source, target graph.NodeId) PathResult {
	if source == target {
		if n, ok := snapshot.Nodes[source]; ok {
			return PathResult{Found: true, Path: []graph.Node{n}}
		}
		return PathResult{Found: false}
	}

	adjacency := make(map[graph.NodeId][]graph.Edge)
	for _, e := range snapshot.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e)
	}

	visited := map[graph.NodeId]bool{source: true}
	cameFrom := make(map[graph.NodeId]pathStep)
	queue := []graph.NodeId{source}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, e := range adjacency[current] {
			if visited[e.Target] {
				continue
			}
			visited[e.Target] = true
			cameFrom[e.Target] = pathStep{via: e, prev: current}
			if e.Target == target {
				return reconstructPath(snapshot, cameFrom, source, target)
			}
			queue = append(queue, e.Target)
		}
	}

	return PathResult{Found: false}
}

func reconstructPath(snapshot graph.Context, cameFrom map[graph.NodeId]pathStep, source, target graph.NodeId) PathResult {
	var nodeIDs []graph.NodeId
	var edges []graph.Edge

	current := target
	for current != source {
		st := cameFrom[current]
		nodeIDs = append([]graph.NodeId{current}, nodeIDs...)
		edges = append([]graph.Edge{st.via}, edges...)
		current = st.prev
	}
	nodeIDs = append([]graph.NodeId{source}, nodeIDs...)

	path := make([]graph.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if n, ok := snapshot.Nodes[id]; ok {
			path = append(path, n)
		}
	}

	return PathResult{Found: true, Path: path, Edges: edges}
}
