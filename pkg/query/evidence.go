package query

import "github.com/nrgforge/plexus/pkg/graph"

// EvidenceEntry is one contributor's stake in an edge touching the queried
// node: which contributor supplied it and how much of the edge's raw
// weight it accounts for.
type EvidenceEntry struct {
	Edge          graph.EdgeKey
	ContributorID graph.ContributorId
	Value         float32
}

// EvidenceTrail is the full set of contributions backing every edge
// incident on a node — the read-side answer to "why does this connection
// exist, and who put it there." Loosely grounded on original_source's
// ChainView/MarkView provenance views, adapted to Plexus's contribution
// model rather than a file/line annotation model: here the "chain" is the
// set of contributor ids behind a node's edges, not an external citation.
type EvidenceTrail struct {
	NodeID  graph.NodeId
	Entries []EvidenceEntry
}

// Evidence assembles the EvidenceTrail for nodeID: every contribution slot
// on every edge where nodeID is the source or the target.
func Evidence(snapshot graph.Context, nodeID graph.NodeId) EvidenceTrail {
	trail := EvidenceTrail{NodeID: nodeID}
	for _, e := range snapshot.Edges {
		if e.Source != nodeID && e.Target != nodeID {
			continue
		}
		for contributorID, value := range e.Contributions {
			trail.Entries = append(trail.Entries, EvidenceEntry{
				Edge:          e.Key(),
				ContributorID: contributorID,
				Value:         value,
			})
		}
	}
	return trail
}
