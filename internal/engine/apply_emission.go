package engine

import (
	"context"
	"fmt"

	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
)

// ApplyEmission runs the low-level commit protocol (§4.5 steps 1–6) against
// ctxID: it normalizes em, merges it into the context's working copy,
// validates invariants 2/3/5 (rejecting only the offending node/edge, not
// the whole emission), recomputes weights, commits, and returns the
// GraphEvents generated together with any Rejections. The caller must
// already hold the per-context write lock (via Lock) — ApplyEmission itself
// performs no locking, since the enrichment loop calls it repeatedly within
// a single held lock.
func (e *Engine) ApplyEmission(ctx context.Context, ctxID graph.ContextId, adapterID string, em emission.Emission) (emission.EmitResult, error) {
	if em.IsEmpty() {
		return emission.EmitResult{}, nil
	}

	working, found, err := e.GetContext(ctx, ctxID)
	if err != nil {
		return emission.EmitResult{}, err
	}
	if !found {
		return emission.EmitResult{}, fmt.Errorf("engine: apply emission: %w: %s", graph.ErrContextNotFound, ctxID)
	}

	var result emission.EmitResult

	// Step 2 (partial): default node dimension to Structure when unset.
	addedNodes := make([]graph.NodeId, 0, len(em.Nodes))
	updatedByAdd := make(map[graph.NodeId]bool, len(em.Nodes))
	for _, n := range em.Nodes {
		if n.Dimension == "" {
			n.Dimension = graph.Structure
		}
		if n.ID == "" {
			n.ID = graph.NewNodeId()
		}
		if _, existed := working.Nodes[n.ID]; existed {
			updatedByAdd[n.ID] = true
		}
		working.Nodes[n.ID] = n
		addedNodes = append(addedNodes, n.ID)
	}

	// PropertyUpdate: field-level merge against an existing node.
	updatedNodes := make([]graph.NodeId, 0, len(em.NodeUpdates))
	for _, u := range em.NodeUpdates {
		n, ok := working.Nodes[u.NodeID]
		if !ok {
			continue
		}
		n.Properties = n.Properties.Merge(u.Patch)
		working.Nodes[u.NodeID] = n
		updatedNodes = append(updatedNodes, u.NodeID)
	}

	// Step 3: merge edges. Within a single emission, repeated contributor
	// ids for the same EdgeKey overwrite (last writer wins); the resulting
	// per-key contribution set is then summed against any pre-existing
	// persisted edge via MergeContributions.
	type pendingEdge struct {
		template      graph.Edge
		contributions map[graph.ContributorId]float32
	}
	pending := make(map[graph.EdgeKey]*pendingEdge)
	order := make([]graph.EdgeKey, 0, len(em.Edges))
	for _, in := range em.Edges {
		key := in.Key()
		p, ok := pending[key]
		if !ok {
			p = &pendingEdge{template: in, contributions: make(map[graph.ContributorId]float32)}
			pending[key] = p
			order = append(order, key)
		} else {
			p.template = in
		}
		for id, v := range in.Contributions {
			clamped, ok := graph.ClampContribution(v)
			if !ok {
				result.Rejections = append(result.Rejections, emission.Rejection{
					Reason: emission.ReasonInvalidContribution,
					Detail: fmt.Sprintf("contribution %q for edge %v is not a valid weight", id, key),
					EdgeKey: func() *graph.EdgeKey { k := key; return &k }(),
				})
				continue
			}
			p.contributions[id] = clamped
		}
	}

	edgeIndex := working.EdgeIndex()
	addedEdges := make([]graph.EdgeId, 0, len(order))
	updatedEdges := make(map[graph.EdgeId]bool)

	for _, key := range order {
		p := pending[key]

		if len(p.contributions) == 0 {
			// No valid contribution survived clamping; synthesize the
			// default slot per §4.5 step 2 ("adapter:<id>", max(raw,1.0)) —
			// the incoming raw_weight is treated as a contribution hint.
			hint := p.template.RawWeight
			if hint < 1.0 {
				hint = 1.0
			}
			p.contributions[graph.ContributorId("adapter:"+adapterID)] = hint
		}

		srcNode, srcOK := working.Nodes[key.Source]
		tgtNode, tgtOK := working.Nodes[key.Target]
		if !srcOK || !tgtOK {
			result.Rejections = append(result.Rejections, emission.Rejection{
				Reason:  emission.ReasonDanglingReference,
				Detail:  fmt.Sprintf("edge %v references a node not present in the context", key),
				EdgeKey: func() *graph.EdgeKey { k := key; return &k }(),
			})
			continue
		}

		srcDim := p.template.SourceDimension
		if srcDim == "" {
			srcDim = srcNode.Dimension
		}
		tgtDim := p.template.TargetDimension
		if tgtDim == "" {
			tgtDim = tgtNode.Dimension
		}
		if srcDim != srcNode.Dimension || tgtDim != tgtNode.Dimension {
			result.Rejections = append(result.Rejections, emission.Rejection{
				Reason:  emission.ReasonDimensionMismatch,
				Detail:  fmt.Sprintf("edge %v declares dimensions that disagree with its endpoints", key),
				EdgeKey: func() *graph.EdgeKey { k := key; return &k }(),
			})
			continue
		}

		if idx, exists := edgeIndex[key]; exists {
			merged := working.Edges[idx].MergeContributions(p.contributions)
			merged.SourceDimension = srcDim
			merged.TargetDimension = tgtDim
			if len(p.template.Properties) > 0 {
				merged.Properties = merged.Properties.Merge(p.template.Properties)
			}
			working.Edges[idx] = merged
			updatedEdges[merged.ID] = true
			continue
		}

		newEdge := p.template
		if newEdge.ID == "" {
			newEdge.ID = graph.NewEdgeId()
		}
		newEdge.SourceDimension = srcDim
		newEdge.TargetDimension = tgtDim
		newEdge.Contributions = p.contributions
		newEdge.RecomputeWeight()
		working.Edges = append(working.Edges, newEdge)
		edgeIndex[key] = len(working.Edges) - 1
		addedEdges = append(addedEdges, newEdge.ID)
	}

	// Explicit edge removals.
	removedEdges := make([]graph.EdgeId, 0, len(em.EdgeRemovals))
	if len(em.EdgeRemovals) > 0 {
		removeKeys := make(map[graph.EdgeKey]bool, len(em.EdgeRemovals))
		for _, r := range em.EdgeRemovals {
			removeKeys[r.Key] = true
		}
		kept := working.Edges[:0:0]
		for _, ed := range working.Edges {
			if removeKeys[ed.Key()] {
				removedEdges = append(removedEdges, ed.ID)
				continue
			}
			kept = append(kept, ed)
		}
		working.Edges = kept
	}

	// Node removals cascade to every incident edge (§3 Lifecycle).
	removedNodes := make([]graph.NodeId, 0, len(em.NodeRemovals))
	if len(em.NodeRemovals) > 0 {
		removeIDs := make(map[graph.NodeId]bool, len(em.NodeRemovals))
		for _, r := range em.NodeRemovals {
			if _, ok := working.Nodes[r.NodeID]; ok {
				removeIDs[r.NodeID] = true
				removedNodes = append(removedNodes, r.NodeID)
				delete(working.Nodes, r.NodeID)
			}
		}
		if len(removeIDs) > 0 {
			kept := working.Edges[:0:0]
			for _, ed := range working.Edges {
				if removeIDs[ed.Source] || removeIDs[ed.Target] {
					removedEdges = append(removedEdges, ed.ID)
					continue
				}
				kept = append(kept, ed)
			}
			working.Edges = kept
		}
	}

	// Invariant 5: an edge left with no contribution slots cannot be
	// persisted, even if it survived the merge above (all of its
	// contributors were retracted in the same round — not expected from a
	// single emission, but enforced defensively).
	final := working.Edges[:0:0]
	for _, ed := range working.Edges {
		if ed.HasEmptyContributions() {
			result.Rejections = append(result.Rejections, emission.Rejection{
				Reason:  emission.ReasonEmptyContributions,
				Detail:  fmt.Sprintf("edge %v has no contribution slots after merge", ed.Key()),
				EdgeKey: func() *graph.EdgeKey { k := ed.Key(); return &k }(),
			})
			continue
		}
		final = append(final, ed)
	}
	working.Edges = final
	working.RecomputeWeights()
	working.Touch()

	if err := e.Commit(ctx, working); err != nil {
		return emission.EmitResult{}, err
	}

	for id := range updatedByAdd {
		updatedNodes = append(updatedNodes, id)
	}
	trueAdds := addedNodes[:0:0]
	for _, id := range addedNodes {
		if !updatedByAdd[id] {
			trueAdds = append(trueAdds, id)
		}
	}

	result.NodesCommitted = len(trueAdds)
	result.EdgesCommitted = len(addedEdges)
	result.NodesUpdated = len(updatedNodes)
	result.ItemsRemoved = len(removedNodes) + len(removedEdges)

	if len(trueAdds) > 0 {
		result.Events = append(result.Events, emission.GraphEvent{Kind: emission.NodesAdded, NodeIDs: trueAdds, AdapterID: adapterID, ContextID: ctxID})
	}
	if len(addedEdges) > 0 {
		result.Events = append(result.Events, emission.GraphEvent{Kind: emission.EdgesAdded, EdgeIDs: addedEdges, AdapterID: adapterID, ContextID: ctxID})
	}
	if len(updatedNodes) > 0 {
		result.Events = append(result.Events, emission.GraphEvent{Kind: emission.NodesUpdated, NodeIDs: updatedNodes, AdapterID: adapterID, ContextID: ctxID})
	}
	if len(removedNodes) > 0 {
		result.Events = append(result.Events, emission.GraphEvent{Kind: emission.NodesRemoved, NodeIDs: removedNodes, AdapterID: adapterID, ContextID: ctxID})
	}
	if len(removedEdges) > 0 {
		result.Events = append(result.Events, emission.GraphEvent{Kind: emission.EdgesRemoved, EdgeIDs: removedEdges, AdapterID: adapterID, ContextID: ctxID})
	}

	return result, nil
}
