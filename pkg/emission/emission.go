// Package emission defines the value objects that flow through the Plexus
// commit protocol: the Emission an adapter or enrichment hands to a sink,
// the GraphEvents and OutboundEvents that protocol produces, and the
// EmitResult/Rejection types that report what happened.
package emission

import (
	"time"

	"github.com/nrgforge/plexus/pkg/graph"
)

// PropertyUpdate is a field-level merge against an existing node's
// Properties map: keys present in Patch overwrite existing values, absent
// keys are left unchanged.
type PropertyUpdate struct {
	NodeID graph.NodeId
	Patch  graph.Properties
}

// Removal identifies a node for deletion. Removing a node cascades to every
// edge incident on it (§3 Lifecycle).
type Removal struct {
	NodeID graph.NodeId
}

// EdgeRemoval identifies a single edge for deletion by its merge key.
type EdgeRemoval struct {
	Key graph.EdgeKey
}

// Annotation is adapter-provided metadata — confidence, derivation method,
// and source location — that the engine assembles into a ProvenanceEntry
// alongside the ambient FrameworkContext. It travels out-of-band from the
// edges/nodes themselves; it is never part of a persisted Edge or Node.
type Annotation struct {
	Confidence float64
	Method     string
	Location   string
}

// Emission is one atomic batch of proposed graph mutations submitted to a
// sink. A zero-value Emission (no nodes, edges, updates, or removals) is
// valid and commits nothing (§8 "Empty emission" boundary).
type Emission struct {
	Nodes        []graph.Node
	Edges        []graph.Edge
	NodeUpdates  []PropertyUpdate
	NodeRemovals []Removal
	EdgeRemovals []EdgeRemoval
	Annotation   *Annotation
}

// IsEmpty reports whether e proposes no mutations at all.
func (e Emission) IsEmpty() bool {
	return len(e.Nodes) == 0 && len(e.Edges) == 0 && len(e.NodeUpdates) == 0 &&
		len(e.NodeRemovals) == 0 && len(e.EdgeRemovals) == 0
}

// GraphEventKind discriminates the tagged-sum GraphEvent.
type GraphEventKind string

const (
	NodesAdded   GraphEventKind = "nodes_added"
	EdgesAdded   GraphEventKind = "edges_added"
	NodesUpdated GraphEventKind = "nodes_updated"
	NodesRemoved GraphEventKind = "nodes_removed"
	EdgesRemoved GraphEventKind = "edges_removed"
)

// GraphEvent is an internal signal fed to enrichments: it never crosses the
// adapter/caller boundary directly (§9 "Events vs. outbound events").
type GraphEvent struct {
	Kind      GraphEventKind
	NodeIDs   []graph.NodeId
	EdgeIDs   []graph.EdgeId
	AdapterID string
	ContextID graph.ContextId
}

// OutboundEvent is a domain-meaningful event an adapter derives from
// GraphEvents via transform_events, for return to the ingest caller.
type OutboundEvent struct {
	Kind   string
	Detail string
}

// RejectionReason classifies why an individual node/edge within an emission
// was not committed. Whole-emission failure (ContextNotFound, hard
// conflicts) is reported as an error, not a Rejection.
type RejectionReason string

const (
	// ReasonDanglingReference: an edge's source or target does not resolve
	// to a node in the context (invariant 2).
	ReasonDanglingReference RejectionReason = "dangling_reference"

	// ReasonDimensionMismatch: an edge's declared source/target dimension
	// disagrees with the referenced node's dimension (invariant 3).
	ReasonDimensionMismatch RejectionReason = "dimension_mismatch"

	// ReasonEmptyContributions: an edge would be persisted with no
	// contribution slots (invariant 5).
	ReasonEmptyContributions RejectionReason = "empty_contributions"

	// ReasonInvalidContribution: a contribution value was NaN, which
	// clamping cannot repair (§4.5 step 2).
	ReasonInvalidContribution RejectionReason = "invalid_contribution"
)

// Rejection reports one emission item that did not commit.
type Rejection struct {
	Reason  RejectionReason
	Detail  string
	EdgeKey *graph.EdgeKey
	NodeID  *graph.NodeId
}

// EmitResult reports everything a single sink.Emit call committed, the
// GraphEvents it produced (across the primary commit and every enrichment
// round), and any per-item Rejections.
type EmitResult struct {
	NodesCommitted int
	EdgesCommitted int
	NodesUpdated   int
	ItemsRemoved   int
	Events         []GraphEvent
	Rejections     []Rejection
}

// Merge folds other's counts, events, and rejections into r, returning the
// combined result. Used to accumulate results across enrichment rounds.
func (r EmitResult) Merge(other EmitResult) EmitResult {
	r.NodesCommitted += other.NodesCommitted
	r.EdgesCommitted += other.EdgesCommitted
	r.NodesUpdated += other.NodesUpdated
	r.ItemsRemoved += other.ItemsRemoved
	r.Events = append(r.Events, other.Events...)
	r.Rejections = append(r.Rejections, other.Rejections...)
	return r
}

// ProvenanceEntry is the per-emission audit record the engine assembles from
// a FrameworkContext, the wall-clock time of commit, and the emission's
// Annotation (if any). It is attached to the emission's metadata trail
// out-of-band — never part of a persisted Edge or Node.
type ProvenanceEntry struct {
	AdapterID    string
	ContextID    graph.ContextId
	Timestamp    time.Time
	InputSummary string
	Annotation   *Annotation
}
