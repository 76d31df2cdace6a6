// Package graph defines the Plexus graph data model: contexts, nodes, edges,
// dimensions, and the contribution algebra that derives an edge's resolved
// weight. The package provides constructors and updaters only — it enforces
// none of the cross-cutting invariants (referential integrity, dimension
// agreement, weight identity); that responsibility belongs to the engine
// that owns a Context (see the plexus engine package).
package graph

import "github.com/google/uuid"

// ContextId opaquely identifies a Context. It is stable across restarts and
// is the unit of isolation and persistence. Semantic ids (e.g. "research",
// "campaign-one") and generated UUIDs are both valid; the graph package
// treats the value as opaque.
type ContextId string

// NodeId opaquely identifies a Node within a single Context. Semantic forms
// such as "concept:travel", "chain:fragment:src-1", or "mark:<uuid>" are
// free-form and carry no meaning to the graph package itself.
type NodeId string

// EdgeId opaquely identifies an Edge within a single Context.
type EdgeId string

// NewContextId returns a randomly generated ContextId.
func NewContextId() ContextId { return ContextId(uuid.NewString()) }

// NewNodeId returns a randomly generated NodeId.
func NewNodeId() NodeId { return NodeId(uuid.NewString()) }

// NewEdgeId returns a randomly generated EdgeId.
func NewEdgeId() EdgeId { return EdgeId(uuid.NewString()) }
