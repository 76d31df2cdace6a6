package graph

import (
	"context"
	"errors"
)

// ErrContextNotFound is returned by GraphStore operations that address a
// context the store has no record of.
var ErrContextNotFound = errors.New("graph: context not found")

// RetractionSummary reports the effect of a RetractContributions call.
type RetractionSummary struct {
	// EdgesPruned counts edges deleted because their contribution map
	// became empty after the contributor's slot was removed.
	EdgesPruned int

	// SlotsRemoved counts the total number of contribution slots removed
	// across every edge in the context (including slots on edges that
	// were not pruned).
	SlotsRemoved int
}

// GraphStore is the durability contract the engine depends on. It is a
// minimal interface — persistence backends (in-memory, embedded key/value,
// relational, …) satisfy it independently of the engine and of each other.
// §4.2 of SPEC_FULL.md names this as the external-collaborator boundary: the
// engine calls every method below except Close.
//
// All operations either succeed and become visible to subsequent calls, or
// fail atomically without partial mutation. Implementations must serialize
// writes per context; PersistContext is assumed atomic per context.
type GraphStore interface {
	// PersistContext writes through a full upsert of every node and edge in
	// ctx: last-writer-wins by (ctx.ID, node.ID) for nodes and by
	// (ctx.ID, source, target, relationship) for edges, with contribution
	// maps persisted intact.
	PersistContext(ctx context.Context, c Context) error

	// RetractContributions removes every contribution slot keyed by
	// contributorID from every edge of the context ctxID, deletes any edge
	// whose map becomes empty as a result, and persists the change. It
	// returns ErrContextNotFound if ctxID is unknown.
	RetractContributions(ctx context.Context, ctxID ContextId, contributorID ContributorId) (RetractionSummary, error)

	// LoadContext reconstructs a single context, or returns
	// (Context{}, false, nil) if ctxID is unknown to the store.
	// RawWeight on every returned edge is advisory: callers (the engine)
	// must recompute it from Contributions after load.
	LoadContext(ctx context.Context, ctxID ContextId) (Context, bool, error)

	// LoadAll reconstructs every context the store holds. As with
	// LoadContext, RawWeight is advisory and must be recomputed by the
	// caller.
	LoadAll(ctx context.Context) ([]Context, error)

	// DeleteContext removes a context and all its nodes/edges from the
	// store. Deleting a non-existent context is not an error.
	DeleteContext(ctx context.Context, ctxID ContextId) error

	// Close releases any resources (connections, file handles) held by the
	// store.
	Close() error
}
