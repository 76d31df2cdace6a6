package pipeline

import (
	"context"

	"github.com/nrgforge/plexus/internal/sink"
	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
)

// AdapterInput is the opaque, type-erased payload handed to an adapter's
// Process method. Data's concrete type is a contract between an input_kind
// and the adapters registered for it; an adapter that receives a payload it
// cannot downcast must return ErrInvalidInput before any commit (§9
// "Opaque input payloads").
type AdapterInput struct {
	Kind      string
	Data      any
	ContextID graph.ContextId
	Cancel    *CancelToken
}

// Adapter turns a typed input into graph mutations via a Sink, and may
// optionally translate the graph events it produced into outbound events.
type Adapter interface {
	ID() string
	InputKind() string
	Process(ctx context.Context, input AdapterInput, s *sink.Sink) error
}

// EventTransformer is an optional capability an Adapter may additionally
// implement: a pure translation from accumulated internal GraphEvents to
// caller-facing OutboundEvents. An Adapter that does not implement this
// interface is treated as having the default empty translation (§4.7).
type EventTransformer interface {
	TransformEvents(events []emission.GraphEvent, snapshot graph.Context) []emission.OutboundEvent
}
