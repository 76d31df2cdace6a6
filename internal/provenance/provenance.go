// Package provenance assembles the per-emission audit record (§4.5 step 7):
// a ProvenanceEntry built from the ambient FrameworkContext, the commit
// timestamp, and the emitter's Annotation.
package provenance

import (
	"time"

	"github.com/nrgforge/plexus/pkg/emission"
	"github.com/nrgforge/plexus/pkg/graph"
)

// FrameworkContext is ambient metadata the pipeline attaches to every sink
// it constructs: which adapter (or enrichment) is driving this commit, which
// context it targets, and a short human-readable summary of the input that
// triggered it.
type FrameworkContext struct {
	AdapterID    string
	ContextID    graph.ContextId
	InputSummary string
}

// Assemble builds a ProvenanceEntry from fc and an optional annotation,
// stamping the current time.
func Assemble(fc FrameworkContext, annotation *emission.Annotation) emission.ProvenanceEntry {
	return emission.ProvenanceEntry{
		AdapterID:    fc.AdapterID,
		ContextID:    fc.ContextID,
		Timestamp:    time.Now().UTC(),
		InputSummary: fc.InputSummary,
		Annotation:   annotation,
	}
}
