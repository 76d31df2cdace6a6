// Package embedclient defines the narrow interface an enrichment or
// adapter uses to turn text into a vector embedding — e.g. an
// embedding-similarity enrichment that derives "similar_to" edges from
// cosine distance. Plexus ships no concrete backend; see llmclient for the
// matching rationale.
//
// Implementations must be safe for concurrent use.
package embedclient

import "context"

// Client is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Client must share Dimensions(). Callers
// must not mix vectors from different Client instances in the same
// similarity computation without verifying they share a model and space.
type Client interface {
	// Embed computes the embedding vector for a single text string.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of every vector this Client
	// produces.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, used as the
	// versioned half of a contributor id (e.g. "embedding:text-embedding-3-small").
	ModelID() string
}
