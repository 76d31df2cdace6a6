package graph

// Dimension tags every node with a logical stratum of the graph and every
// edge with a source/target stratum pair. The set is open — callers may
// define further dimensions as plain strings — but the core requires these
// three to exist.
type Dimension string

const (
	// Structure is the dimension of raw ingested material: fragments, files,
	// chains, marks — anything that is "shape", not "meaning" or "evidence".
	Structure Dimension = "STRUCTURE"

	// Semantic is the dimension of derived meaning: concepts, topics, tags
	// promoted to first-class nodes.
	Semantic Dimension = "SEMANTIC"

	// Provenance is the dimension of evidence about where material came
	// from: marks, annotations, source citations.
	Provenance Dimension = "PROVENANCE"
)
