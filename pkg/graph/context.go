package graph

import "time"

// ContextMetadata carries context-level bookkeeping: creation/update
// timestamps, an optional owner, free-form tags, and the list of source
// paths/URIs the context was built from (see SPEC_FULL.md Part 4.3 —
// context_add_sources / context_remove_sources).
type ContextMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Owner     string    `json:"owner,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Sources   []string  `json:"sources,omitempty"`
}

// Context is a named, isolated subgraph: the unit of persistence and
// concurrency. Iteration order over Edges is not guaranteed stable under
// mutation — callers that need a stable order must sort by EdgeKey or ID.
type Context struct {
	ID       ContextId  `json:"id"`
	Name     string     `json:"name"`
	Nodes    map[NodeId]Node `json:"nodes"`
	Edges    []Edge     `json:"edges"`
	Metadata ContextMetadata `json:"metadata"`
}

// NewContext constructs an empty Context with a freshly generated id.
func NewContext(name string) Context {
	now := time.Now().UTC()
	return Context{
		ID:    NewContextId(),
		Name:  name,
		Nodes: make(map[NodeId]Node),
		Edges: nil,
		Metadata: ContextMetadata{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Clone returns a deep-enough copy of c: the Nodes map and Edges slice are
// both copied, and each Node/Edge's own Properties/Contributions maps are
// copied via Clone and cloneContributions respectively. Suitable
// for producing a mutable working copy from a cached read-only snapshot.
func (c Context) Clone() Context {
	nodes := make(map[NodeId]Node, len(c.Nodes))
	for id, n := range c.Nodes {
		nodes[id] = n.Clone()
	}
	edges := make([]Edge, len(c.Edges))
	for i, e := range c.Edges {
		e.Contributions = cloneContributions(e.Contributions)
		e.Properties = e.Properties.Clone()
		edges[i] = e
	}
	sources := append([]string(nil), c.Metadata.Sources...)
	tags := append([]string(nil), c.Metadata.Tags...)
	c.Nodes = nodes
	c.Edges = edges
	c.Metadata.Sources = sources
	c.Metadata.Tags = tags
	return c
}

// FindEdge returns the edge matching key and whether it was found. Linear
// in the number of edges — callers performing many lookups should build
// their own index from EdgeIndex.
func (c Context) FindEdge(key EdgeKey) (Edge, bool) {
	for _, e := range c.Edges {
		if e.Key() == key {
			return e, true
		}
	}
	return Edge{}, false
}

// EdgeIndex returns a map from EdgeKey to edge slice-index, for callers
// that need repeated key lookups against a single snapshot.
func (c Context) EdgeIndex() map[EdgeKey]int {
	idx := make(map[EdgeKey]int, len(c.Edges))
	for i, e := range c.Edges {
		idx[e.Key()] = i
	}
	return idx
}

// RecomputeWeights recomputes RawWeight for every edge in c from its
// Contributions map. GraphStore backends call this after LoadContext/LoadAll
// since a persisted RawWeight is only advisory (§4.2).
func (c *Context) RecomputeWeights() {
	for i := range c.Edges {
		c.Edges[i].RecomputeWeight()
	}
}

// Touch updates Metadata.UpdatedAt to the current time.
func (c *Context) Touch() {
	c.Metadata.UpdatedAt = time.Now().UTC()
}

// AddSource appends a source path/URI to Metadata.Sources if not already
// present.
func (c *Context) AddSource(source string) {
	for _, s := range c.Metadata.Sources {
		if s == source {
			return
		}
	}
	c.Metadata.Sources = append(c.Metadata.Sources, source)
	c.Touch()
}

// RemoveSource removes a source path/URI from Metadata.Sources if present.
func (c *Context) RemoveSource(source string) {
	out := c.Metadata.Sources[:0]
	for _, s := range c.Metadata.Sources {
		if s != source {
			out = append(out, s)
		}
	}
	c.Metadata.Sources = out
	c.Touch()
}

// AddTag appends a tag to Metadata.Tags if not already present.
func (c *Context) AddTag(tag string) {
	for _, t := range c.Metadata.Tags {
		if t == tag {
			return
		}
	}
	c.Metadata.Tags = append(c.Metadata.Tags, tag)
	c.Touch()
}

// RemoveTag removes a tag from Metadata.Tags if present.
func (c *Context) RemoveTag(tag string) {
	out := c.Metadata.Tags[:0]
	for _, t := range c.Metadata.Tags {
		if t != tag {
			out = append(out, t)
		}
	}
	c.Metadata.Tags = out
	c.Touch()
}
