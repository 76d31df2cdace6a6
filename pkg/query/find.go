// Package query implements the read-only facade over a graph.Context:
// Find (node search), Traverse (breadth-first neighborhood expansion),
// FindPath (shortest path by hop count), and Evidence. None of these
// mutate the graph — they operate against a single Context snapshot handed
// in by the caller (typically engine.GetContext's result).
//
// Grounded on original_source's src/query/{types,find}.rs: the same
// filter set (node_type, content_type, dimension, property existence,
// property equality) and the same QueryResult/TraversalResult/PathResult
// result shapes, expressed as a functional-options builder in the
// teacher's RelQueryOpt/TraversalOpt idiom rather than Rust's consuming
// builder methods.
package query

import (
	"sort"

	"github.com/antzucaro/matchr"

	"github.com/nrgforge/plexus/pkg/graph"
)

type findOptions struct {
	nodeType       string
	contentType    string
	dimension      graph.Dimension
	hasProperty    string
	propertyEquals *propertyEqual
	fuzzyName      string
	fuzzyThreshold float64
	limit          int
	offset         int
}

type propertyEqual struct {
	key   string
	value any
}

// FindOpt configures a Find call.
type FindOpt func(*findOptions)

// WithNodeType filters to nodes whose NodeType matches exactly.
func WithNodeType(nodeType string) FindOpt {
	return func(o *findOptions) { o.nodeType = nodeType }
}

// WithContentType filters to nodes whose ContentType matches exactly.
func WithContentType(contentType string) FindOpt {
	return func(o *findOptions) { o.contentType = contentType }
}

// WithDimension filters to nodes in the given Dimension.
func WithDimension(dimension graph.Dimension) FindOpt {
	return func(o *findOptions) { o.dimension = dimension }
}

// WithProperty filters to nodes that have key present in Properties,
// regardless of value.
func WithProperty(key string) FindOpt {
	return func(o *findOptions) { o.hasProperty = key }
}

// WithPropertyValue filters to nodes whose Properties[key] equals value.
func WithPropertyValue(key string, value any) FindOpt {
	return func(o *findOptions) { o.propertyEquals = &propertyEqual{key: key, value: value} }
}

// WithFuzzyName ranks nodes by Jaro-Winkler similarity between name and
// their "name" property (if present as a string), keeping only matches at
// or above threshold. Results are sorted by descending similarity;
// ResultNode carries the score. Supplements the original's exact-match
// design with a ranked-fuzzy mode (see SPEC_FULL.md's domain stack note).
func WithFuzzyName(name string, threshold float64) FindOpt {
	return func(o *findOptions) { o.fuzzyName = name; o.fuzzyThreshold = threshold }
}

// WithLimit caps the number of returned nodes.
func WithLimit(limit int) FindOpt {
	return func(o *findOptions) { o.limit = limit }
}

// WithOffset skips the first n matching nodes (applied before limit).
func WithOffset(offset int) FindOpt {
	return func(o *findOptions) { o.offset = offset }
}

// ResultNode pairs a matched Node with its fuzzy-match score, when
// WithFuzzyName was used (zero otherwise).
type ResultNode struct {
	graph.Node
	Score float64
}

// QueryResult is the outcome of Find: the nodes matching after
// offset/limit are applied, and TotalCount — the count before pagination.
type QueryResult struct {
	Nodes      []ResultNode
	TotalCount int
}

// Find executes a node search against snapshot using the given FindOpts.
// A FindQuery with no options matches every node in the context.
func Find(snapshot graph.Context, opts ...FindOpt) QueryResult {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}

	var matched []ResultNode
	for _, n := range snapshot.Nodes {
		if !matchesFilters(n, o) {
			continue
		}
		score := 0.0
		if o.fuzzyName != "" {
			name, _ := n.Properties["name"].(string)
			if name == "" {
				continue
			}
			score = matchr.JaroWinkler(o.fuzzyName, name)
			if score < o.fuzzyThreshold {
				continue
			}
		}
		matched = append(matched, ResultNode{Node: n, Score: score})
	}

	if o.fuzzyName != "" {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Score > matched[j].Score })
	}

	total := len(matched)

	if o.offset > 0 {
		if o.offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[o.offset:]
		}
	}
	if o.limit > 0 && len(matched) > o.limit {
		matched = matched[:o.limit]
	}

	return QueryResult{Nodes: matched, TotalCount: total}
}

func matchesFilters(n graph.Node, o findOptions) bool {
	if o.nodeType != "" && n.NodeType != o.nodeType {
		return false
	}
	if o.contentType != "" && n.ContentType != o.contentType {
		return false
	}
	if o.dimension != "" && n.Dimension != o.dimension {
		return false
	}
	if o.hasProperty != "" {
		if _, ok := n.Properties[o.hasProperty]; !ok {
			return false
		}
	}
	if o.propertyEquals != nil {
		v, ok := n.Properties[o.propertyEquals.key]
		if !ok || v != o.propertyEquals.value {
			return false
		}
	}
	return true
}
