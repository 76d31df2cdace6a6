package graph

// Properties is a node or edge's free-form attribute map. Keys are
// caller-defined; values must satisfy IsValidPropertyValue.
//
// Following the teacher's map[string]any convention for Entity.Attributes,
// Plexus does not introduce a closed sum-type wrapper around property
// values — the dynamic type switch in IsValidPropertyValue enforces the
// same closed set (string/int/float/bool/array/object) that a sum type
// would, without the ceremony of wrapper constructors at every call site.
type Properties map[string]any

// Clone returns a shallow copy of p. Nested arrays/objects are not
// deep-copied; callers that mutate nested structures after cloning are
// responsible for their own isolation.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new Properties map containing p's entries overlaid with
// patch's entries (patch wins on key collision). Used for field-level
// property updates (PropertyUpdate).
func (p Properties) Merge(patch Properties) Properties {
	out := p.Clone()
	if out == nil {
		out = make(Properties, len(patch))
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// IsValidPropertyValue reports whether v is one of the primitive scalar,
// array, or nested-object shapes the graph model allows: string, int
// (any width), float32/float64, bool, []any, or map[string]any. Nested
// arrays/objects are validated recursively.
func IsValidPropertyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string, bool:
		return true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32, float64:
		return true
	case []any:
		for _, item := range val {
			if !IsValidPropertyValue(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range val {
			if !IsValidPropertyValue(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
