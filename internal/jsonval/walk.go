package jsonval

// Visitor is called for every node of a document in depth-first order. key is
// the object key the node sits under, or "" for the root and array elements.
// Returning false skips the node's children.
type Visitor func(key string, v *Value) bool

// Walk visits v and its descendants depth-first, objects in member order.
func Walk(v *Value, visit Visitor) {
	walk("", v, visit)
}

func walk(key string, v *Value, visit Visitor) {
	if !visit(key, v) {
		return
	}
	switch v.Kind() {
	case Array:
		for _, item := range v.items {
			walk("", item, visit)
		}
	case Object:
		for _, m := range v.members {
			walk(m.Key, m.Value, visit)
		}
	}
}

// Strings collects every string value under v, depth-first, skipping the
// subtrees of any object key listed in skip.
func Strings(v *Value, skip ...string) []string {
	var out []string
	Walk(v, func(key string, n *Value) bool {
		for _, s := range skip {
			if key == s {
				return false
			}
		}
		if s, ok := n.Str(); ok {
			out = append(out, s)
		}
		return true
	})
	return out
}
