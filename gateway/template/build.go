package template

import (
	"sort"
	"strings"
)

// Visitor rewrites string leaves of a tree. Keys are never rewritten.
type Visitor func(s string) string

// Walk returns a copy of v with visit applied to every string leaf.
// Non-string leaves pass through unchanged and v itself is not modified.
func Walk(v Value, visit Visitor) Value {
	switch v.kind {
	case KindString:
		return String(visit(v.s))
	case KindArray:
		arr := make([]Value, len(v.arr))
		for i, item := range v.arr {
			arr[i] = Walk(item, visit)
		}
		return Value{kind: KindArray, arr: arr}
	case KindObject:
		obj := make(map[string]Value, len(v.obj))
		for k, item := range v.obj {
			obj[k] = Walk(item, visit)
		}
		return Value{kind: KindObject, obj: obj}
	default:
		return v
	}
}

// Placeholder formats key as a template token, e.g. "{{prompt}}".
func Placeholder(key string) string {
	return "{{" + key + "}}"
}

// Build substitutes every {{key}} occurrence for each key in values.
// Unmatched placeholders are left verbatim. Substitution is single-pass,
// so a value that itself contains a placeholder is not expanded again.
func Build(tpl Value, values map[string]string) Value {
	if len(values) == 0 {
		return Walk(tpl, func(s string) string { return s })
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, Placeholder(k), values[k])
	}
	r := strings.NewReplacer(pairs...)

	return Walk(tpl, func(s string) string {
		if !strings.Contains(s, "{{") {
			return s
		}
		return r.Replace(s)
	})
}

// IsPlaceholder reports whether s is exactly one unresolved {{token}}.
func IsPlaceholder(s string) bool {
	if len(s) < 5 || !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return false
	}
	inner := s[2 : len(s)-2]
	return !strings.ContainsAny(inner, "{}")
}

// =============================================================================
// 📍 路径操作
// =============================================================================

// Step addresses one level of a tree: an object key or an array index.
type Step struct {
	key     string
	index   int
	isIndex bool
}

// Key addresses an object field.
func Key(k string) Step { return Step{key: k} }

// Index addresses an array element.
func Index(i int) Step { return Step{index: i, isIndex: true} }

// Lookup follows path from v.
func (v Value) Lookup(path ...Step) (Value, bool) {
	cur := v
	for _, st := range path {
		var ok bool
		if st.isIndex {
			cur, ok = cur.Index(st.index)
		} else {
			cur, ok = cur.Field(st.key)
		}
		if !ok {
			return Value{}, false
		}
	}
	return cur, true
}

// Set returns a copy of v with the node at path replaced by nv.
// Every intermediate node must already exist; ok is false otherwise and v is
// returned unchanged. Only the nodes along path are copied.
func (v Value) Set(nv Value, path ...Step) (Value, bool) {
	if len(path) == 0 {
		return nv, true
	}
	st, rest := path[0], path[1:]

	if st.isIndex {
		child, ok := v.Index(st.index)
		if !ok {
			return v, false
		}
		updated, ok := child.Set(nv, rest...)
		if !ok {
			return v, false
		}
		arr := make([]Value, len(v.arr))
		copy(arr, v.arr)
		arr[st.index] = updated
		return Value{kind: KindArray, arr: arr}, true
	}

	child, ok := v.Field(st.key)
	if !ok {
		return v, false
	}
	updated, ok := child.Set(nv, rest...)
	if !ok {
		return v, false
	}
	obj := make(map[string]Value, len(v.obj))
	for k, f := range v.obj {
		obj[k] = f
	}
	obj[st.key] = updated
	return Value{kind: KindObject, obj: obj}, true
}
