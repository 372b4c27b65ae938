// Package normalize reduces loosely shaped backend payloads into the
// canonical report models. Every function here is total: malformed input
// produces an empty result, never an error.
package normalize

import "github.com/tidwall/gjson"

// Shape reports how a response envelope matched the expected layouts.
type Shape int

const (
	// ShapeAbsent means the response body was empty.
	ShapeAbsent Shape = iota
	// ShapeMatched means one of the candidate layouts matched.
	ShapeMatched
	// ShapeMismatch means a body was present but no candidate layout matched.
	ShapeMismatch
)

func (s Shape) String() string {
	switch s {
	case ShapeMatched:
		return "matched"
	case ShapeMismatch:
		return "mismatch"
	}
	return "absent"
}

// Parse parses a response body. Invalid JSON yields a Result that does not exist.
func Parse(body []byte) gjson.Result {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(body)
}

// ExtractList tries each key path against root in order and returns the first
// array found. The empty path denotes root itself.
func ExtractList(root gjson.Result, paths ...string) []gjson.Result {
	list, _ := extract(root, paths...)
	return list
}

func extract(root gjson.Result, paths ...string) ([]gjson.Result, bool) {
	if !root.Exists() {
		return nil, false
	}
	for _, p := range paths {
		v := root
		if p != "" {
			v = root.Get(p)
		}
		if v.IsArray() {
			return v.Array(), true
		}
	}
	return nil, false
}

// Unwrap returns root[key] when it holds a present value, else root itself.
func Unwrap(root gjson.Result, key string) gjson.Result {
	if v := root.Get(key); truthy(v) {
		return v
	}
	return root
}

func shapeOf(body []byte, matched bool) Shape {
	switch {
	case matched:
		return ShapeMatched
	case len(body) == 0:
		return ShapeAbsent
	}
	return ShapeMismatch
}
