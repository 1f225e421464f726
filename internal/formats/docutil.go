package formats

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Helpers for reading loosely-typed pack documents. Numbers may arrive as
// json.Number (JSON) or int/float64 (YAML).

// Str returns the first non-empty string found under keys.
func Str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// List returns the array under key, or nil.
func List(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key].([]any)
	return v, ok
}

// Obj returns the object under key, or nil.
func Obj(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func Bool(m map[string]any, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

// Float converts a document number.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Int converts a document number that must be integral.
func Int(v any) (int, bool) {
	f, ok := Float(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Ints converts an array of integers.
func Ints(v any) ([]int, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(arr))
	for _, e := range arr {
		i, ok := Int(e)
		if !ok {
			return nil, false
		}
		out = append(out, i)
	}
	return out, true
}

// Strings converts an array of scalars to strings.
func Strings(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		switch s := e.(type) {
		case string:
			out = append(out, s)
		case json.Number, float64, int, int64, bool:
			out = append(out, fmt.Sprint(s))
		default:
			return nil, false
		}
	}
	return out, true
}

// Remarshal decodes a document fragment into a typed value.
func Remarshal(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
