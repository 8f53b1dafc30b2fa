package docstore

import (
	"encoding/json"
	"math"
	"time"
)

// Field readers tolerate the shapes a value takes after a JSON round trip
// (numbers as float64, timestamps as RFC 3339 strings) as well as native Go
// values written by the in-memory store. They report false on a missing or
// wrong-typed field.

// String reads a string field
func String(data map[string]any, key string) (string, bool) {
	v, ok := data[key].(string)
	return v, ok
}

// Float reads a numeric field
func Float(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Int reads an integral numeric field. Fractional values are rejected.
func Int(data map[string]any, key string) (int, bool) {
	f, ok := Float(data, key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Time reads a timestamp field
func Time(data map[string]any, key string) (time.Time, bool) {
	switch v := data[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

// Strings reads a list-of-strings field. Non-string elements are skipped.
func Strings(data map[string]any, key string) ([]string, bool) {
	switch v := data[key].(type) {
	case []string:
		return append([]string{}, v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// StringOr reads a string field with a default
func StringOr(data map[string]any, key, def string) string {
	if v, ok := String(data, key); ok {
		return v
	}
	return def
}

// FloatOr reads a numeric field with a default
func FloatOr(data map[string]any, key string, def float64) float64 {
	if v, ok := Float(data, key); ok {
		return v
	}
	return def
}

// IntOr reads an integral field with a default
func IntOr(data map[string]any, key string, def int) int {
	if v, ok := Int(data, key); ok {
		return v
	}
	return def
}

// StringsOr reads a list-of-strings field, defaulting to an empty list
func StringsOr(data map[string]any, key string) []string {
	if v, ok := Strings(data, key); ok {
		return v
	}
	return []string{}
}
