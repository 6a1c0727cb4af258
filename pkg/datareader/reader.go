// Package datareader reads fields out of loosely typed decoded JSON maps
// without panicking. Getters return a default when a key is missing or holds a
// value of an incompatible type.
package datareader

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// Reader wraps a decoded JSON object.
type Reader map[string]interface{}

// New returns a Reader for v when v is a JSON object, nil otherwise.
func New(v interface{}) Reader {
	m, ok := AsMap(v)
	if !ok {
		return nil
	}
	return Reader(m)
}

// AsMap converts a decoded JSON object of either map flavour.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Reader:
		return map[string]interface{}(m), true
	case map[interface{}]interface{}:
		out, err := cast.ToStringMapE(m)
		return out, err == nil
	default:
		return nil, false
	}
}

func (r Reader) Has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r[key]
	return ok
}

func (r Reader) Raw(key string) interface{} {
	if r == nil {
		return nil
	}
	return r[key]
}

// String returns the value under key when it is a string. Numbers and
// booleans are not coerced.
func (r Reader) String(key, def string) string {
	if s, ok := r.Raw(key).(string); ok {
		return s
	}
	return def
}

func (r Reader) Int64(key string, def int64) int64 {
	v := r.Raw(key)
	if v == nil {
		return def
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return def
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return def
	}
	return n
}

func (r Reader) Bool(key string, def bool) bool {
	v := r.Raw(key)
	if v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

func (r Reader) Map(key string) map[string]interface{} {
	m, ok := AsMap(r.Raw(key))
	if !ok {
		return nil
	}
	return m
}

func (r Reader) Reader(key string) Reader {
	return New(r.Raw(key))
}

func (r Reader) Slice(key string) []interface{} {
	s, ok := r.Raw(key).([]interface{})
	if !ok {
		return nil
	}
	return s
}

// Strings returns the string elements of a list, skipping anything else.
func (r Reader) Strings(key string) []string {
	items := r.Slice(key)
	if items == nil {
		if typed, ok := r.Raw(key).([]string); ok {
			return append([]string(nil), typed...)
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Maps returns the object elements of a list, skipping anything else.
func (r Reader) Maps(key string) []map[string]interface{} {
	items := r.Slice(key)
	if items == nil {
		if typed, ok := r.Raw(key).([]map[string]interface{}); ok {
			return typed
		}
		return nil
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := AsMap(item); ok {
			out = append(out, m)
		}
	}
	return out
}

// Path walks nested objects, e.g. Path("activity", "id").
func (r Reader) Path(keys ...string) interface{} {
	var cur interface{} = map[string]interface{}(r)
	for _, key := range keys {
		m, ok := AsMap(cur)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func (r Reader) PathString(def string, keys ...string) string {
	if s, ok := r.Path(keys...).(string); ok {
		return s
	}
	return def
}

// DeepCopy returns a copy of a decoded JSON value that shares no maps or
// slices with the input.
func DeepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return v
	}
}

// CopyMap is DeepCopy for objects; nil stays nil.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return DeepCopy(m).(map[string]interface{})
}

// Normalize round-trips v through JSON so typed structs and numeric types
// become the generic shapes produced by encoding/json.
func Normalize(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
