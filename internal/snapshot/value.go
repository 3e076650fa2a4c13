// Package snapshot defines the instance snapshot data model: the value
// types, metadata, and InstanceSnapshot shape produced by the middleware
// pipeline before it is diffed against the live tree.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind discriminates the resolved property value union.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindBool
	KindNumber
	KindArray
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a resolved, typed property value. Unlike the raw JSON a
// middleware reads off disk, a Value has already been through the property
// resolver and is safe to compare/serialize without further interpretation.
type Value struct {
	Kind ValueKind
	Str  string
	B    bool
	Num  float64
	Arr  []Value
}

func Null() Value           { return Value{Kind: KindNull} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Bool(b bool) Value     { return Value{Kind: KindBool, B: b} }
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func Array(vs []Value) Value { return Value{Kind: KindArray, Arr: vs} }

// Equal reports deep equality between two values.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == other.Str
	case KindBool:
		return v.B == other.B
	case KindNumber:
		return v.Num == other.Num
	case KindArray:
		if len(v.Arr) != len(other.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(other.Arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON emits Value in the shape the HTTP façade exposes to clients:
// the bare underlying JSON value, not a tagged union.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.B)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindArray:
		return json.Marshal(v.Arr)
	default:
		return nil, fmt.Errorf("snapshot: cannot marshal value of kind %s", v.Kind)
	}
}

// UnmarshalJSON reconstructs a Value from its bare JSON representation. The
// web façade relies on it to decode property values in POST /api/write
// bodies; *.model.json files are decoded through FromRaw instead.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromRaw(raw)
	return nil
}

// FromRaw resolves an untyped decoded-JSON value (string, float64, bool,
// []interface{}, nil, or map[string]interface{}) into a Value. This is the
// generic fallback property resolver: it does not consult a Roblox
// class/property reflection schema (none is available), so it maps JSON
// shapes directly onto the closest Value kind.
func FromRaw(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case []interface{}:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = FromRaw(e)
		}
		return Array(vs)
	case map[string]interface{}:
		// Structured values (e.g. Vector3/Color3 tables) are preserved as an
		// array of their sorted key/value pairs so round-tripping through
		// the façade doesn't lose information even without a reflection
		// schema to interpret them.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vs := make([]Value, 0, len(keys)*2)
		for _, k := range keys {
			vs = append(vs, String(k), FromRaw(t[k]))
		}
		return Array(vs)
	default:
		return Null()
	}
}
