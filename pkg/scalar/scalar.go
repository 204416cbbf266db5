// Copyright 2025 Certen Protocol
//
// Package scalar defines the dynamic value type that flows through the
// claim processor VM: every JSONPath extraction, every transform op, and
// every output value is a Scalar. The type is a closed sum so the
// registry and executor can exhaustively switch over it instead of
// juggling bare interface{} values.
package scalar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind tags the variant of a Scalar that is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindSeq
	KindMap
)

// Scalar is the dynamic value that extract/transform/output stages pass
// around. Exactly one field is meaningful, selected by Kind.
type Scalar struct {
	Kind Kind

	Bool   bool
	Int    int64
	Float  float64
	String string
	Bytes  []byte
	Seq    []Scalar
	Map    []MapEntry // ordered, to keep canonical-JSON round trips stable
}

// MapEntry is one key/value pair of a Scalar map. FromJSON builds the
// entries in sorted key order.
type MapEntry struct {
	Key   string
	Value Scalar
}

func Null() Scalar                { return Scalar{Kind: KindNull} }
func FromBool(b bool) Scalar      { return Scalar{Kind: KindBool, Bool: b} }
func FromInt(i int64) Scalar      { return Scalar{Kind: KindInt, Int: i} }
func FromFloat(f float64) Scalar  { return Scalar{Kind: KindFloat, Float: f} }
func FromString(s string) Scalar  { return Scalar{Kind: KindString, String: s} }
func FromBytes(b []byte) Scalar   { return Scalar{Kind: KindBytes, Bytes: b} }
func FromSeq(s []Scalar) Scalar   { return Scalar{Kind: KindSeq, Seq: s} }

// IsNull reports whether the value is the null variant. Absent values
// (a missing map key) are represented the same way by convention at the
// call sites that look values up — see executor.lookup.
func (s Scalar) IsNull() bool { return s.Kind == KindNull }

// FromJSON converts a decoded JSON value (as produced by
// encoding/json.Unmarshal into interface{}, or by json.Decoder with
// UseNumber) into a Scalar. Object keys are emitted in sorted order,
// since a map[string]interface{} has no recoverable source order.
func FromJSON(v interface{}) Scalar {
	switch val := v.(type) {
	case nil:
		return Null()
	case bool:
		return FromBool(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return FromInt(i)
		}
		f, _ := val.Float64()
		return FromFloat(f)
	case float64:
		return FromFloat(val)
	case string:
		return FromString(val)
	case []byte:
		return FromBytes(val)
	case []interface{}:
		seq := make([]Scalar, len(val))
		for i, e := range val {
			seq[i] = FromJSON(e)
		}
		return FromSeq(seq)
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]MapEntry, 0, len(val))
		for _, k := range keys {
			entries = append(entries, MapEntry{Key: k, Value: FromJSON(val[k])})
		}
		return Scalar{Kind: KindMap, Map: entries}
	default:
		// Stringer-ish fallback for anything decode produced that isn't
		// one of the above (shouldn't happen from encoding/json).
		return FromString(fmt.Sprintf("%v", val))
	}
}

// Get looks up a key in a map Scalar. ok is false if the Scalar is not a
// map or the key is absent.
func (s Scalar) Get(key string) (Scalar, bool) {
	if s.Kind != KindMap {
		return Null(), false
	}
	for _, e := range s.Map {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Null(), false
}

// ToInterface converts back to a plain Go value, suitable for
// json.Marshal or for feeding to the canonical serializer.
func (s Scalar) ToInterface() interface{} {
	switch s.Kind {
	case KindNull:
		return nil
	case KindBool:
		return s.Bool
	case KindInt:
		return s.Int
	case KindFloat:
		return s.Float
	case KindString:
		return s.String
	case KindBytes:
		return "0x" + hexEncode(s.Bytes)
	case KindSeq:
		out := make([]interface{}, len(s.Seq))
		for i, e := range s.Seq {
			out[i] = e.ToInterface()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(s.Map))
		for _, e := range s.Map {
			out[e.Key] = e.Value.ToInterface()
		}
		return out
	default:
		return nil
	}
}

// SafeToString implements spec.md §4.1's SafeToString(v): empty for
// null, JSON-serialized for objects/arrays, and the value's natural
// decimal/boolean/string form otherwise.
func SafeToString(s Scalar) string {
	switch s.Kind {
	case KindNull:
		return ""
	case KindBool:
		if s.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(s.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(s.Float, 'f', -1, 64)
	case KindString:
		return s.String
	case KindBytes:
		return "0x" + hexEncode(s.Bytes)
	case KindSeq, KindMap:
		b, err := json.Marshal(s.ToInterface())
		if err != nil {
			return "[object]"
		}
		return string(b)
	default:
		return ""
	}
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0f]
	}
	return string(out)
}

// Number coerces the scalar to a float64 for arithmetic/comparison ops.
// Mirrors the "numeric comparators coerce the subject value to a
// number" rule in spec.md §3/§4.2.
func (s Scalar) Number() (float64, bool) {
	switch s.Kind {
	case KindInt:
		return float64(s.Int), true
	case KindFloat:
		return s.Float, true
	case KindBool:
		if s.Bool {
			return 1, true
		}
		return 0, true
	case KindString:
		f, err := strconv.ParseFloat(s.String, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Equal implements the strict-equality rule used by the `eq`/`ne`
// condition ops: same kind family and same scalar value. Int and Float
// compare by numeric value so that `1` and `1.0` are considered equal,
// matching typical JSON round-tripping.
func Equal(a, b Scalar) bool {
	an, aIsNum := a.Number()
	bn, bIsNum := b.Number()
	if (a.Kind == KindInt || a.Kind == KindFloat) && (b.Kind == KindInt || b.Kind == KindFloat) {
		return aIsNum && bIsNum && an == bn
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindString:
		return a.String == b.String
	case KindBytes:
		return string(a.Bytes) == string(b.Bytes)
	default:
		return SafeToString(a) == SafeToString(b)
	}
}
