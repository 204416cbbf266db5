// Copyright 2025 Certen Protocol
//
// Package canonical implements C7: a deterministic JSON serialization
// used to hash a processor document (spec.md §4.5) so that two byte-
// identical-in-meaning documents (different key order, different
// whitespace) hash identically. Grounded on the teacher's
// canonicalJSONMarshal/marshalCanonical (pkg/execution/external_chain_
// result.go): sorted object keys, no insignificant whitespace,
// recursive descent. Adapted to decode with json.Number so integers
// beyond float64's 53-bit mantissa survive the round trip, which the
// teacher's naive float64 re-marshal does not guarantee.
package canonical

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Marshal produces the canonical encoding of the JSON document in data.
// data must be valid JSON; non-object/array/scalar shapes are rejected
// at the decode step the same way json.Unmarshal would reject them.
func Marshal(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return marshalValue(v), nil
}

// MarshalValue canonicalizes an already-decoded Go value (as produced
// by a json.Decoder with UseNumber, or by scalar.Scalar.ToInterface).
func MarshalValue(v interface{}) []byte {
	return marshalValue(v)
}

func marshalValue(v interface{}) []byte {
	switch val := v.(type) {
	case nil:
		return []byte("null")
	case bool:
		if val {
			return []byte("true")
		}
		return []byte("false")
	case json.Number:
		return []byte(val.String())
	case float64:
		b, _ := json.Marshal(val)
		return b
	case string:
		b, _ := json.Marshal(val)
		return b
	case map[string]interface{}:
		return marshalObject(val)
	case []interface{}:
		return marshalArray(val)
	default:
		b, _ := json.Marshal(val)
		return b
	}
}

func marshalObject(obj map[string]interface{}) []byte {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, _ := json.Marshal(k)
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(marshalValue(obj[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func marshalArray(arr []interface{}) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(marshalValue(item))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
