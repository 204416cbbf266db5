// Copyright 2025 Certen Protocol
//
// Transform op variants. Per spec.md §9's re-architecture note, the
// source's untyped `{type: <string>, ...}` op bag becomes a tagged
// value: a single Op struct tagged by Name, whose typed parameter
// fields are meaningful only for that operator. Unknown op names fail
// to parse, so ParseProcessor rejects the document before the
// validator runs.
package claimtypes

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/certen/claim-processor/pkg/condition"
	"github.com/certen/claim-processor/pkg/scalar"
)

// OpName is the registry key for an operator.
type OpName string

const (
	OpToLowerCase    OpName = "toLowerCase"
	OpToUpperCase    OpName = "toUpperCase"
	OpTrim           OpName = "trim"
	OpSubstring      OpName = "substring"
	OpReplace        OpName = "replace"
	OpMath           OpName = "math"
	OpKeccak256      OpName = "keccak256"
	OpSha256         OpName = "sha256"
	OpParseTimestamp OpName = "parseTimestamp"
	OpAssertEquals   OpName = "assertEquals"
	OpAssertOneOf    OpName = "assertOneOf"
	OpValidate       OpName = "validate"
	OpConcat         OpName = "concat"
	OpTemplate       OpName = "template"
	OpConstant       OpName = "constant"
	OpConditionalOn  OpName = "conditionalOn"
)

// KnownOpNames is the closed catalogue recognised by the parser and,
// transitively, by the registry (C1) and validator (C3). Any op name
// outside this set is a parse-time ProcessorInvalid.
var KnownOpNames = map[OpName]bool{
	OpToLowerCase: true, OpToUpperCase: true, OpTrim: true,
	OpSubstring: true, OpReplace: true, OpMath: true,
	OpKeccak256: true, OpSha256: true, OpParseTimestamp: true,
	OpAssertEquals: true, OpAssertOneOf: true, OpValidate: true,
	OpConcat: true, OpTemplate: true, OpConstant: true, OpConditionalOn: true,
}

// Op is one step of a transform rule's pipeline. Exactly one op name is
// set; its parameter fields are meaningful only for that op.
type Op struct {
	Name OpName

	// substring
	Start int
	End   *int

	// replace
	Pattern     string
	Replacement string
	Global      bool

	// math
	Expression string

	// parseTimestamp
	Format string

	// assertEquals / assertOneOf
	Expected scalar.Scalar
	Values   []scalar.Scalar
	HasValues bool
	Message  string

	// validate
	Condition condition.Expr

	// template
	TemplatePattern string

	// constant
	Value    scalar.Scalar
	HasValue bool

	// conditionalOn
	CheckField string
	If         condition.Expr
	Then       []Op
	Else       []Op
}

// UnmarshalJSON accepts either a bare operator-name string (no
// parameters) or an object {"type": <name>, ...params}.
func (o *Op) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		name := OpName(bare)
		if !KnownOpNames[name] {
			return fmt.Errorf("op: unknown operator %q", bare)
		}
		*o = Op{Name: name}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("op: not a string or object: %w", err)
	}
	typeRaw, ok := raw["type"]
	if !ok {
		return fmt.Errorf("op: object form missing \"type\"")
	}
	var name string
	if err := json.Unmarshal(typeRaw, &name); err != nil {
		return fmt.Errorf("op.type: %w", err)
	}
	opName := OpName(name)
	if !KnownOpNames[opName] {
		return fmt.Errorf("op: unknown operator %q", name)
	}

	result := Op{Name: opName}

	unmarshalField := func(key string, dst interface{}) error {
		rm, ok := raw[key]
		if !ok {
			return nil
		}
		return json.Unmarshal(rm, dst)
	}

	switch opName {
	case OpSubstring:
		if err := unmarshalField("start", &result.Start); err != nil {
			return fmt.Errorf("substring.start: %w", err)
		}
		if rm, ok := raw["end"]; ok {
			var end int
			if err := json.Unmarshal(rm, &end); err != nil {
				return fmt.Errorf("substring.end: %w", err)
			}
			result.End = &end
		}
	case OpReplace:
		if err := unmarshalField("pattern", &result.Pattern); err != nil {
			return fmt.Errorf("replace.pattern: %w", err)
		}
		if err := unmarshalField("replacement", &result.Replacement); err != nil {
			return fmt.Errorf("replace.replacement: %w", err)
		}
		if err := unmarshalField("global", &result.Global); err != nil {
			return fmt.Errorf("replace.global: %w", err)
		}
	case OpMath:
		if err := unmarshalField("expression", &result.Expression); err != nil {
			return fmt.Errorf("math.expression: %w", err)
		}
	case OpParseTimestamp:
		if err := unmarshalField("format", &result.Format); err != nil {
			return fmt.Errorf("parseTimestamp.format: %w", err)
		}
	case OpAssertEquals:
		if rm, ok := raw["expected"]; ok {
			var v interface{}
			if err := json.Unmarshal(rm, &v); err != nil {
				return fmt.Errorf("assertEquals.expected: %w", err)
			}
			result.Expected = scalar.FromJSON(v)
		}
		if err := unmarshalField("message", &result.Message); err != nil {
			return fmt.Errorf("assertEquals.message: %w", err)
		}
	case OpAssertOneOf:
		if rm, ok := raw["values"]; ok {
			var vs []interface{}
			if err := json.Unmarshal(rm, &vs); err != nil {
				return fmt.Errorf("assertOneOf.values: %w", err)
			}
			result.Values = make([]scalar.Scalar, len(vs))
			for i, v := range vs {
				result.Values[i] = scalar.FromJSON(v)
			}
			result.HasValues = true
		}
		if err := unmarshalField("message", &result.Message); err != nil {
			return fmt.Errorf("assertOneOf.message: %w", err)
		}
	case OpValidate:
		if rm, ok := raw["condition"]; ok {
			if err := json.Unmarshal(rm, &result.Condition); err != nil {
				return fmt.Errorf("validate.condition: %w", err)
			}
		}
		if err := unmarshalField("message", &result.Message); err != nil {
			return fmt.Errorf("validate.message: %w", err)
		}
	case OpTemplate:
		if err := unmarshalField("pattern", &result.TemplatePattern); err != nil {
			return fmt.Errorf("template.pattern: %w", err)
		}
	case OpConstant:
		if rm, ok := raw["value"]; ok {
			var v interface{}
			dec := json.NewDecoder(bytes.NewReader(rm))
			dec.UseNumber()
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("constant.value: %w", err)
			}
			result.Value = scalar.FromJSON(v)
			result.HasValue = true
		}
	case OpConditionalOn:
		if err := unmarshalField("checkField", &result.CheckField); err != nil {
			return fmt.Errorf("conditionalOn.checkField: %w", err)
		}
		if rm, ok := raw["if"]; ok {
			if err := json.Unmarshal(rm, &result.If); err != nil {
				return fmt.Errorf("conditionalOn.if: %w", err)
			}
		}
		if rm, ok := raw["then"]; ok {
			if err := json.Unmarshal(rm, &result.Then); err != nil {
				return fmt.Errorf("conditionalOn.then: %w", err)
			}
		}
		if rm, ok := raw["else"]; ok {
			if err := json.Unmarshal(rm, &result.Else); err != nil {
				return fmt.Errorf("conditionalOn.else: %w", err)
			}
		}
	}

	*o = result
	return nil
}
