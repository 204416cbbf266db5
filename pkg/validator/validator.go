// Copyright 2025 Certen Protocol
//
// Package validator implements C3: static well-formedness and name-
// resolution checks on a processor document, run before any execution
// (spec.md §4.3). Validation must be strict enough that a validated
// processor can only fail at runtime on input-value shape issues, not
// on structural problems the validator should have already caught.
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/certen/claim-processor/pkg/claimtypes"
)

// Error names one structural problem found in a processor document.
type Error struct {
	Path    string
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("%s: %s", e.Path, e.Message) }

// Result is the {valid, errors} shape spec.md §4.3 names.
type Result struct {
	Valid  bool
	Errors []Error
}

// Validate runs every check from spec.md §4.3 against p and returns
// every violation found — it does not stop at the first error, so
// callers get a complete diagnostic rather than one error at a time.
func Validate(p *claimtypes.Processor) Result {
	var errs []Error
	add := func(path, format string, args ...interface{}) {
		errs = append(errs, Error{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if p.IsLegacyOutputShape() {
		add("output", "legacy `output` list shape is rejected; use `outputs: [{name,type}]`")
	}

	if len(p.Extract) == 0 {
		add("extract", "extract must be a non-empty object")
	}

	// scope accumulates names in declaration order: all of extract
	// (order-irrelevant per spec.md §3), then transform entries as
	// they are visited, since transform declaration order is
	// authoritative for what a later rule may reference (I2).
	scope := make(map[string]bool, len(p.Extract)+len(p.Transform))
	for _, e := range p.Extract {
		path := "extract." + e.Name
		if !claimtypes.ValidIdentifier(e.Name) {
			add(path, "invalid variable name %q", e.Name)
		}
		if e.JSONPath == "" {
			add(path, "jsonpath must be non-empty")
		}
		scope[e.Name] = true
	}

	for _, t := range p.Transform {
		path := "transform." + t.Name
		if !claimtypes.ValidIdentifier(t.Name) {
			add(path, "invalid variable name %q", t.Name)
		}

		switch {
		case t.Rule.HasInput && t.Rule.HasInputs:
			add(path, "a transform rule must not declare both input and inputs")
		case t.Rule.HasInput:
			if !scope[t.Rule.Input] {
				add(path, "input %q is not in scope at this point", t.Rule.Input)
			}
		case t.Rule.HasInputs:
			for _, n := range t.Rule.Inputs {
				if !scope[n] {
					add(path, "input %q is not in scope at this point", n)
				}
			}
		default:
			if len(t.Rule.Ops) == 0 || t.Rule.Ops[0].Name != claimtypes.OpConstant {
				add(path, "a source-less transform rule's first op must be constant")
			}
		}

		validateOps(path, t.Rule.Ops, scope, &errs, 0)
		scope[t.Name] = true
	}

	if len(p.Outputs) == 0 {
		add("outputs", "outputs must be a non-empty array")
	}
	seen := make(map[string]bool, len(p.Outputs))
	for i, o := range p.Outputs {
		path := fmt.Sprintf("outputs[%d]", i)
		if o.Name == "" {
			add(path, "name is required")
		} else {
			if !scope[o.Name] {
				add(path, "name %q does not resolve to an extracted or transformed variable", o.Name)
			}
			if seen[o.Name] {
				add(path, "duplicate output name %q", o.Name)
			}
			seen[o.Name] = true
		}
		if o.Type == "" {
			add(path, "type is required")
		} else if !IsValidEVMType(o.Type) {
			add(path, "unrecognised ABI type %q", o.Type)
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// validateOps checks op-level parameter presence (spec.md §4.3 item
// 6) and statically enforces I6: no conditionalOn may appear inside
// another conditionalOn's then/else. A nested conditionalOn is flagged
// by the enclosing op's then/else scan and again by the depth check
// when the recursion reaches it at depth > 0.
func validateOps(path string, ops []claimtypes.Op, scope map[string]bool, errs *[]Error, depth int) {
	add := func(i int, format string, args ...interface{}) {
		*errs = append(*errs, Error{Path: fmt.Sprintf("%s.ops[%d]", path, i), Message: fmt.Sprintf(format, args...)})
	}

	for i, op := range ops {
		switch op.Name {
		case claimtypes.OpSubstring:
			if op.Start < 0 {
				add(i, "start must be non-negative")
			}
		case claimtypes.OpReplace:
			if op.Pattern == "" {
				add(i, "pattern must be non-empty")
			}
		case claimtypes.OpMath:
			if op.Expression == "" {
				add(i, "expression is required")
			}
		case claimtypes.OpTemplate:
			if op.TemplatePattern == "" {
				add(i, "pattern is required")
			}
		case claimtypes.OpAssertOneOf:
			if !op.HasValues {
				add(i, "values is required")
			}
		case claimtypes.OpConstant:
			if !op.HasValue {
				add(i, "value is required")
			}
		case claimtypes.OpConditionalOn:
			if depth > 0 {
				add(i, "conditionalOn must not nest inside another conditionalOn (I6)")
			}
			if op.CheckField == "" {
				add(i, "checkField is required")
			} else if !scope[op.CheckField] {
				add(i, "checkField %q does not resolve to a known name", op.CheckField)
			}
			if op.Then == nil {
				add(i, "then must be present")
			}
			for _, inner := range op.Then {
				if inner.Name == claimtypes.OpConditionalOn {
					add(i, "then must not contain a nested conditionalOn (I6)")
				}
			}
			for _, inner := range op.Else {
				if inner.Name == claimtypes.OpConditionalOn {
					add(i, "else must not contain a nested conditionalOn (I6)")
				}
			}
			validateOps(fmt.Sprintf("%s.ops[%d].then", path, i), op.Then, scope, errs, depth+1)
			validateOps(fmt.Sprintf("%s.ops[%d].else", path, i), op.Else, scope, errs, depth+1)
		}
	}
}

var (
	bytesNRe = regexp.MustCompile(`^bytes([1-9]|[12][0-9]|3[0-2])$`)
	uintRe   = regexp.MustCompile(`^uint(\d+)$`)
	intRe    = regexp.MustCompile(`^int(\d+)$`)
)

// IsValidEVMType reports whether t is one of the ABI type tags
// spec.md §6 names: address, bool, string, bytes, bytes1..bytes32,
// uint8..uint256 / int8..int256 in multiples of 8, or any of the
// above with a trailing "[]" for a dynamic array.
func IsValidEVMType(t string) bool {
	base := strings.TrimSuffix(t, "[]")
	switch base {
	case "address", "bool", "string", "bytes":
		return true
	}
	if bytesNRe.MatchString(base) {
		return true
	}
	if m := uintRe.FindStringSubmatch(base); m != nil {
		bits, _ := strconv.Atoi(m[1])
		return bits%8 == 0 && bits >= 8 && bits <= 256
	}
	if m := intRe.FindStringSubmatch(base); m != nil {
		bits, _ := strconv.Atoi(m[1])
		return bits%8 == 0 && bits >= 8 && bits <= 256
	}
	return false
}
