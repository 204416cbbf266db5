// Copyright 2025 Certen Protocol
//
// Package condition implements the Boolean condition language used by
// the registry's "validate" op and by the "conditionalOn" branch op. It is a closed tagged-union AST, not a string expression
// language, so it is evaluated by direct structural recursion rather
// than by handing a formula to a general expression evaluator.
package condition

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/certen/claim-processor/pkg/scalar"
)

// Kind identifies which of the mutually-exclusive condition tags is set.
type Kind int

const (
	KindNone Kind = iota
	KindEq
	KindNe
	KindGt
	KindLt
	KindGte
	KindLte
	KindContains
	KindStartsWith
	KindEndsWith
	KindMatches
	KindAnd
	KindOr
	KindNot
)

// Expr is a single condition expression node. Exactly one of the
// comparison fields (Value) / list fields (Children) / Not is
// meaningful, selected by Kind. An Expr with Kind == KindNone is the
// "empty expression object" from spec.md §4.2, which always evaluates
// false.
type Expr struct {
	Kind     Kind
	Value    scalar.Scalar // operand for eq/ne/gt/lt/gte/lte/contains/startsWith/endsWith
	Pattern  string        // operand for matches
	Children []Expr        // operands for and/or
	Not      *Expr         // operand for not
}

// UnmarshalJSON parses a condition document, which is a JSON object
// with exactly one of the recognised tag keys.
func (e *Expr) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("condition: %w", err)
	}
	if len(raw) == 0 {
		*e = Expr{Kind: KindNone}
		return nil
	}

	tryValue := func(key string, kind Kind) (bool, error) {
		rm, ok := raw[key]
		if !ok {
			return false, nil
		}
		var v interface{}
		if err := json.Unmarshal(rm, &v); err != nil {
			return false, fmt.Errorf("condition.%s: %w", key, err)
		}
		*e = Expr{Kind: kind, Value: scalar.FromJSON(v)}
		return true, nil
	}

	for key, kind := range map[string]Kind{
		"eq": KindEq, "ne": KindNe,
		"gt": KindGt, "lt": KindLt, "gte": KindGte, "lte": KindLte,
		"contains": KindContains, "startsWith": KindStartsWith, "endsWith": KindEndsWith,
	} {
		if ok, err := tryValue(key, kind); err != nil {
			return err
		} else if ok {
			return nil
		}
	}

	if rm, ok := raw["matches"]; ok {
		var pattern string
		if err := json.Unmarshal(rm, &pattern); err != nil {
			return fmt.Errorf("condition.matches: %w", err)
		}
		*e = Expr{Kind: KindMatches, Pattern: pattern}
		return nil
	}

	for _, key := range []string{"and", "or"} {
		rm, ok := raw[key]
		if !ok {
			continue
		}
		var children []Expr
		if err := json.Unmarshal(rm, &children); err != nil {
			return fmt.Errorf("condition.%s: %w", key, err)
		}
		kind := KindAnd
		if key == "or" {
			kind = KindOr
		}
		*e = Expr{Kind: kind, Children: children}
		return nil
	}

	if rm, ok := raw["not"]; ok {
		var inner Expr
		if err := json.Unmarshal(rm, &inner); err != nil {
			return fmt.Errorf("condition.not: %w", err)
		}
		*e = Expr{Kind: KindNot, Not: &inner}
		return nil
	}

	return fmt.Errorf("condition: unrecognised keys %v", keysOf(raw))
}

func keysOf(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Eval implements C2: evaluate(subject, expr) -> bool.
func Eval(subject scalar.Scalar, expr Expr) (bool, error) {
	switch expr.Kind {
	case KindNone:
		return false, nil
	case KindEq:
		return scalar.Equal(subject, expr.Value), nil
	case KindNe:
		return !scalar.Equal(subject, expr.Value), nil
	case KindGt, KindLt, KindGte, KindLte:
		sn, sok := subject.Number()
		vn, vok := expr.Value.Number()
		if !sok || !vok {
			return false, nil
		}
		switch expr.Kind {
		case KindGt:
			return sn > vn, nil
		case KindLt:
			return sn < vn, nil
		case KindGte:
			return sn >= vn, nil
		default:
			return sn <= vn, nil
		}
	case KindContains:
		return strings.Contains(scalar.SafeToString(subject), scalar.SafeToString(expr.Value)), nil
	case KindStartsWith:
		return strings.HasPrefix(scalar.SafeToString(subject), scalar.SafeToString(expr.Value)), nil
	case KindEndsWith:
		return strings.HasSuffix(scalar.SafeToString(subject), scalar.SafeToString(expr.Value)), nil
	case KindMatches:
		re, err := regexp.Compile(expr.Pattern)
		if err != nil {
			return false, fmt.Errorf("condition: invalid regex %q: %w", expr.Pattern, err)
		}
		return re.MatchString(scalar.SafeToString(subject)), nil
	case KindAnd:
		for _, child := range expr.Children {
			ok, err := Eval(subject, child)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case KindOr:
		for _, child := range expr.Children {
			ok, err := Eval(subject, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case KindNot:
		if expr.Not == nil {
			return false, fmt.Errorf("condition: not missing operand")
		}
		ok, err := Eval(subject, *expr.Not)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("condition: unknown kind %d", expr.Kind)
	}
}
