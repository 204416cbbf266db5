// Copyright 2025 Certen Protocol
//
// Package executor implements C4, the sandboxed processor runner:
// extract -> transform -> output, against the resource bounds of
// spec.md §5 (I5). It is the only package that sequences the other
// core components (C1 registry, C2 condition evaluator, C8 claim
// parser) into a single pass over a processor document.
package executor

import (
	"time"

	"github.com/certen/claim-processor/pkg/claimtypes"
	"github.com/certen/claim-processor/pkg/condition"
	"github.com/certen/claim-processor/pkg/registry"
	"github.com/certen/claim-processor/pkg/scalar"
)

// Limits mirrors the resource bounds named in spec.md §5.
type Limits struct {
	MaxExecutionTime   time.Duration
	MaxJSONPathResults int
	MaxOutputValues    int
	MaxStringLength    int
}

// DefaultLimits returns the bounds spec.md §5 names.
func DefaultLimits() Limits {
	return Limits{
		MaxExecutionTime:   5000 * time.Millisecond,
		MaxJSONPathResults: 1000,
		MaxOutputValues:    100,
		MaxStringLength:    100_000,
	}
}

// Execute runs processor against claim and returns the ordered output
// values described by spec.md §4.4. It assumes processor has already
// passed C3 static validation; a validated processor can still fail at
// runtime (missing extraction, undefined input, assertion failure,
// resource bound), which Execute reports as a *Fault.
func Execute(processor *claimtypes.Processor, claim *claimtypes.Claim, limits Limits) ([]string, error) {
	deadline := time.Now().Add(limits.MaxExecutionTime)
	root := buildRoot(claim)

	extracted, err := runExtract(processor.Extract, root, limits, deadline)
	if err != nil {
		return nil, err
	}

	transformed, err := runTransform(processor.Transform, extracted, limits, deadline)
	if err != nil {
		return nil, err
	}

	return runOutputs(processor.Outputs, extracted, transformed, limits, deadline)
}

func checkDeadline(deadline time.Time) error {
	if time.Now().After(deadline) {
		return fault(ErrResourceExceeded, "", "execution deadline exceeded")
	}
	return nil
}

// runExtract is spec.md §4.4 step 2: resolve each named JSONPath query
// against root, enforcing I5's MAX_JSONPATH_RESULTS and the "no match
// is a hard failure" rule.
func runExtract(entries []claimtypes.ExtractEntry, root interface{}, limits Limits, deadline time.Time) (map[string]scalar.Scalar, error) {
	extracted := make(map[string]scalar.Scalar, len(entries))
	for _, e := range entries {
		if err := checkDeadline(deadline); err != nil {
			return nil, err
		}
		results, err := queryJSONPath(e.JSONPath, root)
		if err != nil || len(results) == 0 {
			return nil, fault(ErrExtractMissing, e.Name, "value extraction failed for %q using JSONPath %q", e.Name, e.JSONPath)
		}
		if len(results) > limits.MaxJSONPathResults {
			return nil, fault(ErrExtractOverflow, e.Name, "JSONPath %q for %q matched %d nodes, exceeding the limit", e.JSONPath, e.Name, len(results))
		}
		extracted[e.Name] = scalar.FromJSON(results[0])
	}
	return extracted, nil
}

// runTransform is spec.md §4.4 step 3: evaluate each transform entry,
// in declaration order, against a variable namespace where transformed
// names shadow extracted ones of the same name (I1).
func runTransform(entries []claimtypes.TransformEntry, extracted map[string]scalar.Scalar, limits Limits, deadline time.Time) (map[string]scalar.Scalar, error) {
	transformed := make(map[string]scalar.Scalar, len(entries))
	for _, t := range entries {
		if err := checkDeadline(deadline); err != nil {
			return nil, err
		}

		value, err := resolveRuleInput(t, extracted, transformed)
		if err != nil {
			return nil, err
		}

		value, err = runPipeline(t.Rule.Ops, value, extracted, transformed, limits, deadline)
		if err != nil {
			return nil, err
		}
		transformed[t.Name] = value
	}
	return transformed, nil
}

func resolveRuleInput(t claimtypes.TransformEntry, extracted, transformed map[string]scalar.Scalar) (scalar.Scalar, error) {
	switch {
	case t.Rule.HasInput:
		v, ok := lookup(extracted, transformed, t.Rule.Input)
		if !ok {
			return scalar.Null(), fault(ErrTransformInputUndefined, t.Name, "input %q is undefined", t.Rule.Input)
		}
		return v, nil
	case t.Rule.HasInputs:
		seq := make([]scalar.Scalar, len(t.Rule.Inputs))
		for i, name := range t.Rule.Inputs {
			v, ok := lookup(extracted, transformed, name)
			if !ok {
				return scalar.Null(), fault(ErrTransformInputUndefined, t.Name, "input %q is undefined", name)
			}
			seq[i] = v
		}
		return scalar.FromSeq(seq), nil
	default:
		// Source-less rule: the pipeline must start with a constant op.
		return scalar.Null(), nil
	}
}

// runPipeline drives a transform rule's op list as a work queue so that
// conditionalOn (spec.md §4.1) can splice its chosen branch in place
// rather than recursing, mirroring the source's VecDeque-based design
// (spec.md §9).
func runPipeline(ops []claimtypes.Op, value scalar.Scalar, extracted, transformed map[string]scalar.Scalar, limits Limits, deadline time.Time) (scalar.Scalar, error) {
	queue := append([]claimtypes.Op(nil), ops...)

	for len(queue) > 0 {
		if err := checkDeadline(deadline); err != nil {
			return scalar.Null(), err
		}
		op := queue[0]
		queue = queue[1:]

		if op.Name == claimtypes.OpConditionalOn {
			branch, err := resolveConditionalBranch(op, extracted, transformed)
			if err != nil {
				return scalar.Null(), err
			}
			queue = append(append([]claimtypes.Op(nil), branch...), queue...)
			continue
		}

		ctx := mergeContext(extracted, transformed)
		next, err := registry.Apply(op, value, ctx)
		if err != nil {
			return scalar.Null(), fault(ErrOpFailure, "", "%s", err)
		}
		if len(scalar.SafeToString(next)) > limits.MaxStringLength {
			return scalar.Null(), fault(ErrResourceExceeded, "", "intermediate value exceeds the maximum string length")
		}
		value = next
	}

	return value, nil
}

// resolveConditionalBranch evaluates a conditionalOn op's predicate
// against the named context field and returns the chosen branch,
// enforcing I6 (no nested conditionalOn, checked dynamically as a
// defense in depth alongside C3's static check).
func resolveConditionalBranch(op claimtypes.Op, extracted, transformed map[string]scalar.Scalar) ([]claimtypes.Op, error) {
	subject, ok := lookup(extracted, transformed, op.CheckField)
	if !ok {
		return nil, fault(ErrOpFailure, "", "conditionalOn checkField %q is undefined", op.CheckField)
	}
	matched, err := condition.Eval(subject, op.If)
	if err != nil {
		return nil, fault(ErrOpFailure, "", "conditionalOn: %s", err)
	}
	branch := op.Else
	if matched {
		branch = op.Then
	}
	for _, inner := range branch {
		if inner.Name == claimtypes.OpConditionalOn {
			return nil, fault(ErrOpFailure, "", "conditionalOn branches must not nest conditionalOn")
		}
	}
	return branch, nil
}

// runOutputs is spec.md §4.4 step 4: resolve each named output,
// preferring a transformed value over an extracted one of the same
// name, and coerce it to its wire string form.
func runOutputs(specs []claimtypes.OutputSpec, extracted, transformed map[string]scalar.Scalar, limits Limits, deadline time.Time) ([]string, error) {
	if err := checkDeadline(deadline); err != nil {
		return nil, err
	}
	if len(specs) > limits.MaxOutputValues {
		return nil, fault(ErrTooManyOutputs, "", "processor declares %d outputs, exceeding the limit", len(specs))
	}

	values := make([]string, 0, len(specs))
	for _, spec := range specs {
		v, ok := lookup(extracted, transformed, spec.Name)
		if !ok || v.IsNull() {
			return nil, fault(ErrOutputUndefined, spec.Name, "output %q did not resolve to a value", spec.Name)
		}
		s := scalar.SafeToString(v)
		if len(s) > limits.MaxStringLength {
			return nil, fault(ErrResourceExceeded, spec.Name, "output %q exceeds the maximum string length", spec.Name)
		}
		values = append(values, s)
	}
	return values, nil
}

// lookup resolves name against the transformed namespace first, then
// extracted, per I1's shadowing rule.
func lookup(extracted, transformed map[string]scalar.Scalar, name string) (scalar.Scalar, bool) {
	if v, ok := transformed[name]; ok {
		return v, true
	}
	if v, ok := extracted[name]; ok {
		return v, true
	}
	return scalar.Null(), false
}

// mergeContext builds the ctx map registry.Apply accepts, with
// transformed shadowing extracted. No current registry op reads it.
func mergeContext(extracted, transformed map[string]scalar.Scalar) map[string]scalar.Scalar {
	ctx := make(map[string]scalar.Scalar, len(extracted)+len(transformed))
	for k, v := range extracted {
		ctx[k] = v
	}
	for k, v := range transformed {
		ctx[k] = v
	}
	return ctx
}
