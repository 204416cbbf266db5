// Copyright 2025 Certen Protocol
package executor

import (
	"errors"
	"testing"

	"github.com/certen/claim-processor/pkg/claimtypes"
)

func mustParseProcessor(t *testing.T, doc string) *claimtypes.Processor {
	t.Helper()
	p, err := claimtypes.ParseProcessor([]byte(doc))
	if err != nil {
		t.Fatalf("ParseProcessor: %v", err)
	}
	return p
}

func TestExecute_SimpleExtractAndOutput(t *testing.T) {
	proc := mustParseProcessor(t, `{
		"extract": {"amount": "$.parameters.amount"},
		"transform": {},
		"outputs": [{"name": "amount", "type": "string"}]
	}`)
	claim := &claimtypes.Claim{Parameters: `{"amount": "42"}`}

	values, err := Execute(proc, claim, DefaultLimits())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(values) != 1 || values[0] != "42" {
		t.Fatalf("values = %v, want [42]", values)
	}
}

func TestExecute_TransformPipeline(t *testing.T) {
	proc := mustParseProcessor(t, `{
		"extract": {"raw": "$.parameters.name"},
		"transform": {
			"upper": {"input": "raw", "ops": ["toUpperCase", "trim"]}
		},
		"outputs": [{"name": "upper", "type": "string"}]
	}`)
	claim := &claimtypes.Claim{Parameters: `{"name": " alice "}`}

	values, err := Execute(proc, claim, DefaultLimits())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if values[0] != "ALICE" {
		t.Fatalf("values[0] = %q, want ALICE", values[0])
	}
}

func TestExecute_ConditionalOnSplicesBranch(t *testing.T) {
	proc := mustParseProcessor(t, `{
		"extract": {
			"kind": "$.parameters.kind",
			"raw": "$.parameters.name"
		},
		"transform": {
			"result": {
				"input": "raw",
				"ops": [
					{
						"type": "conditionalOn",
						"checkField": "kind",
						"if": {"eq": "premium"},
						"then": ["toUpperCase"],
						"else": ["toLowerCase"]
					}
				]
			}
		},
		"outputs": [{"name": "result", "type": "string"}]
	}`)

	premium := &claimtypes.Claim{Parameters: `{"kind": "premium", "name": "Bob"}`}
	values, err := Execute(proc, premium, DefaultLimits())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if values[0] != "BOB" {
		t.Fatalf("values[0] = %q, want BOB", values[0])
	}

	standard := &claimtypes.Claim{Parameters: `{"kind": "standard", "name": "Bob"}`}
	values, err = Execute(proc, standard, DefaultLimits())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if values[0] != "bob" {
		t.Fatalf("values[0] = %q, want bob", values[0])
	}
}

func TestExecute_MissingExtractionFails(t *testing.T) {
	proc := mustParseProcessor(t, `{
		"extract": {"amount": "$.parameters.amount"},
		"transform": {},
		"outputs": [{"name": "amount", "type": "string"}]
	}`)
	claim := &claimtypes.Claim{Parameters: `{}`}

	_, err := Execute(proc, claim, DefaultLimits())
	if err == nil {
		t.Fatal("expected an error for a non-matching JSONPath")
	}
	if !errors.Is(err, ErrExtractMissing) {
		t.Fatalf("err = %v, want ErrExtractMissing", err)
	}
}

func TestExecute_UndefinedInputFails(t *testing.T) {
	proc := mustParseProcessor(t, `{
		"extract": {},
		"transform": {"out": {"input": "doesNotExist", "ops": []}},
		"outputs": [{"name": "out", "type": "string"}]
	}`)
	claim := &claimtypes.Claim{}

	_, err := Execute(proc, claim, DefaultLimits())
	if !errors.Is(err, ErrTransformInputUndefined) {
		t.Fatalf("err = %v, want ErrTransformInputUndefined", err)
	}
}

func TestExecute_AssertOneOfRejection(t *testing.T) {
	proc := mustParseProcessor(t, `{
		"extract": {"status": "$.parameters.status"},
		"transform": {
			"checked": {
				"input": "status",
				"ops": [{"type": "assertOneOf", "values": ["active", "pending"]}]
			}
		},
		"outputs": [{"name": "checked", "type": "string"}]
	}`)
	claim := &claimtypes.Claim{Parameters: `{"status": "banned"}`}

	_, err := Execute(proc, claim, DefaultLimits())
	if !errors.Is(err, ErrOpFailure) {
		t.Fatalf("err = %v, want ErrOpFailure", err)
	}
}

func TestExecute_TransformShadowsExtractedNameForLaterLookups(t *testing.T) {
	proc := mustParseProcessor(t, `{
		"extract": {"value": "$.parameters.value"},
		"transform": {
			"value": {"input": "value", "ops": ["toUpperCase"]},
			"final": {"input": "value", "ops": []}
		},
		"outputs": [{"name": "final", "type": "string"}]
	}`)
	claim := &claimtypes.Claim{Parameters: `{"value": "hi"}`}

	values, err := Execute(proc, claim, DefaultLimits())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if values[0] != "HI" {
		t.Fatalf("values[0] = %q, want HI (shadowed transform value)", values[0])
	}
}

func TestExecute_TooManyOutputsFails(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxOutputValues = 1
	proc := mustParseProcessor(t, `{
		"extract": {"a": "$.parameters.a", "b": "$.parameters.b"},
		"transform": {},
		"outputs": [{"name": "a", "type": "string"}, {"name": "b", "type": "string"}]
	}`)
	claim := &claimtypes.Claim{Parameters: `{"a": "1", "b": "2"}`}

	_, err := Execute(proc, claim, limits)
	if !errors.Is(err, ErrTooManyOutputs) {
		t.Fatalf("err = %v, want ErrTooManyOutputs", err)
	}
}
