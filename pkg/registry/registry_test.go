// Copyright 2025 Certen Protocol
package registry

import (
	"strings"
	"testing"

	"github.com/certen/claim-processor/pkg/claimtypes"
	"github.com/certen/claim-processor/pkg/scalar"
)

func apply(t *testing.T, op claimtypes.Op, value scalar.Scalar) scalar.Scalar {
	t.Helper()
	out, err := Apply(op, value, nil)
	if err != nil {
		t.Fatalf("Apply(%+v): unexpected error %v", op, err)
	}
	return out
}

func TestApply_CaseAndTrim(t *testing.T) {
	if got := apply(t, claimtypes.Op{Name: claimtypes.OpToLowerCase}, scalar.FromString("HeLLo")); got.String != "hello" {
		t.Errorf("toLowerCase: got %q", got.String)
	}
	if got := apply(t, claimtypes.Op{Name: claimtypes.OpToUpperCase}, scalar.FromString("HeLLo")); got.String != "HELLO" {
		t.Errorf("toUpperCase: got %q", got.String)
	}
	if got := apply(t, claimtypes.Op{Name: claimtypes.OpTrim}, scalar.FromString("  hi  ")); got.String != "hi" {
		t.Errorf("trim: got %q", got.String)
	}
}

func TestApply_Substring(t *testing.T) {
	end := 3
	op := claimtypes.Op{Name: claimtypes.OpSubstring, Start: 1, End: &end}
	if got := apply(t, op, scalar.FromString("hello")); got.String != "el" {
		t.Fatalf("got %q, want %q", got.String, "el")
	}
}

func TestApply_SubstringEndLessThanStartSwaps(t *testing.T) {
	end := 1
	op := claimtypes.Op{Name: claimtypes.OpSubstring, Start: 3, End: &end}
	if got := apply(t, op, scalar.FromString("hello")); got.String != "el" {
		t.Fatalf("got %q, want %q", got.String, "el")
	}
}

func TestApply_ReplaceLiteralAndGlobal(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpReplace, Pattern: "l", Replacement: "L"}
	if got := apply(t, op, scalar.FromString("hello")); got.String != "heLlo" {
		t.Fatalf("non-global: got %q", got.String)
	}
	op.Global = true
	if got := apply(t, op, scalar.FromString("hello")); got.String != "heLLo" {
		t.Fatalf("global: got %q", got.String)
	}
}

func TestApply_ReplaceRegexForm(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpReplace, Pattern: "/[0-9]+/", Replacement: "#", Global: true}
	if got := apply(t, op, scalar.FromString("a1b22c333")); got.String != "a#b#c#" {
		t.Fatalf("got %q", got.String)
	}
}

func TestApply_MathOps(t *testing.T) {
	cases := []struct {
		expr string
		in   float64
		want string
	}{
		{"* 100", 1.0, "100"},
		{"+ 5", 10, "15"},
		{"- 3", 10, "7"},
		{"/ 2", 10, "5"},
	}
	for _, c := range cases {
		op := claimtypes.Op{Name: claimtypes.OpMath, Expression: c.expr}
		got := apply(t, op, scalar.FromFloat(c.in))
		if got.String != c.want {
			t.Errorf("%s on %v: got %q, want %q", c.expr, c.in, got.String, c.want)
		}
	}
}

func TestApply_MathDivisionByZeroFails(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpMath, Expression: "/ 0"}
	if _, err := Apply(op, scalar.FromFloat(1), nil); err == nil {
		t.Fatal("want error for division by zero")
	}
}

func TestApply_Keccak256AndSha256(t *testing.T) {
	got := apply(t, claimtypes.Op{Name: claimtypes.OpKeccak256}, scalar.FromString("hello"))
	if !strings.HasPrefix(got.String, "0x") || len(got.String) != 66 {
		t.Fatalf("keccak256: got %q", got.String)
	}
	got = apply(t, claimtypes.Op{Name: claimtypes.OpSha256}, scalar.FromString("hello"))
	if !strings.HasPrefix(got.String, "0x") || len(got.String) != 66 {
		t.Fatalf("sha256: got %q", got.String)
	}
}

func TestApply_AssertEquals(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpAssertEquals, Expected: scalar.FromInt(5)}
	if _, err := Apply(op, scalar.FromInt(5), nil); err != nil {
		t.Fatalf("want success, got %v", err)
	}
	if _, err := Apply(op, scalar.FromInt(6), nil); err == nil {
		t.Fatal("want failure for mismatched value")
	}
}

func TestApply_AssertOneOf(t *testing.T) {
	op := claimtypes.Op{
		Name:      claimtypes.OpAssertOneOf,
		HasValues: true,
		Values:    []scalar.Scalar{scalar.FromString("a"), scalar.FromString("b")},
	}
	if _, err := Apply(op, scalar.FromString("a"), nil); err != nil {
		t.Fatalf("want success, got %v", err)
	}
	if _, err := Apply(op, scalar.FromString("z"), nil); err == nil {
		t.Fatal("want failure for value not in set")
	}
}

func TestApply_Concat(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpConcat}
	seq := scalar.FromSeq([]scalar.Scalar{scalar.FromString("a"), scalar.FromString("b")})
	got := apply(t, op, seq)
	if got.String != "ab" {
		t.Fatalf("got %q, want %q", got.String, "ab")
	}
	if _, err := Apply(op, scalar.FromString("not-a-seq"), nil); err == nil {
		t.Fatal("want error for non-sequence input")
	}
}

func TestApply_Template(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpTemplate, TemplatePattern: "value=${value}"}
	got := apply(t, op, scalar.FromString("42"))
	if got.String != "value=42" {
		t.Fatalf("got %q", got.String)
	}
}

func TestApply_Constant(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpConstant, HasValue: true, Value: scalar.FromString("fixed")}
	got := apply(t, op, scalar.Null())
	if got.String != "fixed" {
		t.Fatalf("got %q", got.String)
	}
}

func TestApply_ParseTimestamp_ISO8601(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpParseTimestamp}
	got := apply(t, op, scalar.FromString("2025-03-06T18:36:45"))
	if got.String == "" {
		t.Fatal("want non-empty millisecond timestamp")
	}
}

func TestApply_ParseTimestamp_EpochSeconds(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpParseTimestamp}
	got := apply(t, op, scalar.FromString("1700000000"))
	if got.String != "1700000000000" {
		t.Fatalf("got %q, want %q", got.String, "1700000000000")
	}
}

func TestApply_ParseTimestamp_UnrecognisedFormatFails(t *testing.T) {
	op := claimtypes.Op{Name: claimtypes.OpParseTimestamp}
	if _, err := Apply(op, scalar.FromString("not-a-date"), nil); err == nil {
		t.Fatal("want error for unrecognised format")
	}
}
