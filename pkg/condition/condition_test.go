// Copyright 2025 Certen Protocol
package condition

import (
	"encoding/json"
	"testing"

	"github.com/certen/claim-processor/pkg/scalar"
)

func mustParse(t *testing.T, doc string) Expr {
	t.Helper()
	var e Expr
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		t.Fatalf("unmarshal %s: %v", doc, err)
	}
	return e
}

func TestEval_EmptyExpressionIsAlwaysFalse(t *testing.T) {
	e := mustParse(t, `{}`)
	ok, err := Eval(scalar.FromInt(5), e)
	if err != nil || ok {
		t.Fatalf("want (false, nil), got (%v, %v)", ok, err)
	}
}

func TestEval_ComparisonOps(t *testing.T) {
	cases := []struct {
		doc     string
		subject scalar.Scalar
		want    bool
	}{
		{`{"eq": 5}`, scalar.FromInt(5), true},
		{`{"ne": 5}`, scalar.FromInt(5), false},
		{`{"gt": 3}`, scalar.FromInt(5), true},
		{`{"lt": 3}`, scalar.FromInt(5), false},
		{`{"gte": 5}`, scalar.FromInt(5), true},
		{`{"lte": 4}`, scalar.FromInt(5), false},
		{`{"contains": "ell"}`, scalar.FromString("hello"), true},
		{`{"startsWith": "he"}`, scalar.FromString("hello"), true},
		{`{"endsWith": "lo"}`, scalar.FromString("hello"), true},
	}
	for _, c := range cases {
		e := mustParse(t, c.doc)
		got, err := Eval(c.subject, e)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", c.doc, err)
		}
		if got != c.want {
			t.Errorf("%s on %v: got %v, want %v", c.doc, c.subject, got, c.want)
		}
	}
}

func TestEval_Matches(t *testing.T) {
	e := mustParse(t, `{"matches": "^[a-z]+[0-9]+$"}`)
	ok, err := Eval(scalar.FromString("abc123"), e)
	if err != nil || !ok {
		t.Fatalf("want (true, nil), got (%v, %v)", ok, err)
	}
	ok, err = Eval(scalar.FromString("ABC123"), e)
	if err != nil || ok {
		t.Fatalf("want (false, nil), got (%v, %v)", ok, err)
	}
}

func TestEval_AndOrNot(t *testing.T) {
	and := mustParse(t, `{"and": [{"gt": 0}, {"lt": 10}]}`)
	ok, err := Eval(scalar.FromInt(5), and)
	if err != nil || !ok {
		t.Fatalf("and: want (true, nil), got (%v, %v)", ok, err)
	}
	ok, err = Eval(scalar.FromInt(20), and)
	if err != nil || ok {
		t.Fatalf("and: want (false, nil), got (%v, %v)", ok, err)
	}

	or := mustParse(t, `{"or": [{"eq": 1}, {"eq": 2}]}`)
	ok, err = Eval(scalar.FromInt(2), or)
	if err != nil || !ok {
		t.Fatalf("or: want (true, nil), got (%v, %v)", ok, err)
	}

	not := mustParse(t, `{"not": {"eq": 1}}`)
	ok, err = Eval(scalar.FromInt(1), not)
	if err != nil || ok {
		t.Fatalf("not: want (false, nil), got (%v, %v)", ok, err)
	}
}

func TestEval_NumericComparisonOnNonNumericIsFalseNotError(t *testing.T) {
	e := mustParse(t, `{"gt": 3}`)
	ok, err := Eval(scalar.FromString("not-a-number"), e)
	if err != nil || ok {
		t.Fatalf("want (false, nil), got (%v, %v)", ok, err)
	}
}

func TestEval_InvalidRegexErrors(t *testing.T) {
	e := mustParse(t, `{"matches": "("}`)
	if _, err := Eval(scalar.FromString("x"), e); err == nil {
		t.Fatal("want error for invalid regex")
	}
}
