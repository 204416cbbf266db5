// Copyright 2025 Certen Protocol
package claimtypes

import "testing"

func TestParseProcessor_PreservesTransformDeclarationOrder(t *testing.T) {
	doc := `{
		"extract": {"b": "$.b", "a": "$.a"},
		"transform": {
			"second": {"input": "a", "ops": []},
			"first": {"input": "b", "ops": []}
		},
		"outputs": [{"name": "first", "type": "string"}]
	}`
	p, err := ParseProcessor([]byte(doc))
	if err != nil {
		t.Fatalf("ParseProcessor: %v", err)
	}
	if len(p.Transform) != 2 || p.Transform[0].Name != "second" || p.Transform[1].Name != "first" {
		t.Fatalf("transform order not preserved: %+v", p.Transform)
	}
	if len(p.Extract) != 2 || p.Extract[0].Name != "a" || p.Extract[1].Name != "b" {
		t.Fatalf("extract not sorted: %+v", p.Extract)
	}
}

func TestParseProcessor_DetectsLegacyOutputShape(t *testing.T) {
	doc := `{"extract": {"a": "$.a"}, "transform": {}, "output": ["a"]}`
	p, err := ParseProcessor([]byte(doc))
	if err != nil {
		t.Fatalf("ParseProcessor: %v", err)
	}
	if !p.IsLegacyOutputShape() {
		t.Fatal("want legacy output shape detected")
	}
}

func TestParseProcessor_RejectsDuplicateKeys(t *testing.T) {
	doc := `{"extract": {"a": "$.a", "a": "$.b"}, "transform": {}, "outputs": []}`
	if _, err := ParseProcessor([]byte(doc)); err == nil {
		t.Fatal("want error for duplicate extract key")
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"a", "_a", "foo_bar2", "A1"}
	invalid := []string{"", "1a", "foo-bar", "foo bar"}
	for _, v := range valid {
		if !ValidIdentifier(v) {
			t.Errorf("ValidIdentifier(%q) = false, want true", v)
		}
	}
	for _, v := range invalid {
		if ValidIdentifier(v) {
			t.Errorf("ValidIdentifier(%q) = true, want false", v)
		}
	}
}

func TestParseProcessor_RawJSONRetained(t *testing.T) {
	doc := `{"extract": {}, "transform": {}, "outputs": []}`
	p, err := ParseProcessor([]byte(doc))
	if err != nil {
		t.Fatalf("ParseProcessor: %v", err)
	}
	if string(p.RawJSON()) != doc {
		t.Fatalf("got raw %q, want %q", p.RawJSON(), doc)
	}
}
