// Copyright 2025 Certen Protocol
//
// Processor is the untrusted, declarative document the executor (C4)
// runs: extract -> transform -> outputs. Parsing here is schema-driven
// (spec.md §9): malformed shapes fail to unmarshal, which the caller
// turns into a ProcessorInvalid before any execution is attempted.
package claimtypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name matches the variable-name syntax
// required by spec.md §3 for extract/transform keys.
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// ExtractEntry is one `extract` mapping entry.
type ExtractEntry struct {
	Name     string
	JSONPath string
}

// TransformEntry is one `transform` mapping entry, in declaration order.
type TransformEntry struct {
	Name string
	Rule TransformRule
}

// TransformRule is one of the three mutually-exclusive shapes from
// spec.md §3: single `input`, tuple `inputs`, or source-less (constant).
type TransformRule struct {
	Input     string
	HasInput  bool
	Inputs    []string
	HasInputs bool
	Ops       []Op
}

func (r *TransformRule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Input  *string  `json:"input"`
		Inputs []string `json:"inputs"`
		Ops    []Op     `json:"ops"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("transform rule: %w", err)
	}
	*r = TransformRule{Ops: raw.Ops}
	if raw.Input != nil {
		r.Input = *raw.Input
		r.HasInput = true
	}
	if raw.Inputs != nil {
		r.Inputs = raw.Inputs
		r.HasInputs = true
	}
	return nil
}

// OutputSpec names one entry of the ordered `outputs` sequence.
type OutputSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Processor is the fully-parsed document described by spec.md §3.
// Version is the document's own `version` tag, carried through parsing.
// The identity hash is computed from RawJSON, not from this struct, so
// setting Version after parsing does not change the hash; a version
// counts toward the hash only when the document itself names one.
type Processor struct {
	Version   string           `json:"version,omitempty"`
	Extract   []ExtractEntry   `json:"-"`
	Transform []TransformEntry `json:"-"`
	Outputs   []OutputSpec     `json:"outputs"`

	// raw is the exact bytes this processor was parsed from, retained so
	// the canonical serializer (C7) can re-derive field presence/order
	// from the wire document rather than from the Go struct, which
	// would lose any provider-legacy extra keys.
	raw json.RawMessage

	legacyOutputShape bool
}

// RawJSON returns the original bytes the processor was parsed from.
func (p *Processor) RawJSON() json.RawMessage { return p.raw }

// ParseProcessor parses a processor document, preserving the
// declaration order of the `transform` map (order-significant per
// spec.md §3/§5) and producing a deterministic (sorted) order for the
// order-irrelevant `extract` map.
func ParseProcessor(data []byte) (*Processor, error) {
	var shape struct {
		Version string          `json:"version"`
		Extract json.RawMessage `json:"extract"`
		// legacy shape rejected by the validator (spec.md §9 open
		// question 1): a bare `output: [name,...]` list instead of the
		// canonical `outputs: [{name,type}]`.
		Output    json.RawMessage `json:"output"`
		Transform json.RawMessage `json:"transform"`
		Outputs   []OutputSpec    `json:"outputs"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	p := &Processor{
		Version: shape.Version,
		Outputs: shape.Outputs,
		raw:     json.RawMessage(append([]byte(nil), data...)),
	}

	if len(shape.Output) > 0 {
		// Signal the legacy shape to the validator via a flag; the
		// validator rejects any processor with this set.
		p.legacyOutputShape = true
	}

	if len(shape.Extract) > 0 {
		names, raws, err := orderedObjectKeys(shape.Extract)
		if err != nil {
			return nil, fmt.Errorf("processor.extract: %w", err)
		}
		sort.Strings(names)
		for _, name := range names {
			var path string
			if err := json.Unmarshal(raws[name], &path); err != nil {
				return nil, fmt.Errorf("processor.extract.%s: %w", name, err)
			}
			p.Extract = append(p.Extract, ExtractEntry{Name: name, JSONPath: path})
		}
	}

	if len(shape.Transform) > 0 {
		names, raws, err := orderedObjectKeys(shape.Transform)
		if err != nil {
			return nil, fmt.Errorf("processor.transform: %w", err)
		}
		for _, name := range names {
			var rule TransformRule
			if err := json.Unmarshal(raws[name], &rule); err != nil {
				return nil, fmt.Errorf("processor.transform.%s: %w", name, err)
			}
			p.Transform = append(p.Transform, TransformEntry{Name: name, Rule: rule})
		}
	}

	return p, nil
}

// legacyOutputShape is set when the document used the legacy `output:
// [name,...]` list instead of `outputs: [{name,type}]`. Exported via
// IsLegacyOutputShape so the validator can reject it per spec.md §9.
func (p *Processor) IsLegacyOutputShape() bool { return p.legacyOutputShape }

// orderedObjectKeys walks a JSON object token-by-token to recover the
// declaration order encoding/json's map decoding would otherwise
// discard — required because spec.md §5 makes transform declaration
// order observable.
func orderedObjectKeys(data json.RawMessage) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected JSON object")
	}

	var names []string
	raws := make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected string key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", key, err)
		}
		if _, dup := raws[key]; dup {
			return nil, nil, fmt.Errorf("duplicate key %q", key)
		}
		names = append(names, key)
		raws[key] = raw
	}
	return names, raws, nil
}
