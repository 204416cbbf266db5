// Copyright 2025 Certen Protocol
//
// C8: Claim Parser. Parses the `context` and `parameters` JSON strings
// inside a claim record into a JSONPath-queryable tree. On parse
// failure the raw string is retained, so a JSONPath query like
// `$.context` still returns something sensible (spec.md §4.8).
package executor

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/certen/claim-processor/pkg/claimtypes"
)

// buildRoot assembles the queryable root document described by
// spec.md §4.4 step 1: {provider, parameters, owner, timestampS,
// context, identifier, epoch}, with context/parameters deep-parsed.
func buildRoot(claim *claimtypes.Claim) map[string]interface{} {
	return map[string]interface{}{
		"provider":   claim.Provider,
		"parameters": parseJSONOrRaw(claim.Parameters),
		"owner":      claim.Owner,
		"timestampS": json.Number(strconv.FormatUint(claim.TimestampS, 10)),
		"context":    parseJSONOrRaw(claim.Context),
		"identifier": claim.Identifier,
		"epoch":      json.Number(strconv.FormatUint(claim.Epoch, 10)),
	}
}

// parseJSONOrRaw parses s as JSON, preserving exact integer precision
// via json.Number. If s is not valid JSON, it is returned unchanged so
// a JSONPath query against the field still resolves to the raw string.
func parseJSONOrRaw(s string) interface{} {
	if s == "" {
		return s
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return s
	}
	return v
}

// ProviderHash extracts context.providerHash, which spec.md §6 requires
// every claim's context to carry as a 0x-prefixed 32-byte hex string.
func ProviderHash(claim *claimtypes.Claim) (string, bool) {
	ctx, ok := parseJSONOrRaw(claim.Context).(map[string]interface{})
	if !ok {
		return "", false
	}
	ph, ok := ctx["providerHash"].(string)
	return ph, ok
}
