// Copyright 2025 Certen Protocol
package executor

import (
	"github.com/PaesslerAG/jsonpath"
)

// queryJSONPath runs path against root and normalizes PaesslerAG/jsonpath's
// result shape: a query that matched several nodes (wildcards, filters,
// recursive descent) comes back as []interface{}; anything else comes
// back as the single matched value. spec.md §4.4 step 2 wants "first
// result wins" semantics plus the match count for the MAX_JSONPATH_RESULTS
// guard (I5), so this collapses both shapes to (results, count).
func queryJSONPath(path string, root interface{}) ([]interface{}, error) {
	v, err := jsonpath.Get(path, root)
	if err != nil {
		return nil, err
	}
	if seq, ok := v.([]interface{}); ok {
		return seq, nil
	}
	return []interface{}{v}, nil
}
