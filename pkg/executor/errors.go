// Copyright 2025 Certen Protocol
//
// Sentinel errors for executor operations (C4), following the teacher's
// sentinel-error convention (pkg/execution/errors.go): each failure mode
// in spec.md §7 gets its own wrapped sentinel so callers can
// errors.Is/errors.As against a stable identity instead of matching on
// message text.
package executor

import "errors"

var (
	// ErrExtractMissing is returned when a JSONPath produced no result
	// for a required variable.
	ErrExtractMissing = errors.New("value extraction failed")

	// ErrExtractOverflow is returned when a JSONPath returned more than
	// MAX_JSONPATH_RESULTS matches.
	ErrExtractOverflow = errors.New("jsonpath result set too large")

	// ErrTransformInputUndefined is returned when an input/inputs name
	// resolved to nothing at runtime.
	ErrTransformInputUndefined = errors.New("transform input undefined")

	// ErrOutputUndefined is returned when an output name did not
	// resolve to a defined value at assembly time.
	ErrOutputUndefined = errors.New("output value undefined")

	// ErrResourceExceeded is returned when a time or string-length bound
	// is exceeded.
	ErrResourceExceeded = errors.New("resource bound exceeded")

	// ErrTooManyOutputs is returned when the assembled values exceed
	// MAX_OUTPUT_VALUES.
	ErrTooManyOutputs = errors.New("too many output values")

	// ErrOpFailure is returned when a registry operator rejects its
	// input (bad math, regex, assertion, timestamp, nesting violation,
	// missing context field, etc.).
	ErrOpFailure = errors.New("operator failed")

	// ErrMissingProviderHash is returned when a claim's context does not
	// carry a providerHash field, which spec.md §6 requires.
	ErrMissingProviderHash = errors.New("claim context missing providerHash")
)
