// Copyright 2025 Certen Protocol
//
// Package registry implements C1, the Transform Registry: a closed,
// fixed catalogue of pure unary/contextual operators (spec.md §4.1).
// Every function here is pure — no I/O, no hidden state, no clock reads
// beyond parsing a timestamp value the caller already holds. The
// registry is a read-only static table, implemented as a type switch
// over claimtypes.Op rather than a dispatch map, per spec.md §9's note
// that no dispatch table is needed for a closed enum.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/claim-processor/pkg/claimtypes"
	"github.com/certen/claim-processor/pkg/condition"
	"github.com/certen/claim-processor/pkg/scalar"
)

// Fault is an OpFailure (spec.md §7): an operator rejected its input.
type Fault struct {
	Op      claimtypes.OpName
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("op %q failed: %s", f.Op, f.Message)
}

func fail(op claimtypes.OpName, format string, args ...interface{}) error {
	return &Fault{Op: op, Message: fmt.Sprintf(format, args...)}
}

// Apply runs a single (non-conditionalOn) op against value, with ctx
// holding all extracted and transformed variables resolved so far in
// the enclosing computation (spec.md §4.4 step 3). conditionalOn is not
// handled here: it does not produce a value, it produces a list of ops
// to splice into the pipeline, which is the executor's job (C4).
func Apply(op claimtypes.Op, value scalar.Scalar, ctx map[string]scalar.Scalar) (scalar.Scalar, error) {
	switch op.Name {
	case claimtypes.OpToLowerCase:
		return scalar.FromString(strings.ToLower(scalar.SafeToString(value))), nil
	case claimtypes.OpToUpperCase:
		return scalar.FromString(strings.ToUpper(scalar.SafeToString(value))), nil
	case claimtypes.OpTrim:
		return scalar.FromString(strings.TrimSpace(scalar.SafeToString(value))), nil
	case claimtypes.OpSubstring:
		return substring(op, value)
	case claimtypes.OpReplace:
		return replace(op, value)
	case claimtypes.OpMath:
		return mathOp(op, value)
	case claimtypes.OpKeccak256:
		return scalar.FromString(hashHex(keccak256Bytes, value)), nil
	case claimtypes.OpSha256:
		return scalar.FromString(hashHex(sha256Bytes, value)), nil
	case claimtypes.OpParseTimestamp:
		return parseTimestamp(op, value)
	case claimtypes.OpAssertEquals:
		if !scalar.Equal(value, op.Expected) {
			return scalar.Null(), fail(op.Name, assertMessage(op.Message, "value did not equal expected"))
		}
		return value, nil
	case claimtypes.OpAssertOneOf:
		if !op.HasValues {
			return scalar.Null(), fail(op.Name, "assertOneOf requires a non-empty values list")
		}
		for _, candidate := range op.Values {
			if scalar.Equal(value, candidate) {
				return value, nil
			}
		}
		return scalar.Null(), fail(op.Name, assertMessage(op.Message, "value not in allowed set"))
	case claimtypes.OpValidate:
		ok, err := condition.Eval(value, op.Condition)
		if err != nil {
			return scalar.Null(), fail(op.Name, "%s", err)
		}
		if !ok {
			return scalar.Null(), fail(op.Name, assertMessage(op.Message, "condition not satisfied"))
		}
		return value, nil
	case claimtypes.OpConcat:
		return concat(op, value)
	case claimtypes.OpTemplate:
		return scalar.FromString(strings.ReplaceAll(op.TemplatePattern, "${value}", scalar.SafeToString(value))), nil
	case claimtypes.OpConstant:
		if !op.HasValue {
			return scalar.Null(), fail(op.Name, "constant requires a value")
		}
		return scalar.FromString(scalar.SafeToString(op.Value)), nil
	default:
		return scalar.Null(), fail(op.Name, "unknown operator")
	}
}

func assertMessage(custom, fallback string) string {
	if custom != "" {
		return custom
	}
	return fallback
}

func substring(op claimtypes.Op, value scalar.Scalar) (scalar.Scalar, error) {
	if op.Start < 0 {
		return scalar.Null(), fail(op.Name, "start must be non-negative")
	}
	s := scalar.SafeToString(value)
	runes := []rune(s)
	start, end := op.Start, len(runes)
	if op.End != nil {
		end = *op.End
	}
	// spec.md §4.1/§9: end < start follows the source's swap semantics.
	if end < start {
		start, end = end, start
	}
	if start < 0 {
		start = 0
	}
	if start >= len(runes) {
		return scalar.FromString(""), nil
	}
	if end > len(runes) {
		end = len(runes)
	}
	if end < start {
		return scalar.FromString(""), nil
	}
	return scalar.FromString(string(runes[start:end])), nil
}

func replace(op claimtypes.Op, value scalar.Scalar) (scalar.Scalar, error) {
	if op.Pattern == "" {
		return scalar.Null(), fail(op.Name, "pattern must not be empty")
	}
	s := scalar.SafeToString(value)

	pattern := op.Pattern
	isRegex := false
	if strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) >= 2 {
		pattern = pattern[1 : len(pattern)-1]
		isRegex = true
	} else if len(pattern) > 0 && strings.ContainsRune(`[\^$.|?*+()`, rune(pattern[0])) {
		isRegex = true
	}

	var result string
	if isRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return scalar.Null(), fail(op.Name, "invalid regex %q: %s", pattern, err)
		}
		result = re.ReplaceAllString(s, op.Replacement)
	} else if op.Global {
		result = strings.ReplaceAll(s, pattern, op.Replacement)
	} else {
		result = strings.Replace(s, pattern, op.Replacement, 1)
	}

	if len(result) > maxStringLength {
		return scalar.Null(), fail(op.Name, "result exceeds maximum intermediate string length")
	}
	return scalar.FromString(result), nil
}

// maxStringLength mirrors spec.md §5's MAX_STRING_LENGTH; the registry
// enforces it locally for replace (the one op that can blow up input
// size via global substitution), the executor enforces it globally
// after every op as a defense in depth.
const maxStringLength = 100_000

var mathExprRe = regexp.MustCompile(`^\s*([+\-*/])\s*(-?\d+(?:\.\d+)?)\s*$`)

func mathOp(op claimtypes.Op, value scalar.Scalar) (scalar.Scalar, error) {
	m := mathExprRe.FindStringSubmatch(op.Expression)
	if m == nil {
		return scalar.Null(), fail(op.Name, "invalid expression %q", op.Expression)
	}
	operator, operandStr := m[1], m[2]
	operand, err := strconv.ParseFloat(operandStr, 64)
	if err != nil {
		return scalar.Null(), fail(op.Name, "invalid operand %q", operandStr)
	}
	subject, ok := value.Number()
	if !ok {
		return scalar.Null(), fail(op.Name, "subject is not numeric")
	}

	var result float64
	switch operator {
	case "+":
		result = subject + operand
	case "-":
		result = subject - operand
	case "*":
		result = subject * operand
	case "/":
		if operand == 0 {
			return scalar.Null(), fail(op.Name, "division by zero")
		}
		result = subject / operand
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return scalar.Null(), fail(op.Name, "result is not finite")
	}
	const maxSafeInt = 1<<53 - 1
	if math.Abs(result) > maxSafeInt {
		return scalar.Null(), fail(op.Name, "result exceeds safe integer range")
	}

	return scalar.FromString(formatDecimal(result)), nil
}

// formatDecimal renders a float as a decimal string without unnecessary
// trailing zeroes, per spec.md §4.1's math op contract.
func formatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func keccak256Bytes(b []byte) []byte {
	return crypto.Keccak256(b)
}

func sha256Bytes(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

func hashHex(hashFn func([]byte) []byte, value scalar.Scalar) string {
	var data []byte
	if value.Kind == scalar.KindBytes {
		data = value.Bytes
	} else {
		data = []byte(scalar.SafeToString(value))
	}
	return "0x" + hex.EncodeToString(hashFn(data))
}

func concat(op claimtypes.Op, value scalar.Scalar) (scalar.Scalar, error) {
	if value.Kind != scalar.KindSeq {
		return scalar.Null(), fail(op.Name, "concat requires a sequence input")
	}
	var b strings.Builder
	for _, e := range value.Seq {
		b.WriteString(scalar.SafeToString(e))
	}
	return scalar.FromString(b.String()), nil
}

// --- timestamp parsing -----------------------------------------------------

var (
	isoWithFractionRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z?$`)
	dateTimeSpaceRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	dateOnlyRe        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	usDateRe          = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	integerRe         = regexp.MustCompile(`^-?\d+$`)
)

func parseTimestamp(op claimtypes.Op, value scalar.Scalar) (scalar.Scalar, error) {
	s := scalar.SafeToString(value)
	if s == "" {
		return scalar.Null(), fail(op.Name, "empty or null input")
	}

	if op.Format != "" {
		re, err := regexp.Compile(op.Format)
		if err != nil {
			return scalar.Null(), fail(op.Name, "invalid format regex %q: %s", op.Format, err)
		}
		if !re.MatchString(s) {
			return scalar.Null(), fail(op.Name, "input %q does not match format %q", s, op.Format)
		}
	}

	var ms int64

	switch {
	case integerRe.MatchString(s):
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return scalar.Null(), fail(op.Name, "invalid integer timestamp %q", s)
		}
		if n > 10_000_000_000 {
			ms = n
		} else {
			ms = n * 1000
		}
	case isoWithFractionRe.MatchString(s):
		t, err := parseISO(s)
		if err != nil {
			return scalar.Null(), fail(op.Name, "invalid ISO8601 timestamp %q: %s", s, err)
		}
		ms = t.UnixMilli()
	case dateTimeSpaceRe.MatchString(s):
		t, err := time.Parse("2006-01-02T15:04:05", strings.Replace(s, " ", "T", 1))
		if err != nil {
			return scalar.Null(), fail(op.Name, "invalid timestamp %q: %s", s, err)
		}
		ms = t.UTC().UnixMilli()
	case dateOnlyRe.MatchString(s):
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return scalar.Null(), fail(op.Name, "invalid date %q: %s", s, err)
		}
		ms = t.UTC().UnixMilli()
	case usDateRe.MatchString(s):
		t, err := time.Parse("1/2/2006", s)
		if err != nil {
			return scalar.Null(), fail(op.Name, "invalid US date %q: %s", s, err)
		}
		ms = t.UTC().UnixMilli()
	default:
		return scalar.Null(), fail(op.Name, "unrecognised timestamp format %q", s)
	}

	return scalar.FromString(strconv.FormatInt(ms, 10)), nil
}

func parseISO(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}
