// Copyright 2025 Certen Protocol
//
// Package abiencode implements C5: processor/provider identity hashing
// and EVM ABI encoding of a processor's output tuple (spec.md §4.5,
// §6). It is built directly on go-ethereum's accounts/abi package,
// the same dependency the teacher already carries for its on-chain
// submission path, entered at its abi.NewType/abi.Arguments.Pack
// surface instead of the teacher's full contract-ABI-JSON surface
// since there is no fixed contract ABI here, only a dynamic tuple
// shape driven by each processor's declared output types.
package abiencode

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/claim-processor/pkg/canonical"
)

// Fault is an EncodingFailure (spec.md §7): an output value could not
// be coerced into its declared ABI type.
type Fault struct {
	Field   string
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("abiencode: %s: %s", f.Field, f.Message)
}

func fail(field, format string, args ...interface{}) error {
	return &Fault{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProcessorProviderHash computes keccak256(providerHash || "\n" ||
// processorHash), spec.md §4.5 steps 1-3, where processorHash is the
// keccak256 of the processor's canonical JSON form.
func ProcessorProviderHash(providerHashHex string, processorJSON []byte) ([32]byte, error) {
	canonicalProcessor, err := canonical.Marshal(processorJSON)
	if err != nil {
		return [32]byte{}, fmt.Errorf("abiencode: canonicalize processor: %w", err)
	}
	processorHash := crypto.Keccak256(canonicalProcessor)

	providerHashHex = strings.ToLower(providerHashHex)
	processorHashHex := "0x" + hex.EncodeToString(processorHash)

	message := []byte(providerHashHex + "\n" + processorHashHex)
	var out [32]byte
	copy(out[:], crypto.Keccak256(message))
	return out, nil
}

// Encode builds the ABI tuple (bytes32 processorProviderHash,
// ...outputs) and returns its head/tail encoding plus the keccak256 of
// that encoding, spec.md §4.5 steps 1'-4' in the "Signer Envelope"
// section. outputTypes[i] must be one of the EVM type tags spec.md §6 names;
// values[i] is the string form of the corresponding output.
func Encode(processorProviderHash [32]byte, outputTypes []string, values []string) (encoded []byte, messageHash [32]byte, err error) {
	if len(outputTypes) != len(values) {
		return nil, [32]byte{}, fail("", "type/value count mismatch: %d types, %d values", len(outputTypes), len(values))
	}

	args := make(abi.Arguments, 0, len(outputTypes)+1)
	packed := make([]interface{}, 0, len(outputTypes)+1)

	bytes32Type, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("abiencode: bytes32 type: %w", err)
	}
	args = append(args, abi.Argument{Type: bytes32Type})
	packed = append(packed, processorProviderHash)

	for i, typeTag := range outputTypes {
		t, err := abi.NewType(typeTag, "", nil)
		if err != nil {
			return nil, [32]byte{}, fail(fmt.Sprintf("outputs[%d]", i), "unrecognised ABI type %q: %s", typeTag, err)
		}
		coerced, err := coerce(typeTag, values[i])
		if err != nil {
			return nil, [32]byte{}, fail(fmt.Sprintf("outputs[%d]", i), "%s", err)
		}
		args = append(args, abi.Argument{Type: t})
		packed = append(packed, coerced)
	}

	encoded, err = args.Pack(packed...)
	if err != nil {
		return nil, [32]byte{}, fail("", "abi pack: %s", err)
	}

	copy(messageHash[:], crypto.Keccak256(encoded))
	return encoded, messageHash, nil
}

var (
	uintTypeRe = regexp.MustCompile(`^uint(\d+)$`)
	intTypeRe  = regexp.MustCompile(`^int(\d+)$`)
	bytesNRe   = regexp.MustCompile(`^bytes(\d+)$`)
	arrayRe    = regexp.MustCompile(`^(.+)\[\]$`)
)

// coerce converts a string output value into the Go value
// abi.Arguments.Pack expects for typeTag, per spec.md §4.5's coercion
// table: address, bool, uintN/intN, bytesN/bytes, string, T[].
func coerce(typeTag, value string) (interface{}, error) {
	if m := arrayRe.FindStringSubmatch(typeTag); m != nil {
		return coerceArray(m[1], value)
	}

	switch {
	case typeTag == "address":
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid address %q", value)
		}
		return common.HexToAddress(value), nil
	case typeTag == "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", value)
		}
		return b, nil
	case typeTag == "string":
		return value, nil
	case typeTag == "bytes":
		return coerceBytes(value, 0)
	case uintTypeRe.MatchString(typeTag):
		return coerceUint(typeTag, value)
	case intTypeRe.MatchString(typeTag):
		return coerceInt(typeTag, value)
	case bytesNRe.MatchString(typeTag):
		m := bytesNRe.FindStringSubmatch(typeTag)
		n, _ := strconv.Atoi(m[1])
		return coerceBytes(value, n)
	default:
		return nil, fmt.Errorf("unrecognised ABI type %q", typeTag)
	}
}

// coerceArray parses value as a JSON array and recursively coerces each
// element to elemType (spec.md §4.5's coercion table requires T[] to be
// handled "recursive"ly, including T[][]). The result is built via
// reflection so its concrete element type (common.Address, *big.Int,
// [N]byte, ...) matches what abi.Arguments.Pack expects for elemType.
func coerceArray(elemType, value string) (interface{}, error) {
	elemABIType, err := abi.NewType(elemType, "", nil)
	if err != nil {
		return nil, fmt.Errorf("array element type %q: %s", elemType, err)
	}

	var rawElems []json.RawMessage
	if err := json.Unmarshal([]byte(value), &rawElems); err != nil {
		return nil, fmt.Errorf("invalid array value %q: %s", value, err)
	}

	elemGoType := elemABIType.GetType()
	out := reflect.MakeSlice(reflect.SliceOf(elemGoType), len(rawElems), len(rawElems))
	for i, raw := range rawElems {
		elemStr, err := arrayElementString(raw)
		if err != nil {
			return nil, fmt.Errorf("array element %d: %s", i, err)
		}
		coerced, err := coerce(elemType, elemStr)
		if err != nil {
			return nil, fmt.Errorf("array element %d: %s", i, err)
		}
		cv := reflect.ValueOf(coerced)
		if !cv.Type().AssignableTo(elemGoType) {
			return nil, fmt.Errorf("array element %d: coerced type %s does not match expected %s", i, cv.Type(), elemGoType)
		}
		out.Index(i).Set(cv)
	}
	return out.Interface(), nil
}

// arrayElementString renders one decoded JSON array element back into
// the plain string form coerce() expects, so a nested value (string,
// number, bool, or a further JSON array for T[][]) reuses the same
// scalar coercion path as a top-level output value.
func arrayElementString(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "", fmt.Errorf("empty element")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return trimmed, nil
}

func coerceBytes(value string, exactLen int) ([]byte, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q", value)
	}
	if exactLen > 0 && len(b) != exactLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", exactLen, len(b))
	}
	if exactLen > 0 {
		var fixed [32]byte
		copy(fixed[:], b)
		return fixedBytes(fixed, exactLen), nil
	}
	return b, nil
}

// fixedBytes returns a reflect-friendly [N]byte value sized to n,
// which abi.Arguments.Pack requires for bytesN types. Supporting the
// full bytes1..bytes32 family with one function avoids 32 near-
// identical case arms.
func fixedBytes(src [32]byte, n int) interface{} {
	switch n {
	case 1:
		var a [1]byte
		copy(a[:], src[:])
		return a
	case 2:
		var a [2]byte
		copy(a[:], src[:])
		return a
	case 4:
		var a [4]byte
		copy(a[:], src[:])
		return a
	case 8:
		var a [8]byte
		copy(a[:], src[:])
		return a
	case 16:
		var a [16]byte
		copy(a[:], src[:])
		return a
	case 20:
		var a [20]byte
		copy(a[:], src[:])
		return a
	case 32:
		return src
	default:
		// Uncommon widths: build the [n]byte array via reflection.
		arr := reflect.New(reflect.ArrayOf(n, reflect.TypeOf(byte(0)))).Elem()
		reflect.Copy(arr, reflect.ValueOf(src[:n]))
		return arr.Interface()
	}
}

func coerceUint(typeTag, value string) (interface{}, error) {
	bits, _ := strconv.Atoi(uintTypeRe.FindStringSubmatch(typeTag)[1])
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s value %q", typeTag, value)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%s value %q must be non-negative", typeTag, value)
	}
	// go-ethereum's abi maps only the 8/16/32/64-bit widths to native
	// Go integers; every other width is packed from a *big.Int.
	if bits == 8 || bits == 16 || bits == 32 || bits == 64 {
		return sizedUint(n.Uint64(), bits), nil
	}
	return n, nil
}

func sizedUint(v uint64, bits int) interface{} {
	switch {
	case bits <= 8:
		return uint8(v)
	case bits <= 16:
		return uint16(v)
	case bits <= 32:
		return uint32(v)
	default:
		return v
	}
}

func coerceInt(typeTag, value string) (interface{}, error) {
	bits, _ := strconv.Atoi(intTypeRe.FindStringSubmatch(typeTag)[1])
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s value %q", typeTag, value)
	}
	if bits == 8 || bits == 16 || bits == 32 || bits == 64 {
		return sizedInt(n.Int64(), bits), nil
	}
	return n, nil
}

func sizedInt(v int64, bits int) interface{} {
	switch {
	case bits <= 8:
		return int8(v)
	case bits <= 16:
		return int16(v)
	case bits <= 32:
		return int32(v)
	default:
		return v
	}
}

// Verify recovers the signer address from a 65-byte (r,s,v) signature
// over messageHash and reports whether it matches expectedAddress.
// personalPrefix must match the value the signer used (pkg/signer's
// Sign wraps the digest in accounts.TextHash when true, spec.md §9
// open question 2) — recovering against the wrong digest form silently
// yields a mismatched address rather than an error. Supplemented per
// spec.md §8 S5's tamper-evidence test: a helper callers can use to
// confirm a signature binds to the attestor key without needing an
// on-chain verifier.
func Verify(messageHash [32]byte, signature []byte, expectedAddress common.Address, personalPrefix bool) (bool, error) {
	if len(signature) != 65 {
		return false, fmt.Errorf("abiencode: signature must be 65 bytes, got %d", len(signature))
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest := messageHash[:]
	if personalPrefix {
		digest = accounts.TextHash(messageHash[:])
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false, fmt.Errorf("abiencode: recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub) == expectedAddress, nil
}
