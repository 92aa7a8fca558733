package abi

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/slices"
)

// Result codes of IsValid and IsValidParamDict.
const (
	CodeSuccess          = 1
	CodeUnknownMethod    = -1
	CodeArgumentMismatch = -2
)

// IsValid checks that method exists and that args matches its arity. No type
// level checking happens here.
func (r *Registry) IsValid(method string, args []any) (bool, int, string) {
	return r.checkArity(method, len(args))
}

// IsValidParamDict is IsValid for named arguments.
func (r *Registry) IsValidParamDict(method string, params map[string]any) (bool, int, string) {
	return r.checkArity(method, len(params))
}

func (r *Registry) checkArity(method string, n int) (bool, int, string) {
	rec, ok := r.Function(method)
	if !ok {
		return false, CodeUnknownMethod, fmt.Sprintf("Invalid method: %s", method)
	}
	if len(rec.ParamNames) != n {
		return false, CodeArgumentMismatch, "Argument list mismatch"
	}
	return true, CodeSuccess, "Success"
}

var (
	allowedInts  = allowedIntTypes()
	allowedBytes = allowedByteTypes()
)

// AllowedIntTypes lists int8..int256, uint8..uint256 and the bare int/uint.
func AllowedIntTypes() []string {
	return append([]string(nil), allowedInts...)
}

// AllowedByteTypes lists bytes1..bytes32, byte and bytes.
func AllowedByteTypes() []string {
	return append([]string(nil), allowedBytes...)
}

func allowedIntTypes() []string {
	ints := make([]string, 0, 33)
	uints := make([]string, 0, 33)
	for i := 1; i <= 32; i++ {
		ints = append(ints, "int"+strconv.Itoa(i*8))
		uints = append(uints, "uint"+strconv.Itoa(i*8))
	}
	ints = append(ints, "int")
	uints = append(uints, "uint")
	return append(ints, uints...)
}

func allowedByteTypes() []string {
	types := make([]string, 0, 34)
	for i := 1; i <= 32; i++ {
		types = append(types, "bytes"+strconv.Itoa(i))
	}
	return append(types, "byte", "bytes")
}

func isIntType(typ string) bool  { return slices.Contains(allowedInts, typ) }
func isByteType(typ string) bool { return slices.Contains(allowedBytes, typ) }

// TypeCategory maps a Solidity type onto the category used by the gateway's
// OpenAPI descriptions.
func TypeCategory(solType string) string {
	switch {
	case isIntType(solType):
		return "integer"
	case isByteType(solType), solType == "address", solType == "string":
		return "string"
	case solType == "bool":
		return "boolean"
	case isArray(solType):
		return "array"
	default:
		return " "
	}
}
