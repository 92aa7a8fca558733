package abi

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const arraySuffix = "[]"

func isTuple(typ string) bool {
	return strings.HasPrefix(typ, "tuple")
}

func isArray(typ string) bool {
	return strings.HasSuffix(typ, arraySuffix)
}

// expandComponents renders the canonical encoding of a structured type's
// components, e.g. "(uint256,string)" or "(uint256,(address,bool)[])".
func expandComponents(components []Field) string {
	types := make([]string, 0, len(components))
	for _, c := range components {
		types = append(types, canonicalType(c))
	}
	return "(" + strings.Join(types, ",") + ")"
}

// canonicalType expands a tuple type and keeps its whole array suffix, so
// "tuple[2][]" becomes "(uint256,address)[2][]".
func canonicalType(f Field) string {
	if !isTuple(f.Type) {
		return f.Type
	}
	return expandComponents(f.Components) + strings.TrimPrefix(f.Type, "tuple")
}

// canonicalTypes returns the canonical type of every field in order, plus the
// tuple encodings keyed by field name.
func canonicalTypes(fields []Field) ([]string, map[string]string) {
	types := make([]string, 0, len(fields))
	var tuples map[string]string
	for _, f := range fields {
		typ := canonicalType(f)
		if isTuple(f.Type) {
			if tuples == nil {
				tuples = make(map[string]string)
			}
			tuples[f.Name] = typ
		}
		types = append(types, typ)
	}
	return types, tuples
}

func fieldNames(fields []Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

// CanonicalSignature renders name(type1,type2,...).
func CanonicalSignature(name string, types []string) string {
	return fmt.Sprintf("%s(%s)", name, strings.Join(types, ","))
}

// SignatureHash is the keccak256 digest of a canonical signature.
func SignatureHash(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// Selector is the hex encoding of the first four bytes of a signature hash.
func Selector(hash common.Hash) string {
	return hex.EncodeToString(hash[:4])
}
