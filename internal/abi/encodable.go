package abi

import (
	"fmt"
	"math/big"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// IsEncodable reports whether value can be encoded as the ABI type typ. typ is
// either an elementary type or a canonical structured encoding such as
// "(uint256,(address,bool)[])[]". Structured values are positional lists.
func IsEncodable(typ string, value any) bool {
	t, err := NewType(typ)
	if err != nil {
		return false
	}
	return encodable(t, value)
}

// NewType builds a go-ethereum ABI type from a canonical type string.
func NewType(typ string) (gethabi.Type, error) {
	arg, err := parseType("", typ)
	if err != nil {
		return gethabi.Type{}, err
	}
	return gethabi.NewType(arg.Type, "", arg.Components)
}

func parseType(name, typ string) (gethabi.ArgumentMarshaling, error) {
	typ = strings.TrimSpace(typ)
	if !strings.HasPrefix(typ, "(") {
		return gethabi.ArgumentMarshaling{Name: name, Type: normalizeElementary(typ)}, nil
	}

	end, err := closingParen(typ)
	if err != nil {
		return gethabi.ArgumentMarshaling{}, err
	}
	parts, err := splitTopLevel(typ[1:end])
	if err != nil {
		return gethabi.ArgumentMarshaling{}, err
	}

	components := make([]gethabi.ArgumentMarshaling, 0, len(parts))
	for i, part := range parts {
		c, err := parseType(fmt.Sprintf("field%d", i), part)
		if err != nil {
			return gethabi.ArgumentMarshaling{}, err
		}
		components = append(components, c)
	}
	return gethabi.ArgumentMarshaling{Name: name, Type: "tuple" + typ[end+1:], Components: components}, nil
}

func closingParen(typ string) (int, error) {
	depth := 0
	for i, r := range typ {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parentheses in type %q", typ)
}

func splitTopLevel(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in type %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:]), nil
}

// normalizeElementary rewrites the aliases go-ethereum does not parse.
func normalizeElementary(typ string) string {
	base, suffix := typ, ""
	if i := strings.Index(typ, "["); i >= 0 {
		base, suffix = typ[:i], typ[i:]
	}
	switch base {
	case "int":
		base = "int256"
	case "uint":
		base = "uint256"
	case "byte":
		base = "bytes1"
	}
	return base + suffix
}

func encodable(t gethabi.Type, value any) bool {
	switch t.T {
	case gethabi.IntTy:
		n, ok := toBigInt(value)
		return ok && fitsSigned(n, t.Size)
	case gethabi.UintTy:
		n, ok := toBigInt(value)
		return ok && fitsUnsigned(n, t.Size)
	case gethabi.BoolTy:
		_, ok := toBool(value)
		return ok
	case gethabi.StringTy:
		_, ok := value.(string)
		return ok
	case gethabi.AddressTy:
		switch v := value.(type) {
		case common.Address:
			return true
		case string:
			return IsAddress(v)
		}
		return false
	case gethabi.BytesTy:
		_, ok := toBytes(value)
		return ok
	case gethabi.FixedBytesTy:
		b, ok := toBytes(value)
		return ok && len(b) <= t.Size
	case gethabi.SliceTy:
		return encodableList(*t.Elem, value, -1)
	case gethabi.ArrayTy:
		return encodableList(*t.Elem, value, t.Size)
	case gethabi.TupleTy:
		values, ok := toList(value)
		if !ok || len(values) != len(t.TupleElems) {
			return false
		}
		for i, elem := range t.TupleElems {
			if !encodable(*elem, values[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func encodableList(elem gethabi.Type, value any, size int) bool {
	values, ok := toList(value)
	if !ok || (size >= 0 && len(values) != size) {
		return false
	}
	for _, v := range values {
		if !encodable(elem, v) {
			return false
		}
	}
	return true
}

func fitsUnsigned(n *big.Int, bits int) bool {
	if n.Sign() < 0 {
		return false
	}
	u, overflow := uint256.FromBig(n)
	return !overflow && u.BitLen() <= bits
}

func fitsSigned(n *big.Int, bits int) bool {
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	min := new(big.Int).Neg(limit)
	max := new(big.Int).Sub(limit, big.NewInt(1))
	return n.Cmp(min) >= 0 && n.Cmp(max) <= 0
}
