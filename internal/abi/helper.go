package abi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// The Check functions coerce raw, typically string valued, arguments into the
// representation their declared type needs. Failures are recorded in errs and
// flagged, and a placeholder value is still returned so that the caller can
// keep validating the remaining parameters. Array variants never modify the
// slice they are given.

// CheckInt parses an integer argument.
func CheckInt(value any, param, typ string, errs *ConversionErrors) (*big.Int, bool) {
	n, ok := toBigInt(value)
	if !ok {
		errs.Set(param, intMessage(typ))
		return new(big.Int), true
	}
	return n, false
}

// CheckBytes decodes 0x prefixed hex, or takes the UTF-8 bytes of any other
// string.
func CheckBytes(value any, param, typ string, errs *ConversionErrors) ([]byte, bool) {
	b, ok := toBytes(value)
	if !ok {
		errs.Set(param, bytesMessage(typ))
		return []byte{}, true
	}
	return b, false
}

// CheckAddress requires a 0x prefixed value that is a valid, and where mixed
// case correctly checksummed, address.
func CheckAddress(value any, param, typ string, errs *ConversionErrors) (string, bool) {
	addr := fmt.Sprint(value)
	if msg, ok := addressMessage(addr); !ok {
		errs.Set(param, msg)
		return "0x", true
	}
	return addr, false
}

func CheckString(value any, param, typ string, errs *ConversionErrors) (string, bool) {
	s, ok := toString(value)
	if !ok {
		errs.Set(param, fmt.Sprintf("Expected type: %s. Supplied argument not a valid string", typ))
		return "", true
	}
	return s, false
}

// CheckBool accepts true/1 and false/0, case-insensitively, as well as native
// booleans.
func CheckBool(value any, param, typ string, errs *ConversionErrors) (bool, bool) {
	b, ok := toBool(value)
	if !ok {
		errs.Set(param, boolMessage)
		return false, true
	}
	return b, false
}

// CheckTuple checks a structured (or otherwise composite) argument against the
// full type string, e.g. "(uint256,string)[]".
func CheckTuple(value any, param, typ string, errs *ConversionErrors) (any, bool) {
	if !IsEncodable(typ, value) {
		errs.Set(param, fmt.Sprintf("Expected type: %s. Supplied argument not encodable as %s", typ, typ))
		return value, true
	}
	return value, false
}

func CheckIntArray(values []any, param, baseType string, errs *ConversionErrors) ([]*big.Int, bool) {
	failed := false
	ret := make([]*big.Int, len(values))
	for i, v := range values {
		n, ok := toBigInt(v)
		if !ok {
			errs.Append(param, i, fmt.Sprintf("Expected type: %s. One or more supplied argument is not a valid integer", baseType))
			failed = true
			n = new(big.Int)
		}
		ret[i] = n
	}
	return ret, failed
}

func CheckBytesArray(values []any, param, baseType string, errs *ConversionErrors) ([][]byte, bool) {
	failed := false
	ret := make([][]byte, len(values))
	for i, v := range values {
		b, ok := toBytes(v)
		if !ok {
			errs.Append(param, i, bytesMessage(baseType))
			failed = true
			b = []byte{}
		}
		ret[i] = b
	}
	return ret, failed
}

func CheckAddressArray(values []any, param, baseType string, errs *ConversionErrors) ([]string, bool) {
	failed := false
	ret := make([]string, len(values))
	for i, v := range values {
		addr := fmt.Sprint(v)
		ret[i] = "0x"
		if msg, ok := addressMessage(addr); !ok {
			errs.Append(param, i, msg)
			failed = true
			continue
		}
		ret[i] = addr
	}
	return ret, failed
}

func CheckStringArray(values []any, param, baseType string, errs *ConversionErrors) ([]string, bool) {
	failed := false
	ret := make([]string, len(values))
	for i, v := range values {
		s, ok := toString(v)
		if !ok {
			errs.Append(param, i, fmt.Sprintf("Expected type: %s. Supplied argument not a valid string", baseType))
			failed = true
		}
		ret[i] = s
	}
	return ret, failed
}

func CheckBoolArray(values []any, param, baseType string, errs *ConversionErrors) ([]bool, bool) {
	failed := false
	ret := make([]bool, len(values))
	for i, v := range values {
		b, ok := toBool(v)
		if !ok {
			errs.Append(param, i, boolMessage)
			failed = true
		}
		ret[i] = b
	}
	return ret, failed
}

// Coerce dispatches value to the Check function matching typ. Types the
// elementary checks do not cover fall back to the generic encodability check.
func Coerce(param, typ string, value any, errs *ConversionErrors) (any, bool) {
	switch {
	case strings.HasPrefix(typ, "("):
		return CheckTuple(value, param, typ, errs)
	case isArray(typ):
		return coerceArray(param, typ, value, errs)
	case isIntType(typ):
		return CheckInt(value, param, typ, errs)
	case isByteType(typ):
		return CheckBytes(value, param, typ, errs)
	case typ == "address":
		return CheckAddress(value, param, typ, errs)
	case typ == "string":
		return CheckString(value, param, typ, errs)
	case typ == "bool":
		return CheckBool(value, param, typ, errs)
	default:
		return CheckTuple(value, param, typ, errs)
	}
}

func coerceArray(param, typ string, value any, errs *ConversionErrors) (any, bool) {
	values, ok := toList(value)
	if !ok {
		errs.Set(param, fmt.Sprintf("Expected type: %s. Supplied argument not a valid array", typ))
		return []any{}, true
	}

	base := strings.TrimSuffix(typ, arraySuffix)
	switch {
	case isIntType(base):
		return CheckIntArray(values, param, base, errs)
	case isByteType(base):
		return CheckBytesArray(values, param, base, errs)
	case base == "address":
		return CheckAddressArray(values, param, base, errs)
	case base == "string":
		return CheckStringArray(values, param, base, errs)
	case base == "bool":
		return CheckBoolArray(values, param, base, errs)
	default:
		return CheckTuple(values, param, typ, errs)
	}
}

const boolMessage = "Expected type: bool. Supplied argument not a boolean."

func intMessage(typ string) string {
	return fmt.Sprintf("Expected type: %s. Supplied argument not a valid integer", typ)
}

func bytesMessage(typ string) string {
	return fmt.Sprintf("Expected type: %s. Supplied argument not a valid byte object.", typ)
}

// addressMessage runs the two address checks in order: 0x prefix first, then
// address validity.
func addressMessage(addr string) (string, bool) {
	if !has0xPrefix(addr) {
		return fmt.Sprintf("Expected type: address. Supplied argument %s not a hexadecimal value", addr), false
	}
	if !IsAddress(addr) {
		return fmt.Sprintf("Expected type: address. Supplied argument %s is not a valid Ethereum address", addr), false
	}
	return "", true
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// IsAddress reports whether s is a 20 byte hex address. All lower or all upper
// case hex is accepted as is; mixed case must match the EIP-55 checksum.
func IsAddress(s string) bool {
	if !common.IsHexAddress(s) {
		return false
	}
	body := s
	if has0xPrefix(body) {
		body = body[2:]
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return body == common.HexToAddress(s).Hex()[2:]
}

func toBigInt(value any) (*big.Int, bool) {
	switch v := value.(type) {
	case string:
		return new(big.Int).SetString(strings.TrimSpace(v), 10)
	case json.Number:
		return new(big.Int).SetString(v.String(), 10)
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return new(big.Int).Set(v), true
	case big.Int:
		return new(big.Int).Set(&v), true
	case int:
		return big.NewInt(int64(v)), true
	case int8:
		return big.NewInt(int64(v)), true
	case int16:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case float32:
		return floatToBigInt(float64(v))
	case float64:
		return floatToBigInt(v)
	default:
		return nil, false
	}
}

// floatToBigInt truncates toward zero.
func floatToBigInt(f float64) (*big.Int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	n, _ := big.NewFloat(f).Int(nil)
	return n, true
}

func toBytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case string:
		if has0xPrefix(v) {
			b, err := hex.DecodeString(v[2:])
			if err != nil {
				return nil, false
			}
			return b, true
		}
		return []byte(v), true
	case []byte:
		return append([]byte{}, v...), true
	default:
		return nil, false
	}
}

func toString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		if !utf8.Valid(v) {
			return "", false
		}
		return string(v), true
	default:
		return fmt.Sprint(v), true
	}
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch {
		case strings.ToLower(v) == "true" || v == "1":
			return true, true
		case strings.ToLower(v) == "false" || v == "0":
			return false, true
		}
	}
	return false, false
}

// toList accepts a slice, or a JSON array literal as typed on a command line.
func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case string:
		var out []any
		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}
