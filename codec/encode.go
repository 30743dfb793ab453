package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
)

// Encode writes values in schema order with no padding.
func Encode(s Schema, values []any) ([]byte, error) {
	if len(values) != len(s.Fields) {
		return nil, &Error{
			Kind:    KindInvalidValue,
			Record:  s.Name,
			Message: fmt.Sprintf("got %d values for %d fields", len(values), len(s.Fields)),
		}
	}
	out := make([]byte, 0, s.MinSize())
	for i, f := range s.Fields {
		if err := checkValue(s, f, values[i]); err != nil {
			return nil, err
		}
		out = appendValue(out, f, values[i])
	}
	return out, nil
}

// EncodeRecord encodes r with its own schema.
func EncodeRecord(r Record) ([]byte, error) { return Encode(r.Schema, r.Values) }

func invalid(s Schema, f Field, format string, args ...any) error {
	return &Error{Kind: KindInvalidValue, Record: s.Name, Field: f.Name, Message: fmt.Sprintf(format, args...)}
}

func checkValue(s Schema, f Field, v any) error {
	ok := false
	switch f.Kind {
	case U8:
		_, ok = v.(uint8)
	case Bool:
		_, ok = v.(bool)
	case U16:
		_, ok = v.(uint16)
	case U32:
		_, ok = v.(uint32)
	case U64:
		_, ok = v.(uint64)
	case I64:
		_, ok = v.(int64)
	case Fixed:
		b, isBytes := v.([]byte)
		if isBytes && len(b) != f.Size {
			return invalid(s, f, "fixed field needs %d bytes, got %d", f.Size, len(b))
		}
		ok = isBytes
	case Address:
		_, ok = v.(solana.PublicKey)
	case String:
		str, isString := v.(string)
		if isString {
			if uint64(len(str)) > math.MaxUint32 {
				return invalid(s, f, "string of %d bytes exceeds the u32 prefix", len(str))
			}
			if !utf8.ValidString(str) {
				return invalid(s, f, "string is not valid UTF-8")
			}
		}
		ok = isString
	case AddressVec:
		keys, isKeys := v.([]solana.PublicKey)
		if isKeys && uint64(len(keys)) > math.MaxUint32 {
			return invalid(s, f, "vector of %d elements exceeds the u32 prefix", len(keys))
		}
		ok = isKeys
	default:
		return invalid(s, f, "unknown kind %s", f.Kind)
	}
	if !ok {
		return invalid(s, f, "%s field cannot hold %T", f.Kind, v)
	}
	return nil
}

// appendValue assumes checkValue accepted v.
func appendValue(out []byte, f Field, v any) []byte {
	switch f.Kind {
	case U8:
		return append(out, v.(uint8))
	case Bool:
		if v.(bool) {
			return append(out, 1)
		}
		return append(out, 0)
	case U16:
		return binary.LittleEndian.AppendUint16(out, v.(uint16))
	case U32:
		return binary.LittleEndian.AppendUint32(out, v.(uint32))
	case U64:
		return binary.LittleEndian.AppendUint64(out, v.(uint64))
	case I64:
		return binary.LittleEndian.AppendUint64(out, uint64(v.(int64)))
	case Fixed:
		return append(out, v.([]byte)...)
	case Address:
		k := v.(solana.PublicKey)
		return append(out, k[:]...)
	case String:
		str := v.(string)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(str)))
		return append(out, str...)
	case AddressVec:
		keys := v.([]solana.PublicKey)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(keys)))
		for _, k := range keys {
			out = append(out, k[:]...)
		}
		return out
	}
	return out
}
