package codec

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
)

// Decode walks s over buf. Every read is bounds-checked before it happens;
// a short buffer yields a TruncatedRecord error, never a panic. Bytes after the
// last field are allowed (accounts are allocated at their maximum size) and
// the number of bytes actually used is returned as consumed.
func Decode(s Schema, buf []byte) (rec Record, consumed int, err error) {
	c := cursor{schema: s.Name, buf: buf}
	values := make([]any, 0, len(s.Fields))
	for _, f := range s.Fields {
		c.field = f.Name
		v, err := c.read(f)
		if err != nil {
			return Record{}, c.off, err
		}
		values = append(values, v)
	}
	return Record{Schema: s, Values: values}, c.off, nil
}

// DecodeExact is Decode that also rejects trailing bytes.
func DecodeExact(s Schema, buf []byte) (Record, error) {
	rec, n, err := Decode(s, buf)
	if err != nil {
		return Record{}, err
	}
	if n != len(buf) {
		return Record{}, &Error{
			Kind:    KindMalformed,
			Record:  s.Name,
			Offset:  n,
			Message: fmt.Sprintf("%d trailing bytes", len(buf)-n),
		}
	}
	return rec, nil
}

type cursor struct {
	schema string
	field  string
	buf    []byte
	off    int
}

func (c *cursor) remaining() int { return len(c.buf) - c.off }

// need fails unless n more bytes are available. n is compared against the
// remaining length so the check cannot overflow.
func (c *cursor) need(n uint64) error {
	if n > uint64(c.remaining()) {
		need := int(^uint(0) >> 1)
		if n < uint64(need) {
			need = int(n)
		}
		return &Error{
			Kind:   KindTruncated,
			Record: c.schema,
			Field:  c.field,
			Offset: c.off,
			Need:   need,
			Have:   c.remaining(),
		}
	}
	return nil
}

func (c *cursor) take(n int) ([]byte, error) {
	if err := c.need(uint64(n)); err != nil {
		return nil, err
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) malformed(format string, args ...any) error {
	return &Error{
		Kind:    KindMalformed,
		Record:  c.schema,
		Field:   c.field,
		Offset:  c.off,
		Message: fmt.Sprintf(format, args...),
	}
}

func (c *cursor) read(f Field) (any, error) {
	switch f.Kind {
	case U8:
		b, err := c.take(1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case Bool:
		b, err := c.take(1)
		if err != nil {
			return nil, err
		}
		switch b[0] {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			c.off--
			return nil, c.malformed("invalid bool byte 0x%02x", b[0])
		}
	case U16:
		b, err := c.take(2)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(b), nil
	case U32:
		b, err := c.take(4)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint32(b), nil
	case U64:
		b, err := c.take(8)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(b), nil
	case I64:
		b, err := c.take(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	case Fixed:
		b, err := c.take(f.Size)
		if err != nil {
			return nil, err
		}
		out := make([]byte, f.Size)
		copy(out, b)
		return out, nil
	case Address:
		b, err := c.take(32)
		if err != nil {
			return nil, err
		}
		return solana.PublicKeyFromBytes(b), nil
	case String:
		start := c.off
		p, err := c.take(4)
		if err != nil {
			return nil, err
		}
		declared := binary.LittleEndian.Uint32(p)
		if err := c.need(uint64(declared)); err != nil {
			return nil, err
		}
		b := c.buf[c.off : c.off+int(declared)]
		if !utf8.Valid(b) {
			c.off = start
			return nil, c.malformed("string is not valid UTF-8")
		}
		c.off += int(declared)
		return string(b), nil
	case AddressVec:
		p, err := c.take(4)
		if err != nil {
			return nil, err
		}
		count := binary.LittleEndian.Uint32(p)
		if err := c.need(uint64(count) * 32); err != nil {
			return nil, err
		}
		keys := make([]solana.PublicKey, count)
		for i := range keys {
			copy(keys[i][:], c.buf[c.off:c.off+32])
			c.off += 32
		}
		return keys, nil
	default:
		return nil, c.malformed("unknown kind %s", f.Kind)
	}
}
