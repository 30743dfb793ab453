package codec

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Record is a decoded tuple of values in schema order.
//
// Value types by kind: U8 uint8, Bool bool, U16 uint16, U32 uint32, U64 uint64,
// I64 int64, Fixed []byte, Address solana.PublicKey, String string,
// AddressVec []solana.PublicKey.
type Record struct {
	Schema Schema
	Values []any
}

// Get returns the named value.
func (r Record) Get(name string) (any, bool) {
	i := r.Schema.Index(name)
	if i < 0 || i >= len(r.Values) {
		return nil, false
	}
	return r.Values[i], true
}

// With returns a copy of r with one field replaced. r is not modified.
func (r Record) With(name string, v any) (Record, error) {
	i := r.Schema.Index(name)
	if i < 0 || i >= len(r.Values) {
		return Record{}, fmt.Errorf("codec: %s has no field %q", r.Schema.Name, name)
	}
	if err := checkValue(r.Schema, r.Schema.Fields[i], v); err != nil {
		return Record{}, err
	}
	vals := make([]any, len(r.Values))
	copy(vals, r.Values)
	vals[i] = v
	return Record{Schema: r.Schema, Values: vals}, nil
}

// Value extracts a typed field from a record.
func Value[T any](r Record, name string) (T, error) {
	var zero T
	v, ok := r.Get(name)
	if !ok {
		return zero, fmt.Errorf("codec: %s has no field %q", r.Schema.Name, name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("codec: %s.%s is %T, not %T", r.Schema.Name, name, v, zero)
	}
	return t, nil
}

// Getter reads several typed fields, remembering the first failure.
type Getter struct {
	r   Record
	err error
}

func NewGetter(r Record) *Getter { return &Getter{r: r} }

func (g *Getter) Err() error { return g.err }

func get[T any](g *Getter, name string) T {
	var zero T
	if g.err != nil {
		return zero
	}
	v, err := Value[T](g.r, name)
	if err != nil {
		g.err = err
		return zero
	}
	return v
}

func (g *Getter) U8(name string) uint8                 { return get[uint8](g, name) }
func (g *Getter) Bool(name string) bool                { return get[bool](g, name) }
func (g *Getter) U16(name string) uint16               { return get[uint16](g, name) }
func (g *Getter) U32(name string) uint32               { return get[uint32](g, name) }
func (g *Getter) U64(name string) uint64               { return get[uint64](g, name) }
func (g *Getter) I64(name string) int64                { return get[int64](g, name) }
func (g *Getter) Bytes(name string) []byte             { return get[[]byte](g, name) }
func (g *Getter) Address(name string) solana.PublicKey { return get[solana.PublicKey](g, name) }
func (g *Getter) String(name string) string            { return get[string](g, name) }
func (g *Getter) Addresses(name string) []solana.PublicKey {
	return get[[]solana.PublicKey](g, name)
}
