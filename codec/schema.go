// Package codec encodes and decodes the little-endian record layout used by
// program accounts and instruction arguments. One generic walker serves every
// record type; a record type is just a Schema value.
package codec

import "fmt"

// Kind is the wire type of a field.
type Kind uint8

const (
	U8 Kind = iota + 1
	Bool
	U16
	U32
	U64
	I64
	// Fixed is a byte array of Field.Size bytes.
	Fixed
	// Address is a 32-byte public key.
	Address
	// String is a u32 byte count followed by UTF-8 bytes.
	String
	// AddressVec is a u32 element count followed by 32 bytes per element.
	AddressVec
)

var kindNames = map[Kind]string{
	U8:         "u8",
	Bool:       "bool",
	U16:        "u16",
	U32:        "u32",
	U64:        "u64",
	I64:        "i64",
	Fixed:      "fixed",
	Address:    "address",
	String:     "string",
	AddressVec: "vec<address>",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// width is the encoded size of fixed-width kinds, or the size of the length
// prefix for variable kinds.
func (k Kind) width() int {
	switch k {
	case U8, Bool:
		return 1
	case U16:
		return 2
	case U32, String, AddressVec:
		return 4
	case U64, I64:
		return 8
	case Address:
		return 32
	default:
		return 0
	}
}

// Field is one slot of a schema.
type Field struct {
	Name string
	Kind Kind
	// Size is the byte length of a Fixed field; ignored otherwise.
	Size int
}

// Schema is an ordered list of fields. Name is the record's type name and is
// used for selectors and error context.
type Schema struct {
	Name   string
	Fields []Field
}

func F(name string, kind Kind) Field { return Field{Name: name, Kind: kind} }

func FixedField(name string, size int) Field { return Field{Name: name, Kind: Fixed, Size: size} }

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// MinSize is the smallest encoding of s: every variable field empty.
func (s Schema) MinSize() int {
	n := 0
	for _, f := range s.Fields {
		if f.Kind == Fixed {
			n += f.Size
			continue
		}
		n += f.Kind.width()
	}
	return n
}

// Offset returns the byte offset of the named field when every field before it
// is fixed-width. ok is false when a variable field precedes it.
func (s Schema) Offset(name string) (offset int, ok bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return offset, true
		}
		switch f.Kind {
		case String, AddressVec:
			return 0, false
		case Fixed:
			offset += f.Size
		default:
			offset += f.Kind.width()
		}
	}
	return 0, false
}

// Validate checks that the schema itself is well formed.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("codec: %s: field %d has no name", s.Name, i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("codec: %s: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if _, ok := kindNames[f.Kind]; !ok {
			return fmt.Errorf("codec: %s.%s: unknown kind %d", s.Name, f.Name, f.Kind)
		}
		if f.Kind == Fixed && f.Size <= 0 {
			return fmt.Errorf("codec: %s.%s: fixed field needs a positive size", s.Name, f.Name)
		}
	}
	return nil
}
