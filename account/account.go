// Package account reads program-owned accounts: an 8-byte type selector
// followed by a record in the codec layout.
package account

import (
	"fmt"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/selector"
)

// Read checks that raw starts with expected and decodes the rest with s.
// Bytes after the record are ignored; accounts are often allocated larger
// than their current contents.
func Read(raw []byte, expected selector.Selector, s codec.Schema) (codec.Record, error) {
	if len(raw) < selector.Size {
		return codec.Record{}, &codec.Error{
			Kind:   codec.KindTruncated,
			Record: s.Name,
			Need:   selector.Size,
			Have:   len(raw),
		}
	}
	if !expected.Matches(raw) {
		return codec.Record{}, &codec.Error{
			Kind:    codec.KindSelectorMismatch,
			Record:  s.Name,
			Message: fmt.Sprintf("want %s, got %x", expected, raw[:selector.Size]),
		}
	}
	rec, _, err := codec.Decode(s, raw[selector.Size:])
	if err != nil {
		if ce, ok := err.(*codec.Error); ok {
			shifted := *ce
			shifted.Offset += selector.Size
			return codec.Record{}, &shifted
		}
		return codec.Record{}, err
	}
	return rec, nil
}

// ReadAs reads raw as the account type named by s.Name.
func ReadAs(raw []byte, s codec.Schema) (codec.Record, error) {
	return Read(raw, selector.Account(s.Name), s)
}

// Encode produces account bytes for s: the account selector followed by the
// encoded values.
func Encode(s codec.Schema, values []any) ([]byte, error) {
	body, err := codec.Encode(s, values)
	if err != nil {
		return nil, err
	}
	sel := selector.Account(s.Name)
	return append(sel.Bytes(), body...), nil
}

func EncodeRecord(r codec.Record) ([]byte, error) { return Encode(r.Schema, r.Values) }
