// Package cidutil computes the content identifiers used to key evidence blobs:
// CIDv1 with the raw codec over a sha2-256 multihash.
package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var ErrMismatch = errors.New("cidutil: bytes do not match cid")

// Sum returns the raw sha2-256 CIDv1 of data.
func Sum(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Verify recomputes the CID of data and compares it with id.
func Verify(id cid.Cid, data []byte) error {
	got, err := Sum(data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return fmt.Errorf("%w: want %s, got %s", ErrMismatch, id, got)
	}
	return nil
}

// Parse decodes s and requires the raw codec with a sha2-256 multihash.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: %q: %w", s, err)
	}
	pref := id.Prefix()
	if pref.Version != 1 || pref.Codec != cid.Raw || pref.MhType != multihash.SHA2_256 {
		return cid.Undef, fmt.Errorf("cidutil: %s is not a raw sha2-256 CIDv1", id)
	}
	return id, nil
}
