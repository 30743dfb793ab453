// Package storage archives evidence (undecodable account bytes, rejected
// transactions) in a content-addressable store so a failure reported to a
// caller can be inspected later by CID.
package storage

import "github.com/ipfs/go-cid"

// CAS is a content-addressable blob store keyed by raw sha2-256 CIDv1.
//
// Contract:
//   - Put is idempotent and returns the CID of the bytes written.
//   - Stored objects are immutable.
//   - Get returns ErrNotFound when the CID is absent and ErrInvalidCID for cid.Undef.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Lister is implemented by stores that can enumerate their objects in a
// stable order.
type Lister interface {
	List() ([]cid.Cid, error)
}
