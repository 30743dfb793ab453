package storage

import (
	"errors"
	"sort"

	"github.com/ipfs/go-cid"
)

// Chain reads across several evidence stores in a fixed order, for example a
// daemon's store followed by a CLI's local store. Put writes only to the first.
type Chain struct {
	Stores []CAS
}

var (
	_ CAS    = Chain{}
	_ Lister = Chain{}
)

func (c Chain) Put(bytes []byte) (cid.Cid, error) {
	if len(c.Stores) == 0 {
		return cid.Undef, errors.New("storage: empty chain")
	}
	return c.Stores[0].Put(bytes)
}

func (c Chain) Get(id cid.Cid) ([]byte, error) {
	for _, s := range c.Stores {
		b, err := s.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (c Chain) Has(id cid.Cid) bool {
	for _, s := range c.Stores {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// List merges the listings of every store that supports it.
func (c Chain) List() ([]cid.Cid, error) {
	seen := make(map[string]cid.Cid)
	for _, s := range c.Stores {
		l, ok := s.(Lister)
		if !ok {
			continue
		}
		ids, err := l.List()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen[id.String()] = id
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cid.Cid, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out, nil
}
