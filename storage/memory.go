package storage

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"noema.dev/ledgerkit/cidutil"
)

// Memory is a process-local CAS.
type Memory struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

var (
	_ CAS    = (*Memory)(nil)
	_ Lister = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{objects: make(map[cid.Cid][]byte)}
}

func (m *Memory) Put(b []byte) (cid.Cid, error) {
	id, err := cidutil.Sum(b)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objects[id]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objects[id] = bytes.Clone(b)
	return id, nil
}

func (m *Memory) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(b), nil
}

func (m *Memory) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok
}

// List returns every stored CID in lexicographic order of its string form.
func (m *Memory) List() ([]cid.Cid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]cid.Cid, 0, len(m.objects))
	for id := range m.objects {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
