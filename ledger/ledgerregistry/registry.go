// Package ledgerregistry selects a ledger backend by name at runtime.
//
// Backends register themselves in init() and are linked into a binary by
// importing the backend package, usually as a blank import:
//
//	import _ "noema.dev/ledgerkit/ledger/rpcledger"
package ledgerregistry

import (
	"flag"
	"fmt"
	"sort"
	"sync"

	"noema.dev/ledgerkit/ledger"
)

// Backend opens a ledger.Ledger implementation.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds backend-specific flags to fs.
	// It must be safe to call exactly once per flag set.
	RegisterFlags func(fs *flag.FlagSet)

	// Open constructs the ledger from the values parsed into the flags
	// registered by RegisterFlags. It returns an optional close function.
	Open func() (ledger.Ledger, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("ledgerregistry: backend name is required")
	}
	if b.RegisterFlags == nil {
		return fmt.Errorf("ledgerregistry: backend %q missing RegisterFlags", b.Name)
	}
	if b.Open == nil {
		return fmt.Errorf("ledgerregistry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("ledgerregistry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("ledgerregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// RegisterFlags registers flags for all backends matching usage, so a
// binary can parse every backend's flags in one pass.
func RegisterFlags(fs *flag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

// Open opens the named backend if it exists and matches usage.
func Open(name string, usage Usage) (ledger.Ledger, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown ledger backend %q (have %v)", name, Names(usage))
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("ledger backend %q not supported in this binary", name)
	}
	return b.Open()
}
