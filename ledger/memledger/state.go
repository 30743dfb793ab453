package memledger

import (
	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/ledger"
)

// State is the account view of one transaction. Writes become visible to the
// ledger only if every instruction succeeds.
type State struct {
	base   map[solana.PublicKey]ledger.Account
	writes map[solana.PublicKey]*ledger.Account
	height uint64
}

func newState(base map[solana.PublicKey]ledger.Account, height uint64) *State {
	return &State{base: base, writes: make(map[solana.PublicKey]*ledger.Account), height: height}
}

func (s *State) Height() uint64 { return s.height }

// Account returns a copy of the current value of addr.
func (s *State) Account(addr solana.PublicKey) (ledger.Account, bool) {
	if w, ok := s.writes[addr]; ok {
		if w == nil {
			return ledger.Account{}, false
		}
		return *cloneAccount(*w), true
	}
	acc, ok := s.base[addr]
	if !ok {
		return ledger.Account{}, false
	}
	return *cloneAccount(acc), true
}

func (s *State) Put(acc ledger.Account) {
	s.writes[acc.Address] = cloneAccount(acc)
}

func (s *State) Delete(addr solana.PublicKey) {
	s.writes[addr] = nil
}

func (s *State) commit() {
	for addr, w := range s.writes {
		if w == nil {
			delete(s.base, addr)
			continue
		}
		s.base[addr] = *w
	}
}
