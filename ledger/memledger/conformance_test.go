package memledger

import (
	"testing"

	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/testkit"
)

func TestConformance(t *testing.T) {
	testkit.RunLedgerConformance(t, func(t *testing.T, accounts []ledger.Account) ledger.Ledger {
		l := New()
		for _, acc := range accounts {
			l.SetAccount(acc)
		}
		return l
	})
}
