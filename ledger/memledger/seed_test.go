package memledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/go-cmp/cmp"

	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/ledgerregistry"
)

func TestSeedBuild(t *testing.T) {
	addr := solana.NewWallet().PublicKey()
	prog := solana.NewWallet().PublicKey()
	yml := "window: 10\nfee: 0\naccounts:\n" +
		"  - address: " + addr.String() + "\n" +
		"    owner: " + prog.String() + "\n" +
		"    lamports: 42\n" +
		"    data: AQID\n"
	s, err := ParseSeed([]byte(yml))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	l, err := s.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := l.GetAccount(context.Background(), addr)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	want := &ledger.Account{Address: addr, Owner: prog, Lamports: 42, Data: []byte{1, 2, 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("account (-want +got):\n%s", diff)
	}
	cp, _ := l.LatestCheckpoint(context.Background())
	if cp.LastValidBlockHeight != 1+10 {
		t.Fatalf("window not applied: %+v", cp)
	}
	if l.fee != 0 {
		t.Fatalf("fee = %d", l.fee)
	}
}

func TestSeedRejects(t *testing.T) {
	for name, yml := range map[string]string{
		"bad yaml":    "accounts: [",
		"bad address": "accounts:\n  - address: nope\n",
		"bad owner":   "accounts:\n  - address: 11111111111111111111111111111111\n    owner: '!'\n",
		"bad data":    "accounts:\n  - address: 11111111111111111111111111111111\n    data: '%%'\n",
	} {
		s, err := ParseSeed([]byte(yml))
		if err == nil {
			_, err = s.Build()
		}
		if err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestRegistryBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	addr := solana.NewWallet().PublicKey()
	if err := os.WriteFile(path, []byte("accounts:\n  - address: "+addr.String()+"\n    lamports: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	flagSeed = path
	t.Cleanup(func() { flagSeed = "" })

	l, closeFn, err := ledgerregistry.Open("memory", ledgerregistry.UsageDaemon)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("unexpected close func")
	}
	acc, err := l.GetAccount(context.Background(), addr)
	if err != nil || acc.Lamports != 7 || !acc.Owner.Equals(solana.SystemProgramID) {
		t.Fatalf("GetAccount = %+v, %v", acc, err)
	}
}
