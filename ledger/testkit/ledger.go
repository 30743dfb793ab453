// Package testkit holds the conformance suite every ledger backend must pass.
package testkit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/submit"
)

// NewLedger constructs a fresh backend holding exactly the given accounts.
type NewLedger func(t *testing.T, accounts []ledger.Account) ledger.Ledger

func memo(text string, signer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{solana.Meta(signer).SIGNER()}, []byte(text))
}

func signMemo(t *testing.T, l ledger.Ledger, payer solana.PrivateKey, text string) submit.Signed {
	t.Helper()
	cp, err := l.LatestCheckpoint(context.Background())
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	signed, err := submit.SignWith(submit.Request{
		FeePayer:     payer.PublicKey(),
		Instructions: []solana.Instruction{memo(text, payer.PublicKey())},
		Signers:      []submit.Signer{submit.PrivateKey(payer)},
	}, cp)
	if err != nil {
		t.Fatalf("SignWith: %v", err)
	}
	return signed
}

func RunLedgerConformance(t *testing.T, newLedger NewLedger) {
	t.Helper()

	funded := solana.NewWallet().PrivateKey
	data := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	accounts := []ledger.Account{
		{Address: funded.PublicKey(), Owner: solana.SystemProgramID, Lamports: 10_000_000},
		{Address: data, Owner: owner, Lamports: 1, Data: []byte{1, 2, 3, 4}},
	}
	ctx := func(t *testing.T) context.Context {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		t.Cleanup(cancel)
		return c
	}

	t.Run("GetAccount", func(t *testing.T) {
		l := newLedger(t, accounts)
		acc, err := l.GetAccount(ctx(t), data)
		if err != nil {
			t.Fatalf("GetAccount: %v", err)
		}
		if acc.Address != data || acc.Owner != owner || acc.Lamports != 1 || string(acc.Data) != "\x01\x02\x03\x04" {
			t.Fatalf("GetAccount = %+v", acc)
		}
		_, err = l.GetAccount(ctx(t), solana.NewWallet().PublicKey())
		if !ledger.IsNotFound(err) {
			t.Fatalf("GetAccount(absent) err = %v, want ErrNotFound", err)
		}
	})

	t.Run("GetMultipleAccountsKeepsOrder", func(t *testing.T) {
		l := newLedger(t, accounts)
		absent := solana.NewWallet().PublicKey()
		got, err := l.GetMultipleAccounts(ctx(t), []solana.PublicKey{data, absent, funded.PublicKey()})
		if err != nil {
			t.Fatalf("GetMultipleAccounts: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d entries, want 3", len(got))
		}
		if got[0] == nil || got[0].Address != data {
			t.Fatalf("entry 0 = %+v", got[0])
		}
		if got[1] != nil {
			t.Fatalf("absent account returned %+v", got[1])
		}
		if got[2] == nil || got[2].Lamports != 10_000_000 {
			t.Fatalf("entry 2 = %+v", got[2])
		}
	})

	t.Run("CheckpointCoversHeight", func(t *testing.T) {
		l := newLedger(t, accounts)
		cp, err := l.LatestCheckpoint(ctx(t))
		if err != nil {
			t.Fatalf("LatestCheckpoint: %v", err)
		}
		h, err := l.BlockHeight(ctx(t))
		if err != nil {
			t.Fatalf("BlockHeight: %v", err)
		}
		if cp.Blockhash.IsZero() || h > cp.LastValidBlockHeight {
			t.Fatalf("checkpoint %+v at height %d", cp, h)
		}
	})

	t.Run("SendAndObserve", func(t *testing.T) {
		l := newLedger(t, accounts)
		signed := signMemo(t, l, funded, "conformance")
		sig, err := l.SendSigned(ctx(t), signed.Raw)
		if err != nil {
			t.Fatalf("SendSigned: %v", err)
		}
		if sig != signed.Signature {
			t.Fatalf("SendSigned = %s, want %s", sig, signed.Signature)
		}
		st, err := l.SignatureStatus(ctx(t), sig)
		if err != nil {
			t.Fatalf("SignatureStatus: %v", err)
		}
		if st.Status != ledger.StatusSuccess {
			t.Fatalf("status = %s, want success", st.Status)
		}
		logs, err := l.Logs(ctx(t), sig)
		if err != nil {
			t.Fatalf("Logs: %v", err)
		}
		if !strings.Contains(strings.Join(logs, "\n"), "conformance") {
			t.Fatalf("memo missing from logs: %q", logs)
		}
		_, err = l.SendSigned(ctx(t), signed.Raw)
		if !ledger.IsAlreadyProcessed(err) {
			t.Fatalf("resend err = %v, want ErrAlreadyProcessed", err)
		}
	})

	t.Run("UnknownSignature", func(t *testing.T) {
		l := newLedger(t, accounts)
		var sig solana.Signature
		sig[0] = 9
		st, err := l.SignatureStatus(ctx(t), sig)
		if err != nil {
			t.Fatalf("SignatureStatus: %v", err)
		}
		if st.Status != ledger.StatusUnknown {
			t.Fatalf("status = %s, want unknown", st.Status)
		}
		if _, err := l.Logs(ctx(t), sig); !ledger.IsNotFound(err) {
			t.Fatalf("Logs(unknown) err = %v, want ErrNotFound", err)
		}
	})

	t.Run("UnfundedPayerIsRejected", func(t *testing.T) {
		l := newLedger(t, accounts)
		signed := signMemo(t, l, solana.NewWallet().PrivateKey, "broke")
		_, err := l.SendSigned(ctx(t), signed.Raw)
		re, ok := ledger.AsRejection(err)
		if !ok {
			t.Fatalf("err = %v, want *RejectionError", err)
		}
		if re.Reason != ledger.ReasonInsufficientFunds {
			t.Fatalf("reason = %s, want %s", re.Reason, ledger.ReasonInsufficientFunds)
		}
	})

	t.Run("MalformedBytes", func(t *testing.T) {
		l := newLedger(t, accounts)
		_, err := l.SendSigned(ctx(t), []byte{0xff, 0x01})
		if !errors.Is(err, ledger.ErrMalformedTx) {
			t.Fatalf("err = %v, want ErrMalformedTx", err)
		}
	})
}
