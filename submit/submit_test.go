package submit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/memledger"
	"noema.dev/ledgerkit/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fastPolicy = config.SubmitPolicy{
	MaxSendAttempts: 4,
	BaseBackoff:     time.Millisecond,
	MaxBackoff:      4 * time.Millisecond,
	PollInterval:    time.Millisecond,
}

func memo(text string, signers ...solana.PublicKey) solana.Instruction {
	metas := make(solana.AccountMetaSlice, 0, len(signers))
	for _, s := range signers {
		metas = append(metas, solana.Meta(s).SIGNER())
	}
	return solana.NewInstruction(solana.MemoProgramID, metas, []byte(text))
}

type fixture struct {
	ledger *memledger.Ledger
	payer  *solana.Wallet
	sub    *Submitter
	cas    *storage.Memory
}

func newFixture(t *testing.T, lopts ...memledger.Option) *fixture {
	t.Helper()
	l := memledger.New(lopts...)
	payer := solana.NewWallet()
	l.Fund(payer.PublicKey(), 10_000_000)
	cas := storage.NewMemory()
	sub := New(l,
		WithPolicy(fastPolicy),
		WithLogger(zap.NewNop()),
		WithEvidence(cas),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
	return &fixture{ledger: l, payer: payer, sub: sub, cas: cas}
}

func (f *fixture) request(text string) Request {
	return Request{
		FeePayer:     f.payer.PublicKey(),
		Instructions: []solana.Instruction{memo(text, f.payer.PublicKey())},
		Signers:      []Signer{PrivateKey(f.payer.PrivateKey)},
	}
}

func TestSubmitConfirms(t *testing.T) {
	f := newFixture(t)
	cosigner := solana.NewWallet()
	req := Request{
		FeePayer:     f.payer.PublicKey(),
		Instructions: []solana.Instruction{memo("two signers", f.payer.PublicKey(), cosigner.PublicKey())},
		Signers:      []Signer{PrivateKey(f.payer.PrivateKey), PrivateKey(cosigner.PrivateKey)},
	}
	out, err := f.sub.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.State != StateConfirmed || out.Sends != 1 || out.AlreadyProcessed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !strings.Contains(strings.Join(out.Logs, "\n"), "Memo (len 11)") {
		t.Fatalf("logs not captured: %q", out.Logs)
	}
	if f.ledger.Processed() != 1 {
		t.Fatalf("processed %d transactions", f.ledger.Processed())
	}
}

func TestLostAckResolvesToSameSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signed, err := f.sub.Sign(ctx, f.request("lost ack"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	f.ledger.InjectFault(memledger.FaultLostAck)

	out, err := f.sub.SubmitSigned(ctx, signed)
	if err != nil {
		t.Fatalf("SubmitSigned: %v", err)
	}
	if out.Signature != signed.Signature {
		t.Fatalf("signature: got %s want %s", out.Signature, signed.Signature)
	}
	if !out.AlreadyProcessed || out.Sends != 2 || out.State != StateConfirmed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if f.ledger.Processed() != 1 {
		t.Fatalf("transaction processed %d times", f.ledger.Processed())
	}
}

func TestResubmissionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signed, err := f.sub.Sign(ctx, f.request("twice"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	first, err := f.sub.SubmitSigned(ctx, signed)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.sub.SubmitSigned(ctx, signed)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Signature != second.Signature || !second.AlreadyProcessed {
		t.Fatalf("first %+v second %+v", first, second)
	}
	if first.Attempt == second.Attempt {
		t.Fatalf("attempt ids must differ per submission")
	}
	if f.ledger.Processed() != 1 {
		t.Fatalf("effect applied %d times", f.ledger.Processed())
	}
}

func TestTransportErrorsRetrySameBytes(t *testing.T) {
	f := newFixture(t)
	f.ledger.InjectFault(memledger.FaultTransport, memledger.FaultTransport)
	out, err := f.sub.Submit(context.Background(), f.request("retry"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Sends != 3 || f.ledger.Sends() != 3 || f.ledger.Processed() != 1 {
		t.Fatalf("sends=%d ledger sends=%d processed=%d", out.Sends, f.ledger.Sends(), f.ledger.Processed())
	}
}

func TestRetriesExhausted(t *testing.T) {
	f := newFixture(t)
	f.ledger.InjectFault(memledger.FaultTransport, memledger.FaultTransport,
		memledger.FaultTransport, memledger.FaultTransport)
	_, err := f.sub.Submit(context.Background(), f.request("down"))
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if !ledger.IsTransport(err) {
		t.Fatalf("last transport error not wrapped: %v", err)
	}
	if f.ledger.Sends() != fastPolicy.MaxSendAttempts {
		t.Fatalf("sends: got %d want %d", f.ledger.Sends(), fastPolicy.MaxSendAttempts)
	}
}

func TestRejectionIsNotRetriedAndArchived(t *testing.T) {
	f := newFixture(t)
	broke := solana.NewWallet()
	req := Request{
		FeePayer:     broke.PublicKey(),
		Instructions: []solana.Instruction{memo("no funds", broke.PublicKey())},
		Signers:      []Signer{PrivateKey(broke.PrivateKey)},
	}
	_, err := f.sub.Submit(context.Background(), req)
	re, ok := AsRejected(err)
	if !ok {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if !errors.Is(err, ErrRejected) || re.Reason != ledger.ReasonInsufficientFunds || re.Landed {
		t.Fatalf("unexpected rejection: %+v", re)
	}
	if f.ledger.Sends() != 1 {
		t.Fatalf("rejection retried: %d sends", f.ledger.Sends())
	}
	if !re.Evidence.Defined() {
		t.Fatalf("rejection was not archived")
	}
	ev, err := storage.Load(f.cas, re.Evidence)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ev.Kind != storage.KindRejection || ev.Subject != re.Signature.String() ||
		ev.Reason != string(ledger.ReasonInsufficientFunds) || len(ev.Raw) == 0 || ev.RecordedAt != 1700000000 {
		t.Fatalf("unexpected evidence: %+v", ev)
	}
}

func TestLandedFailureIsRejected(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("Bb95aVcDasGfZ5HWE2aickWD86aCiUncZVKEJoBRZraG")
	f := newFixture(t, memledger.WithPreflight(false))
	f.ledger.Register(program, func(*memledger.State, memledger.Invocation) ([]string, error) {
		return []string{"Program log: AnchorError: already in use"}, errors.New("custom program error: 0x0")
	})
	req := f.request("")
	req.Instructions = []solana.Instruction{solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.Meta(f.payer.PublicKey()).SIGNER().WRITE(),
	}, []byte{0})}

	_, err := f.sub.Submit(context.Background(), req)
	re, ok := AsRejected(err)
	if !ok || !re.Landed || re.Reason != ledger.ReasonAccountAlreadyInitialized {
		t.Fatalf("expected landed AccountAlreadyInitialized, got %v", err)
	}
	if len(re.Logs) == 0 {
		t.Fatalf("logs not attached")
	}
}

func TestWindowCloseIsAmbiguous(t *testing.T) {
	f := newFixture(t, memledger.WithAutoAdvance(50))
	ctx := context.Background()
	f.ledger.InjectFault(memledger.FaultBlackhole)
	signed, err := f.sub.Sign(ctx, f.request("lost"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	_, err = f.sub.SubmitSigned(ctx, signed)
	ae, ok := AsAmbiguous(err)
	if !ok || !errors.Is(err, ErrAmbiguousTimeout) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if ae.Signature != signed.Signature || ae.LastValidBlockHeight != signed.Checkpoint.LastValidBlockHeight {
		t.Fatalf("unexpected ambiguous error: %+v", ae)
	}

	if _, err := f.sub.Recheck(ctx, ae.Signature); !errors.Is(err, ErrAmbiguousTimeout) {
		t.Fatalf("Recheck: expected ambiguous, got %v", err)
	}
	// The window has closed, so the same bytes can no longer land.
	_, err = f.sub.SubmitSigned(ctx, signed)
	if re, ok := AsRejected(err); !ok || re.Reason != ledger.ReasonStaleCheckpoint {
		t.Fatalf("expected StaleCheckpoint, got %v", err)
	}
}

func TestCancellationIsAmbiguous(t *testing.T) {
	f := newFixture(t)
	f.ledger.InjectFault(memledger.FaultBlackhole)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.sub.Submit(ctx, f.request("cancelled"))
	if !errors.Is(err, ErrAmbiguousTimeout) {
		t.Fatalf("expected ambiguous, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause not preserved: %v", err)
	}
}

// heightless fails every block height read.
type heightless struct {
	*memledger.Ledger
}

func (heightless) BlockHeight(context.Context) (uint64, error) {
	return 0, &ledger.TransportError{Op: "block height", Err: errors.New("unreachable")}
}

func TestConfirmTimeoutWithoutBlockHeight(t *testing.T) {
	f := newFixture(t)
	policy := fastPolicy
	policy.ConfirmTimeout = 30 * time.Millisecond
	sub := New(heightless{f.ledger}, WithPolicy(policy), WithLogger(zap.NewNop()))
	f.ledger.InjectFault(memledger.FaultBlackhole)

	signed, err := sub.Sign(context.Background(), f.request("no height"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	start := time.Now()
	_, err = sub.SubmitSigned(context.Background(), signed)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("SubmitSigned took %s", elapsed)
	}
	ae, ok := AsAmbiguous(err)
	if !ok {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if ae.Signature != signed.Signature || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected ambiguous error: %v", err)
	}
}

func TestRecheckConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	out, err := f.sub.Submit(ctx, f.request("recheck"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	again, err := f.sub.Recheck(ctx, out.Signature)
	if err != nil {
		t.Fatalf("Recheck: %v", err)
	}
	if again.State != StateConfirmed || again.Slot != out.Slot {
		t.Fatalf("Recheck: %+v", again)
	}
}

func TestSignValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.sub.Sign(ctx, Request{FeePayer: f.payer.PublicKey()}); !errors.Is(err, ErrNoInstructions) {
		t.Fatalf("expected ErrNoInstructions, got %v", err)
	}
	req := f.request("unsigned")
	req.Signers = nil
	if _, err := f.sub.Sign(ctx, req); !errors.Is(err, ErrMissingSigner) {
		t.Fatalf("expected ErrMissingSigner, got %v", err)
	}
	req = f.request("no payer")
	req.FeePayer = solana.PublicKey{}
	if _, err := f.sub.Sign(ctx, req); !errors.Is(err, ErrMissingSigner) {
		t.Fatalf("expected ErrMissingSigner, got %v", err)
	}
}

func TestSignedBytesCarrySignature(t *testing.T) {
	f := newFixture(t)
	signed, err := f.sub.Sign(context.Background(), f.request("id"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig, err := ledger.FirstSignature(signed.Raw)
	if err != nil || sig != signed.Signature {
		t.Fatalf("FirstSignature: %s %v want %s", sig, err, signed.Signature)
	}
}

func TestStateString(t *testing.T) {
	if StateAmbiguous.String() != "ambiguous-timeout" || State(99).String() != "state(99)" {
		t.Fatalf("unexpected state names")
	}
}
