package grpcledger

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/memledger"
	"noema.dev/ledgerkit/ledger/testkit"
	"noema.dev/ledgerkit/submit"
)

func serve(t *testing.T, l ledger.Ledger) (*Client, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(zap.NewNop())))
	RegisterLedgerServer(srv, &Server{Ledger: l})
	go func() {
		_ = srv.Serve(lis)
	}()

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	client := NewClient(cc)
	client.Timeout = 2 * time.Second
	t.Cleanup(func() {
		_ = client.Close()
		srv.Stop()
	})
	return client, srv.Stop
}

func memo(text string, signer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{solana.Meta(signer).SIGNER()}, []byte(text))
}

func TestAccountsRoundTrip(t *testing.T) {
	ml := memledger.New()
	owner := solana.NewWallet().PublicKey()
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	ml.SetAccount(ledger.Account{Address: a, Owner: owner, Lamports: 1 << 60, Data: []byte{9, 8, 7}})
	c, _ := serve(t, ml)
	ctx := context.Background()

	got, err := c.GetAccount(ctx, a)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	want := &ledger.Account{Address: a, Owner: owner, Lamports: 1 << 60, Data: []byte{9, 8, 7}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("account (-want +got):\n%s", diff)
	}

	if _, err := c.GetAccount(ctx, b); !ledger.IsNotFound(err) {
		t.Fatalf("GetAccount(absent) = %v", err)
	}

	many, err := c.GetMultipleAccounts(ctx, []solana.PublicKey{b, a, b})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(many) != 3 || many[0] != nil || many[2] != nil || many[1] == nil || !many[1].Address.Equals(a) {
		t.Fatalf("GetMultipleAccounts = %v", many)
	}
}

func TestCheckpointAndHeight(t *testing.T) {
	ml := memledger.New()
	ml.Advance(9)
	c, _ := serve(t, ml)
	ctx := context.Background()

	want, _ := ml.LatestCheckpoint(ctx)
	got, err := c.LatestCheckpoint(ctx)
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if got != want {
		t.Fatalf("checkpoint = %+v, want %+v", got, want)
	}
	h, err := c.BlockHeight(ctx)
	if err != nil || h != 10 {
		t.Fatalf("BlockHeight = %d, %v", h, err)
	}
}

func TestSubmitOverGRPC(t *testing.T) {
	ml := memledger.New()
	payer := solana.NewWallet()
	ml.Fund(payer.PublicKey(), 1_000_000)
	c, _ := serve(t, ml)

	sub := submit.New(c, submit.WithLogger(zap.NewNop()), submit.WithPolicy(config.SubmitPolicy{
		MaxSendAttempts: 2,
		BaseBackoff:     time.Millisecond,
		MaxBackoff:      time.Millisecond,
		PollInterval:    time.Millisecond,
	}))
	req := submit.Request{
		FeePayer:     payer.PublicKey(),
		Instructions: []solana.Instruction{memo("over the wire", payer.PublicKey())},
		Signers:      []submit.Signer{submit.PrivateKey(payer.PrivateKey)},
	}
	signed, err := sub.Sign(context.Background(), req)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	out, err := sub.SubmitSigned(context.Background(), signed)
	if err != nil {
		t.Fatalf("SubmitSigned: %v", err)
	}
	if out.State != submit.StateConfirmed || out.Signature != signed.Signature {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Logs) == 0 {
		t.Fatalf("no logs carried over gRPC")
	}

	if _, err := c.SendSigned(context.Background(), signed.Raw); !ledger.IsAlreadyProcessed(err) {
		t.Fatalf("resend = %v, want already processed", err)
	}
	st, err := c.SignatureStatus(context.Background(), signed.Signature)
	if err != nil || st.Status != ledger.StatusSuccess {
		t.Fatalf("SignatureStatus = %+v, %v", st, err)
	}
}

func TestRejectionKeepsReasonAndLogs(t *testing.T) {
	ml := memledger.New()
	payer := solana.NewWallet()
	ml.Fund(payer.PublicKey(), 1_000_000)
	prog := solana.MustPublicKeyFromBase58("Bb95n3Kk5C6gMPmxaWnNjJpW9FDPkMw8ZzrWGMPNEkdR")
	ml.Register(prog, func(*memledger.State, memledger.Invocation) ([]string, error) {
		return []string{"Program log: AnchorError occurred. Error Code: AccountAlreadyInitialized."}, errors.New("custom program error: 0x0")
	})
	c, _ := serve(t, ml)

	sub := submit.New(c, submit.WithLogger(zap.NewNop()))
	signed, err := sub.Sign(context.Background(), submit.Request{
		FeePayer:     payer.PublicKey(),
		Instructions: []solana.Instruction{solana.NewInstruction(prog, solana.AccountMetaSlice{solana.Meta(payer.PublicKey()).SIGNER().WRITE()}, []byte{1})},
		Signers:      []submit.Signer{submit.PrivateKey(payer.PrivateKey)},
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	_, err = c.SendSigned(context.Background(), signed.Raw)
	re, ok := ledger.AsRejection(err)
	if !ok {
		t.Fatalf("SendSigned = %v, want rejection", err)
	}
	if re.Reason != ledger.ReasonAccountAlreadyInitialized {
		t.Fatalf("reason = %s", re.Reason)
	}
	if len(re.Logs) == 0 {
		t.Fatalf("logs lost")
	}

	if _, err := c.SendSigned(context.Background(), []byte{0}); !errors.Is(err, ledger.ErrMalformedTx) {
		t.Fatalf("malformed = %v", err)
	}
}

func TestTransportErrorWhenServerGone(t *testing.T) {
	c, stop := serve(t, memledger.New())
	stop()
	_, err := c.BlockHeight(context.Background())
	if !ledger.IsTransport(err) {
		t.Fatalf("BlockHeight after stop = %v, want transport error", err)
	}
}

func TestMissingBackend(t *testing.T) {
	c, _ := serve(t, nil)
	_, err := c.BlockHeight(context.Background())
	if !ledger.IsTransport(err) {
		t.Fatalf("BlockHeight = %v, want transport error", err)
	}
}

func TestConformance(t *testing.T) {
	testkit.RunLedgerConformance(t, func(t *testing.T, accounts []ledger.Account) ledger.Ledger {
		l := memledger.New()
		for _, acc := range accounts {
			l.SetAccount(acc)
		}
		client, _ := serve(t, l)
		return client
	})
}
