package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/go-cmp/cmp"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/memledger"
	"noema.dev/ledgerkit/records"
	"noema.dev/ledgerkit/selector"
	"noema.dev/ledgerkit/storage"
)

var registry = solana.MustPublicKeyFromBase58("G8iYmvncvWsfHRrxZvKuPU6B2kcMj82Lpcf6og6SyMkW")

func demoIdentity() records.Identity {
	return records.Identity{
		Owner:       solana.MustPublicKeyFromBase58("3oxg7wVtdp9T3sx773SMmws8zrGyAJecqTruaXfiw3mN"),
		AgentID:     "demo-agent-001",
		MetadataURI: "https://x/y.json",
		CreatedAt:   1000,
		UpdatedAt:   1000,
		IsActive:    true,
		Bump:        255,
	}
}

func mustEncode(t *testing.T, r codec.Record) []byte {
	t.Helper()
	b, err := EncodeRecord(r)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	return b
}

func TestIdentityRoundTrip(t *testing.T) {
	want := demoIdentity()
	raw := mustEncode(t, want.Record())
	rec, err := Read(raw, selector.Account("IdentityRegistry"), records.IdentitySchema)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, err := records.IdentityFromRecord(rec)
	if err != nil {
		t.Fatalf("IdentityFromRecord: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("identity mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncatedMidString(t *testing.T) {
	raw := mustEncode(t, demoIdentity().Record())
	// selector(8) owner(32) agent_id(4+14) metadata_uri length(4) then 5 of 16 bytes.
	cut := 8 + 32 + 4 + 14 + 4 + 5
	_, err := ReadAs(raw[:cut], records.IdentitySchema)
	if !codec.IsTruncated(err) {
		t.Fatalf("expected TruncatedRecord, got %v", err)
	}
	var ce *codec.Error
	if !errors.As(err, &ce) || ce.Field != "metadata_uri" || ce.Offset != cut-5 {
		t.Fatalf("unexpected error context: %+v", ce)
	}
}

func TestSelectorGate(t *testing.T) {
	rep := records.Reputation{Score: 100, TotalTasks: 1}
	raw := mustEncode(t, rep.Record())
	_, err := ReadAs(raw, records.IdentitySchema)
	if !codec.IsSelectorMismatch(err) {
		t.Fatalf("expected SelectorMismatch, got %v", err)
	}
	if !IsAbsent(err) {
		t.Fatalf("selector mismatch should count as absent")
	}
}

func TestShortBuffers(t *testing.T) {
	for n := 0; n < selector.Size; n++ {
		_, err := ReadAs(make([]byte, n), records.IdentitySchema)
		if !codec.IsTruncated(err) {
			t.Fatalf("len %d: expected TruncatedRecord, got %v", n, err)
		}
	}
}

func TestTrailingBytesIgnored(t *testing.T) {
	raw := mustEncode(t, demoIdentity().Record())
	raw = append(raw, make([]byte, 64)...)
	if _, err := ReadAs(raw, records.IdentitySchema); err != nil {
		t.Fatalf("ReadAs with padding: %v", err)
	}
}

type fixture struct {
	ledger *memledger.Ledger
	cas    *storage.Memory
	reader *Reader
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	l := memledger.New()
	cas := storage.NewMemory()
	opts = append([]Option{
		WithEvidence(cas),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	}, opts...)
	return &fixture{ledger: l, cas: cas, reader: NewReader(l, opts...)}
}

func (f *fixture) put(t *testing.T, addr solana.PublicKey, owner solana.PublicKey, data []byte) {
	t.Helper()
	f.ledger.SetAccount(ledger.Account{Address: addr, Owner: owner, Lamports: 1, Data: data})
}

func TestFetch(t *testing.T) {
	f := newFixture(t, WithOwner(registry))
	ctx := context.Background()
	addr := solana.NewWallet().PublicKey()
	f.put(t, addr, registry, mustEncode(t, demoIdentity().Record()))

	rec, err := f.reader.Fetch(ctx, addr, records.IdentitySchema)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if id, _ := records.IdentityFromRecord(rec); id.AgentID != "demo-agent-001" {
		t.Fatalf("unexpected record %+v", id)
	}

	missing := solana.NewWallet().PublicKey()
	_, err = f.reader.Fetch(ctx, missing, records.IdentitySchema)
	if !IsAbsent(err) {
		t.Fatalf("missing account should be absent, got %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Address != missing {
		t.Fatalf("error does not name the account: %v", err)
	}
}

func TestFetchWrongOwner(t *testing.T) {
	f := newFixture(t, WithOwner(registry))
	addr := solana.NewWallet().PublicKey()
	f.put(t, addr, solana.SystemProgramID, mustEncode(t, demoIdentity().Record()))
	_, err := f.reader.Fetch(context.Background(), addr, records.IdentitySchema)
	if !errors.Is(err, ErrWrongOwner) || IsAbsent(err) {
		t.Fatalf("expected ErrWrongOwner, got %v", err)
	}
}

func TestCorruptAccountIsArchived(t *testing.T) {
	f := newFixture(t)
	addr := solana.NewWallet().PublicKey()
	raw := mustEncode(t, demoIdentity().Record())
	f.put(t, addr, registry, raw[:50])

	_, err := f.reader.Fetch(context.Background(), addr, records.IdentitySchema)
	if !codec.IsTruncated(err) || IsAbsent(err) {
		t.Fatalf("expected hard TruncatedRecord, got %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || !fe.Evidence.Defined() {
		t.Fatalf("no evidence attached: %v", err)
	}
	ev, lerr := storage.Load(f.cas, fe.Evidence)
	if lerr != nil {
		t.Fatalf("Load: %v", lerr)
	}
	if ev.Kind != storage.KindDecodeFailure || ev.Subject != addr.String() ||
		ev.Record != "IdentityRegistry" || ev.Reason != string(codec.KindTruncated) {
		t.Fatalf("unexpected evidence %+v", ev)
	}
	if diff := cmp.Diff(raw[:50], ev.Raw); diff != "" {
		t.Fatalf("raw bytes not preserved (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), fe.Evidence.String()) {
		t.Fatalf("error message omits evidence cid: %v", err)
	}
}

func TestFetchManyChunksInOrder(t *testing.T) {
	f := newFixture(t, WithPolicy(config.ReaderPolicy{BatchSize: 7, Concurrency: 3}))
	const n = 45
	addrs := make([]solana.PublicKey, n)
	for i := range addrs {
		addrs[i] = solana.NewWallet().PublicKey()
		switch i % 3 {
		case 0:
			id := demoIdentity()
			id.CreatedAt = int64(i)
			f.put(t, addrs[i], registry, mustEncode(t, id.Record()))
		case 1:
			f.put(t, addrs[i], registry, mustEncode(t, records.Reputation{}.Record()))
		}
	}

	results, err := f.reader.FetchMany(context.Background(), addrs, records.IdentitySchema)
	if err != nil {
		t.Fatalf("FetchMany: %v", err)
	}
	if len(results) != n {
		t.Fatalf("got %d results want %d", len(results), n)
	}
	for i, res := range results {
		if res.Address != addrs[i] {
			t.Fatalf("result %d out of order", i)
		}
		switch i % 3 {
		case 0:
			if res.Err != nil {
				t.Fatalf("result %d: %v", i, res.Err)
			}
			id, _ := records.IdentityFromRecord(res.Record)
			if id.CreatedAt != int64(i) {
				t.Fatalf("result %d: created_at %d", i, id.CreatedAt)
			}
		case 1:
			if !codec.IsSelectorMismatch(res.Err) {
				t.Fatalf("result %d: expected selector mismatch, got %v", i, res.Err)
			}
		case 2:
			if !ledger.IsNotFound(res.Err) {
				t.Fatalf("result %d: expected not found, got %v", i, res.Err)
			}
		}
	}
}

func TestFetchManyPropagatesTransportErrors(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.reader.FetchMany(ctx, []solana.PublicKey{solana.NewWallet().PublicKey()}, records.IdentitySchema)
	if !ledger.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetchManyEmpty(t *testing.T) {
	f := newFixture(t)
	results, err := f.reader.FetchMany(context.Background(), nil, records.IdentitySchema)
	if err != nil || len(results) != 0 {
		t.Fatalf("FetchMany(nil): %v %v", results, err)
	}
}
