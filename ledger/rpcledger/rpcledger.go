// Package rpcledger implements ledger.Ledger over a cluster's JSON-RPC API.
package rpcledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/ledger"
)

type Ledger struct {
	client        *rpc.Client
	commitment    rpc.CommitmentType
	skipPreflight bool
	timeout       time.Duration
	log           *zap.Logger
}

var _ ledger.Ledger = (*Ledger)(nil)

type Option func(*Ledger)

// WithCommitment sets the commitment used for reads, preflight and status
// checks. The default is confirmed.
func WithCommitment(c string) Option {
	return func(l *Ledger) { l.commitment = rpc.CommitmentType(c) }
}

// WithSkipPreflight sends transactions without simulation. Program failures
// then land as failed transactions instead of rejections.
func WithSkipPreflight(skip bool) Option { return func(l *Ledger) { l.skipPreflight = skip } }

// WithTimeout bounds every JSON-RPC call. Zero leaves calls bounded only by
// the caller's context.
func WithTimeout(d time.Duration) Option { return func(l *Ledger) { l.timeout = d } }

func WithLogger(log *zap.Logger) Option { return func(l *Ledger) { l.log = log } }

func New(endpoint string, opts ...Option) *Ledger {
	l := &Ledger{
		client:     rpc.New(endpoint),
		commitment: rpc.CommitmentConfirmed,
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// FromConfig builds a ledger from the rpc and submit sections of c.
func FromConfig(c config.Config, log *zap.Logger) *Ledger {
	opts := []Option{WithSkipPreflight(c.Submit.SkipPreflight)}
	if c.RPC.Commitment != "" {
		opts = append(opts, WithCommitment(c.RPC.Commitment))
	}
	if c.RPC.Timeout > 0 {
		opts = append(opts, WithTimeout(c.RPC.Timeout))
	}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	return New(c.RPC.Endpoint, opts...)
}

func (l *Ledger) Close() error { return l.client.Close() }

func (l *Ledger) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, l.timeout)
}

func (l *Ledger) GetAccount(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	ctx, cancel := l.ctx(ctx)
	defer cancel()
	res, err := l.client.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: l.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: account %s", ledger.ErrNotFound, addr)
		}
		return nil, readErr(ctx, "get account", err)
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("%w: account %s", ledger.ErrNotFound, addr)
	}
	return toAccount(addr, res.Value), nil
}

func (l *Ledger) GetMultipleAccounts(ctx context.Context, addrs []solana.PublicKey) ([]*ledger.Account, error) {
	ctx, cancel := l.ctx(ctx)
	defer cancel()
	if len(addrs) == 0 {
		return nil, nil
	}
	res, err := l.client.GetMultipleAccountsWithOpts(ctx, addrs, &rpc.GetMultipleAccountsOpts{
		Commitment: l.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		return nil, readErr(ctx, "get multiple accounts", err)
	}
	if len(res.Value) != len(addrs) {
		return nil, fmt.Errorf("rpcledger: got %d accounts for %d addresses", len(res.Value), len(addrs))
	}
	out := make([]*ledger.Account, len(addrs))
	for i, v := range res.Value {
		if v != nil {
			out[i] = toAccount(addrs[i], v)
		}
	}
	return out, nil
}

func toAccount(addr solana.PublicKey, v *rpc.Account) *ledger.Account {
	a := &ledger.Account{Address: addr, Owner: v.Owner, Lamports: v.Lamports}
	if v.Data != nil {
		a.Data = v.Data.GetBinary()
	}
	return a
}

func (l *Ledger) LatestCheckpoint(ctx context.Context) (ledger.Checkpoint, error) {
	ctx, cancel := l.ctx(ctx)
	defer cancel()
	res, err := l.client.GetLatestBlockhash(ctx, l.commitment)
	if err != nil {
		return ledger.Checkpoint{}, readErr(ctx, "latest checkpoint", err)
	}
	if res == nil || res.Value == nil {
		return ledger.Checkpoint{}, &ledger.TransportError{Op: "latest checkpoint", Err: errors.New("empty response")}
	}
	return ledger.Checkpoint{Blockhash: res.Value.Blockhash, LastValidBlockHeight: res.Value.LastValidBlockHeight}, nil
}

func (l *Ledger) BlockHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := l.ctx(ctx)
	defer cancel()
	h, err := l.client.GetBlockHeight(ctx, l.commitment)
	if err != nil {
		return 0, readErr(ctx, "block height", err)
	}
	return h, nil
}

func (l *Ledger) SendSigned(ctx context.Context, raw []byte) (solana.Signature, error) {
	ctx, cancel := l.ctx(ctx)
	defer cancel()
	sig, err := l.client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       l.skipPreflight,
		PreflightCommitment: l.commitment,
	})
	if err != nil {
		err = sendErr(ctx, err)
		l.log.Debug("send failed", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

func (l *Ledger) SignatureStatus(ctx context.Context, sig solana.Signature) (ledger.SignatureStatus, error) {
	ctx, cancel := l.ctx(ctx)
	defer cancel()
	res, err := l.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return ledger.SignatureStatus{}, readErr(ctx, "signature status", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return ledger.SignatureStatus{Status: ledger.StatusUnknown}, nil
	}
	v := res.Value[0]
	st := ledger.SignatureStatus{Slot: v.Slot}
	switch {
	case v.Err != nil:
		st.Status = ledger.StatusFailed
		st.Err = errText(v.Err)
	case l.reached(v.ConfirmationStatus):
		st.Status = ledger.StatusSuccess
	default:
		st.Status = ledger.StatusPending
	}
	return st, nil
}

// reached reports whether a confirmation status satisfies the configured
// commitment.
func (l *Ledger) reached(cs rpc.ConfirmationStatusType) bool {
	rank := map[rpc.ConfirmationStatusType]int{
		rpc.ConfirmationStatusProcessed: 1,
		rpc.ConfirmationStatusConfirmed: 2,
		rpc.ConfirmationStatusFinalized: 3,
	}
	want := map[rpc.CommitmentType]int{
		rpc.CommitmentProcessed: 1,
		rpc.CommitmentConfirmed: 2,
		rpc.CommitmentFinalized: 3,
	}[l.commitment]
	if want == 0 {
		want = 2
	}
	return rank[cs] >= want
}

func (l *Ledger) Logs(ctx context.Context, sig solana.Signature) ([]string, error) {
	ctx, cancel := l.ctx(ctx)
	defer cancel()
	version := uint64(0)
	res, err := l.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     l.commitment,
		MaxSupportedTransactionVersion: &version,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, sig)
		}
		return nil, readErr(ctx, "logs", err)
	}
	if res == nil || res.Meta == nil {
		return nil, nil
	}
	return res.Meta.LogMessages, nil
}

func errText(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
