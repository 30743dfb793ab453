package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/storage"
)

// MaxBatch is the ledger's limit on addresses per multi-account request.
const MaxBatch = 100

var ErrWrongOwner = errors.New("account: owned by an unexpected program")

// FetchError ties a failure to the account it concerns.
type FetchError struct {
	Address solana.PublicKey
	// Evidence is the CID of the archived raw bytes for decode failures.
	Evidence cid.Cid
	Err      error
}

func (e *FetchError) Error() string {
	if e.Evidence.Defined() {
		return fmt.Sprintf("account %s: %v (evidence %s)", e.Address, e.Err, e.Evidence)
	}
	return fmt.Sprintf("account %s: %v", e.Address, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsAbsent reports whether err means "no record of this type here": the
// account does not exist or carries a different selector. Truncated or
// malformed bytes are not absence.
func IsAbsent(err error) bool {
	return ledger.IsNotFound(err) || codec.IsSelectorMismatch(err)
}

// Result is one entry of FetchMany, in request order.
type Result struct {
	Address solana.PublicKey
	Record  codec.Record
	Err     error
}

type Reader struct {
	ledger   ledger.Ledger
	owner    solana.PublicKey
	policy   config.ReaderPolicy
	evidence storage.CAS
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Reader)

// WithOwner rejects accounts not owned by program.
func WithOwner(program solana.PublicKey) Option { return func(r *Reader) { r.owner = program } }

func WithPolicy(p config.ReaderPolicy) Option { return func(r *Reader) { r.policy = p } }

// WithEvidence archives the bytes of accounts that fail to decode.
func WithEvidence(cas storage.CAS) Option { return func(r *Reader) { r.evidence = cas } }

func WithLogger(l *zap.Logger) Option { return func(r *Reader) { r.log = l } }

func WithClock(now func() time.Time) Option { return func(r *Reader) { r.now = now } }

func NewReader(l ledger.Ledger, opts ...Option) *Reader {
	r := &Reader{
		ledger: l,
		policy: config.ReaderPolicy{BatchSize: MaxBatch, Concurrency: 4},
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.policy.BatchSize < 1 || r.policy.BatchSize > MaxBatch {
		r.policy.BatchSize = MaxBatch
	}
	if r.policy.Concurrency < 1 {
		r.policy.Concurrency = 1
	}
	return r
}

// Fetch reads one account as s.
func (r *Reader) Fetch(ctx context.Context, addr solana.PublicKey, s codec.Schema) (codec.Record, error) {
	acc, err := r.ledger.GetAccount(ctx, addr)
	if err != nil {
		return codec.Record{}, &FetchError{Address: addr, Err: err}
	}
	return r.decode(addr, acc, s)
}

// FetchMany reads addrs as s in batches. The returned slice has one entry per
// address. The error is non-nil only when a batch request itself failed.
func (r *Reader) FetchMany(ctx context.Context, addrs []solana.PublicKey, s codec.Schema) ([]Result, error) {
	out := make([]Result, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.policy.Concurrency)
	for start := 0; start < len(addrs); start += r.policy.BatchSize {
		end := min(start+r.policy.BatchSize, len(addrs))
		g.Go(func() error {
			chunk := addrs[start:end]
			accs, err := r.ledger.GetMultipleAccounts(gctx, chunk)
			if err != nil {
				return fmt.Errorf("account: batch %d..%d: %w", start, end, err)
			}
			if len(accs) != len(chunk) {
				return fmt.Errorf("account: batch %d..%d: ledger returned %d entries", start, end, len(accs))
			}
			for i, acc := range accs {
				res := Result{Address: chunk[i]}
				if acc == nil {
					res.Err = &FetchError{Address: chunk[i], Err: ledger.ErrNotFound}
				} else {
					res.Record, res.Err = r.decode(chunk[i], acc, s)
				}
				out[start+i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) decode(addr solana.PublicKey, acc *ledger.Account, s codec.Schema) (codec.Record, error) {
	if !r.owner.IsZero() && acc.Owner != r.owner {
		return codec.Record{}, &FetchError{
			Address: addr,
			Err:     fmt.Errorf("%w: %s", ErrWrongOwner, acc.Owner),
		}
	}
	rec, err := ReadAs(acc.Data, s)
	if err == nil {
		return rec, nil
	}
	fe := &FetchError{Address: addr, Err: err}
	if IsAbsent(err) || r.evidence == nil {
		return codec.Record{}, fe
	}

	var ce *codec.Error
	reason := "decode"
	if errors.As(err, &ce) {
		reason = string(ce.Kind)
	}
	id, aerr := storage.Archive(r.evidence, storage.Evidence{
		Kind:       storage.KindDecodeFailure,
		Subject:    addr.String(),
		Record:     s.Name,
		Reason:     reason,
		Detail:     err.Error(),
		Raw:        acc.Data,
		RecordedAt: r.now().Unix(),
	})
	if aerr != nil {
		r.log.Warn("archive decode failure", zap.Stringer("account", addr), zap.Error(aerr))
		return codec.Record{}, fe
	}
	fe.Evidence = id
	r.log.Info("undecodable account archived",
		zap.Stringer("account", addr), zap.String("record", s.Name), zap.Stringer("evidence", id), zap.Error(err))
	return codec.Record{}, fe
}
