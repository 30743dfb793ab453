// Package submit drives a signed transaction to a definite outcome.
//
// A submission moves Built -> Signed -> Sent -> {Confirmed, Rejected,
// AmbiguousTimeout}. Transport failures are retried with the identical signed
// bytes; a transaction is never re-signed, so a retry can never produce a
// second, different transaction.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/storage"
)

type State uint8

const (
	StateBuilt State = iota
	StateSigned
	StateSent
	StateConfirmed
	StateRejected
	StateAmbiguous
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSigned:
		return "signed"
	case StateSent:
		return "sent"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	case StateAmbiguous:
		return "ambiguous-timeout"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Outcome describes a confirmed submission.
type Outcome struct {
	Signature solana.Signature
	State     State
	Slot      uint64
	Logs      []string
	Attempt   uuid.UUID
	// Sends counts SendSigned calls, including retries.
	Sends int
	// AlreadyProcessed is set when the ledger reported the bytes as already
	// accepted and the outcome was resolved by signature.
	AlreadyProcessed bool
}

// Submitter holds no per-submission state and is safe for concurrent use.
type Submitter struct {
	ledger   ledger.Ledger
	policy   config.SubmitPolicy
	log      *zap.Logger
	evidence storage.CAS
	now      func() time.Time
}

type Option func(*Submitter)

func WithPolicy(p config.SubmitPolicy) Option { return func(s *Submitter) { s.policy = p } }

func WithLogger(l *zap.Logger) Option { return func(s *Submitter) { s.log = l } }

// WithEvidence archives every definite rejection in cas.
func WithEvidence(cas storage.CAS) Option { return func(s *Submitter) { s.evidence = cas } }

func WithClock(now func() time.Time) Option { return func(s *Submitter) { s.now = now } }

func New(l ledger.Ledger, opts ...Option) *Submitter {
	def, _ := config.Default(config.ClusterDevnet)
	s := &Submitter{
		ledger: l,
		policy: def.Submit,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.policy.MaxSendAttempts < 1 {
		s.policy.MaxSendAttempts = 1
	}
	if s.policy.PollInterval <= 0 {
		s.policy.PollInterval = def.Submit.PollInterval
	}
	if s.policy.ConfirmTimeout <= 0 {
		s.policy.ConfirmTimeout = def.Submit.ConfirmTimeout
	}
	if s.policy.MaxBackoff < s.policy.BaseBackoff {
		s.policy.MaxBackoff = s.policy.BaseBackoff
	}
	return s
}

// Submit signs req against a fresh checkpoint and drives it to an outcome.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Outcome, error) {
	signed, err := s.Sign(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.SubmitSigned(ctx, signed)
}

// SubmitSigned drives already-signed bytes to an outcome. Calling it again
// with the same Signed value is safe: the ledger reports the duplicate and the
// result is resolved by signature.
func (s *Submitter) SubmitSigned(ctx context.Context, signed Signed) (*Outcome, error) {
	r := &run{
		Submitter: s,
		signed:    signed,
		out:       &Outcome{Signature: signed.Signature, State: StateSigned, Attempt: uuid.New()},
	}
	r.log = s.log.With(
		zap.String("attempt", r.out.Attempt.String()),
		zap.Stringer("signature", signed.Signature),
		zap.Uint64("last_valid_block_height", signed.Checkpoint.LastValidBlockHeight),
	)
	return r.execute(ctx)
}

// Recheck looks up a signature once, typically after an AmbiguousError.
func (s *Submitter) Recheck(ctx context.Context, sig solana.Signature) (*Outcome, error) {
	r := &run{
		Submitter: s,
		signed:    Signed{Signature: sig},
		out:       &Outcome{Signature: sig, State: StateSent, Attempt: uuid.New()},
	}
	r.log = s.log.With(zap.String("attempt", r.out.Attempt.String()), zap.Stringer("signature", sig))
	out, done, err := r.check(ctx)
	if done {
		return out, err
	}
	if err == nil {
		err = errors.New("signature not found")
	}
	return nil, r.ambiguous(err)
}

// run is the state of one submission.
type run struct {
	*Submitter
	signed Signed
	out    *Outcome
	log    *zap.Logger
}

func (r *run) execute(ctx context.Context) (*Outcome, error) {
	if err := r.send(ctx); err != nil {
		return nil, err
	}
	r.out.State = StateSent
	return r.confirm(ctx)
}

func (r *run) send(ctx context.Context) error {
	backoff := r.policy.BaseBackoff
	var lastErr error
	for i := 1; i <= r.policy.MaxSendAttempts; i++ {
		r.out.Sends++
		sig, err := r.ledger.SendSigned(ctx, r.signed.Raw)
		switch {
		case err == nil:
			if sig != r.signed.Signature {
				r.log.Warn("ledger returned a different signature", zap.Stringer("returned", sig))
			}
			r.log.Debug("sent", zap.Int("send", i))
			return nil

		case ledger.IsAlreadyProcessed(err):
			sig, ferr := ledger.FirstSignature(r.signed.Raw)
			if ferr != nil {
				return fmt.Errorf("submit: resolve duplicate: %w", ferr)
			}
			r.signed.Signature = sig
			r.out.Signature = sig
			r.out.AlreadyProcessed = true
			r.log.Info("transaction already processed, resolving by signature")
			return nil

		case isRejection(err):
			re, _ := ledger.AsRejection(err)
			return r.reject(re.Reason, re.Detail, re.Logs, false)

		case ledger.IsTransport(err):
			lastErr = err
			if ctx.Err() != nil {
				return r.ambiguous(ctx.Err())
			}
			r.log.Warn("send failed", zap.Int("send", i), zap.Duration("backoff", backoff), zap.Error(err))
			if i < r.policy.MaxSendAttempts {
				if err := sleep(ctx, backoff); err != nil {
					return r.ambiguous(err)
				}
				backoff = min(backoff*2, r.policy.MaxBackoff)
			}

		default:
			return fmt.Errorf("submit: send: %w", err)
		}
	}

	// A lost acknowledgement looks like a transport failure; the transaction
	// may have landed anyway.
	st, err := r.ledger.SignatureStatus(ctx, r.signed.Signature)
	if err == nil && st.Status != ledger.StatusUnknown {
		r.log.Info("send retries exhausted but transaction is known", zap.Stringer("status", st.Status))
		return nil
	}
	r.log.Error("send retries exhausted", zap.Int("sends", r.out.Sends), zap.Error(lastErr))
	return fmt.Errorf("%w after %d sends: %w", ErrRetriesExhausted, r.out.Sends, lastErr)
}

func isRejection(err error) bool {
	_, ok := ledger.AsRejection(err)
	return ok
}

func (r *run) confirm(ctx context.Context) (*Outcome, error) {
	ticker := time.NewTicker(r.policy.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(r.policy.ConfirmTimeout)
	defer deadline.Stop()

	for {
		out, done, err := r.check(ctx)
		if done {
			return out, err
		}
		if err != nil {
			r.log.Debug("status lookup failed", zap.Error(err))
		}
		h, err := r.ledger.BlockHeight(ctx)
		if err == nil && h > r.signed.Checkpoint.LastValidBlockHeight {
			r.log.Debug("freshness window closed", zap.Uint64("block_height", h))
			break
		}
		select {
		case <-ctx.Done():
			return nil, r.ambiguous(ctx.Err())
		case <-deadline.C:
			r.log.Warn("confirmation timed out", zap.Duration("timeout", r.policy.ConfirmTimeout))
			return nil, r.ambiguous(fmt.Errorf("no outcome within %s", r.policy.ConfirmTimeout))
		case <-ticker.C:
		}
	}

	out, done, err := r.check(ctx)
	if done {
		return out, err
	}
	if err == nil {
		err = errors.New("freshness window closed before inclusion")
	}
	return nil, r.ambiguous(err)
}

// check performs one status lookup. done reports whether the outcome is final.
func (r *run) check(ctx context.Context) (*Outcome, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, true, r.ambiguous(err)
	}
	st, err := r.ledger.SignatureStatus(ctx, r.signed.Signature)
	if err != nil {
		return nil, false, err
	}
	switch st.Status {
	case ledger.StatusSuccess:
		r.out.State = StateConfirmed
		r.out.Slot = st.Slot
		r.out.Logs = r.logs(ctx)
		r.log.Info("confirmed", zap.Uint64("slot", st.Slot), zap.Int("sends", r.out.Sends))
		return r.out, true, nil
	case ledger.StatusFailed:
		logs := r.logs(ctx)
		return nil, true, r.reject(ledger.Classify(st.Err, logs), st.Err, logs, true)
	default:
		return nil, false, nil
	}
}

func (r *run) logs(ctx context.Context) []string {
	logs, err := r.ledger.Logs(ctx, r.signed.Signature)
	if err != nil {
		r.log.Debug("logs unavailable", zap.Error(err))
		return nil
	}
	return logs
}

func (r *run) reject(reason ledger.Reason, detail string, logs []string, landed bool) error {
	r.out.State = StateRejected
	re := &RejectedError{
		Reason:    reason,
		Detail:    detail,
		Logs:      logs,
		Signature: r.signed.Signature,
		Landed:    landed,
		Evidence:  cid.Undef,
	}
	if r.evidence != nil {
		id, err := storage.Archive(r.evidence, storage.Evidence{
			Kind:       storage.KindRejection,
			Subject:    r.signed.Signature.String(),
			Reason:     string(reason),
			Detail:     detail,
			Logs:       logs,
			Raw:        r.signed.Raw,
			Attempt:    r.out.Attempt.String(),
			RecordedAt: r.now().Unix(),
		})
		if err != nil {
			r.log.Warn("archive rejection failed", zap.Error(err))
		} else {
			re.Evidence = id
		}
	}
	fields := []zap.Field{zap.String("reason", string(reason)), zap.String("detail", detail), zap.Bool("landed", landed)}
	if re.Evidence.Defined() {
		fields = append(fields, zap.Stringer("evidence", re.Evidence))
	}
	r.log.Info("rejected", fields...)
	return re
}

func (r *run) ambiguous(cause error) error {
	r.out.State = StateAmbiguous
	r.log.Warn("outcome unknown", zap.Error(cause))
	return &AmbiguousError{
		Signature:            r.signed.Signature,
		LastValidBlockHeight: r.signed.Checkpoint.LastValidBlockHeight,
		Cause:                cause,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
