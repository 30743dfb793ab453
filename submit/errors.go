package submit

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/ipfs/go-cid"

	"noema.dev/ledgerkit/ledger"
)

var (
	ErrNoInstructions   = errors.New("submit: no instructions")
	ErrMissingSigner    = errors.New("submit: missing signer")
	ErrRejected         = errors.New("submit: rejected")
	ErrRetriesExhausted = errors.New("submit: send retries exhausted")
	ErrAmbiguousTimeout = errors.New("submit: outcome unknown")
)

// RejectedError is a definite rejection. The transaction either never landed
// (Landed is false) or landed and failed. Resubmitting the same bytes cannot
// succeed.
type RejectedError struct {
	Reason    ledger.Reason
	Detail    string
	Logs      []string
	Signature solana.Signature
	Landed    bool
	// Evidence is the CID of the archived rejection, cid.Undef when archiving
	// is disabled or failed.
	Evidence cid.Cid
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("submit: %s rejected: %s", e.Signature, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// AmbiguousError means the submitter could not determine the outcome. The
// transaction may still land until the block height passes
// LastValidBlockHeight; use Submitter.Recheck with Signature.
type AmbiguousError struct {
	Signature            solana.Signature
	LastValidBlockHeight uint64
	Cause                error
}

func (e *AmbiguousError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("submit: %s: outcome unknown: %v", e.Signature, e.Cause)
	}
	return fmt.Sprintf("submit: %s: outcome unknown", e.Signature)
}

func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguousTimeout }

func (e *AmbiguousError) Unwrap() error { return e.Cause }

func AsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func AsAmbiguous(err error) (*AmbiguousError, bool) {
	var ae *AmbiguousError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
