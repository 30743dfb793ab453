package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("ledger: not found")
	ErrAlreadyProcessed = errors.New("ledger: transaction already processed")
	ErrMalformedTx      = errors.New("ledger: malformed transaction")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyProcessed(err error) bool { return errors.Is(err, ErrAlreadyProcessed) }

// TransportError is a failure to talk to the ledger: connection reset, timeout,
// rate limiting. The request may or may not have reached the ledger.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger: %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Reason classifies a definite rejection.
type Reason string

const (
	ReasonInsufficientFunds         Reason = "InsufficientFunds"
	ReasonStaleCheckpoint           Reason = "StaleCheckpoint"
	ReasonSimulationFailed          Reason = "SimulationFailed"
	ReasonAccountAlreadyInitialized Reason = "AccountAlreadyInitialized"
	ReasonInstructionNotRecognized  Reason = "InstructionNotRecognized"
)

// RejectionError is a definite rejection by the ledger. Retrying the same
// transaction cannot succeed.
type RejectionError struct {
	Reason Reason
	Detail string
	Logs   []string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("ledger: rejected: %s", e.Reason)
	}
	return fmt.Sprintf("ledger: rejected: %s: %s", e.Reason, e.Detail)
}

// AsRejection extracts a *RejectionError from err.
func AsRejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Reject builds a classified rejection from the ledger's error text and logs.
func Reject(detail string, logs []string) *RejectionError {
	return &RejectionError{Reason: Classify(detail, logs), Detail: detail, Logs: logs}
}

var reasonMarkers = []struct {
	reason  Reason
	markers []string
}{
	{ReasonStaleCheckpoint, []string{
		"blockhash not found",
		"blockhashnotfound",
		"block height exceeded",
		"transaction expired",
	}},
	{ReasonInsufficientFunds, []string{
		"insufficient funds",
		"insufficient lamports",
		"insufficientfunds",
		"no record of a prior credit",
		"accountnotfound",
	}},
	{ReasonAccountAlreadyInitialized, []string{
		"already in use",
		"accountalreadyinitialized",
		"already initialized",
	}},
	{ReasonInstructionNotRecognized, []string{
		"instructionfallbacknotfound",
		"instructionmissing",
		"instructiondidnotdeserialize",
		"fallback functions are not supported",
		"invalid instruction data",
		"custom program error: 0x64",
		"custom program error: 0x65",
		"custom program error: 0x66",
	}},
}

// Classify maps a ledger error message (and optional program logs) to a Reason.
// Anything unrecognised is a simulation failure.
func Classify(detail string, logs []string) Reason {
	texts := make([]string, 0, len(logs)+1)
	texts = append(texts, strings.ToLower(detail))
	for _, l := range logs {
		texts = append(texts, strings.ToLower(l))
	}
	for _, rm := range reasonMarkers {
		for _, m := range rm.markers {
			for _, t := range texts {
				if strings.Contains(t, m) {
					return rm.reason
				}
			}
		}
	}
	return ReasonSimulationFailed
}

// IsAlreadyProcessedMessage reports whether a ledger error message says the
// transaction was already accepted.
func IsAlreadyProcessedMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "already been processed") || strings.Contains(m, "alreadyprocessed")
}
