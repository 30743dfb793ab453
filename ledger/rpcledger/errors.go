package rpcledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"noema.dev/ledgerkit/ledger"
)

// JSON-RPC error codes the cluster uses for conditions that clear up on
// their own.
const (
	codeBlockNotAvailable = -32004
	codeNodeUnhealthy     = -32005
	codeMinContextSlot    = -32016
	codeInvalidParams     = -32602
)

func transient(code int) bool {
	switch code {
	case codeBlockNotAvailable, codeNodeUnhealthy, codeMinContextSlot:
		return true
	}
	return false
}

func asRPCError(err error) (*jsonrpc.RPCError, bool) {
	var re *jsonrpc.RPCError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// readErr classifies a failed read. Anything that is not a server-side
// answer counts as transport.
func readErr(ctx context.Context, op string, err error) error {
	re, ok := asRPCError(err)
	if !ok || transient(re.Code) {
		return &ledger.TransportError{Op: op, Err: withCtx(ctx, err)}
	}
	return fmt.Errorf("rpcledger: %s: %w", op, err)
}

// sendErr maps a sendTransaction failure into the ledger taxonomy.
func sendErr(ctx context.Context, err error) error {
	re, ok := asRPCError(err)
	if !ok {
		return &ledger.TransportError{Op: "send", Err: withCtx(ctx, err)}
	}
	detail, logs := simulation(re)
	switch {
	case ledger.IsAlreadyProcessedMessage(re.Message), ledger.IsAlreadyProcessedMessage(detail):
		return fmt.Errorf("%w: %s", ledger.ErrAlreadyProcessed, re.Message)
	case transient(re.Code):
		return &ledger.TransportError{Op: "send", Err: err}
	case re.Code == codeInvalidParams:
		return fmt.Errorf("%w: %s", ledger.ErrMalformedTx, re.Message)
	}
	msg := re.Message
	if detail != "" {
		msg += ": " + detail
	}
	return ledger.Reject(msg, logs)
}

// simulation extracts the structured error and program logs that preflight
// failures carry in the error data.
func simulation(re *jsonrpc.RPCError) (string, []string) {
	data, ok := re.Data.(map[string]interface{})
	if !ok {
		return "", nil
	}
	var detail string
	if e, ok := data["err"]; ok && e != nil {
		detail = errText(e)
	}
	var logs []string
	if raw, ok := data["logs"].([]interface{}); ok {
		for _, l := range raw {
			if s, ok := l.(string); ok {
				logs = append(logs, s)
			}
		}
	}
	return detail, logs
}

func withCtx(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		return fmt.Errorf("%w: %v", cerr, err)
	}
	return err
}
