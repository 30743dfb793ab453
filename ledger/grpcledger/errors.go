package grpcledger

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"noema.dev/ledgerkit/ledger"
)

// Rejections travel as FailedPrecondition with the reason and program logs in
// trailer metadata.
const (
	mdReason = "ledger-reason"
	mdLog    = "ledger-log-bin"
)

// mapErr converts a ledger error into a gRPC status on the server side.
func mapErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if re, ok := ledger.AsRejection(err); ok {
		md := metadata.Pairs(mdReason, string(re.Reason))
		for _, l := range re.Logs {
			md.Append(mdLog, l)
		}
		_ = grpc.SetTrailer(ctx, md)
		return status.Error(codes.FailedPrecondition, re.Detail)
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case ledger.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case ledger.IsAlreadyProcessed(err):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ledger.ErrMalformedTx):
		return status.Error(codes.InvalidArgument, err.Error())
	case ledger.IsTransport(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC converts a client-side RPC failure back into the ledger taxonomy.
// trailer is the metadata received with the failed call, if any.
func mapRPC(ctx context.Context, op string, err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &ledger.TransportError{Op: op, Err: err}
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ledger.ErrAlreadyProcessed, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ledger.ErrMalformedTx, st.Message())
	case codes.FailedPrecondition:
		re := &ledger.RejectionError{Detail: st.Message(), Logs: trailer.Get(mdLog)}
		if r := trailer.Get(mdReason); len(r) > 0 {
			re.Reason = ledger.Reason(r[0])
		} else {
			re.Reason = ledger.Classify(re.Detail, re.Logs)
		}
		return re
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted, codes.Aborted:
		if cerr := ctx.Err(); cerr != nil {
			return &ledger.TransportError{Op: op, Err: fmt.Errorf("%w: %v", cerr, err)}
		}
		return &ledger.TransportError{Op: op, Err: err}
	default:
		return fmt.Errorf("grpcledger: %s: %w", op, err)
	}
}
