package grpcledger

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"noema.dev/ledgerkit/ledger"
)

// Server exposes a ledger.Ledger over the Ledger gRPC service.
type Server struct {
	UnimplementedLedgerServer
	Ledger ledger.Ledger
}

func (s *Server) backend() (ledger.Ledger, error) {
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.Unavailable, "no ledger backend")
	}
	return s.Ledger, nil
}

func parsePubkey(v string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, status.Errorf(codes.InvalidArgument, "address %q: %v", v, err)
	}
	return pk, nil
}

func parseSignature(v string) (solana.Signature, error) {
	sig, err := solana.SignatureFromBase58(v)
	if err != nil {
		return solana.Signature{}, status.Errorf(codes.InvalidArgument, "signature %q: %v", v, err)
	}
	return sig, nil
}

func (s *Server) GetAccount(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	l, err := s.backend()
	if err != nil {
		return nil, err
	}
	addr, err := parsePubkey(in.GetValue())
	if err != nil {
		return nil, err
	}
	acc, err := l.GetAccount(ctx, addr)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	return accountToStruct(acc), nil
}

func (s *Server) GetMultipleAccounts(ctx context.Context, in *structpb.ListValue) (*structpb.ListValue, error) {
	l, err := s.backend()
	if err != nil {
		return nil, err
	}
	addrs := make([]solana.PublicKey, 0, len(in.GetValues()))
	for _, v := range listToStrings(in) {
		pk, err := parsePubkey(v)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, pk)
	}
	accs, err := l.GetMultipleAccounts(ctx, addrs)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, len(accs))}
	for i, a := range accs {
		if a == nil {
			out.Values[i] = structpb.NewNullValue()
			continue
		}
		out.Values[i] = structpb.NewStructValue(accountToStruct(a))
	}
	return out, nil
}

func (s *Server) LatestCheckpoint(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	l, err := s.backend()
	if err != nil {
		return nil, err
	}
	cp, err := l.LatestCheckpoint(ctx)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	return checkpointToStruct(cp), nil
}

func (s *Server) BlockHeight(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	l, err := s.backend()
	if err != nil {
		return nil, err
	}
	h, err := l.BlockHeight(ctx)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	return wrapperspb.UInt64(h), nil
}

func (s *Server) SendSigned(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	l, err := s.backend()
	if err != nil {
		return nil, err
	}
	sig, err := l.SendSigned(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	return wrapperspb.String(sig.String()), nil
}

func (s *Server) SignatureStatus(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	l, err := s.backend()
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature(in.GetValue())
	if err != nil {
		return nil, err
	}
	st, err := l.SignatureStatus(ctx, sig)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	return statusToStruct(st), nil
}

func (s *Server) Logs(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	l, err := s.backend()
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature(in.GetValue())
	if err != nil {
		return nil, err
	}
	logs, err := l.Logs(ctx, sig)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	return stringsToList(logs), nil
}

// LoggingInterceptor logs every call with its method, gRPC code and duration.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Stringer("code", code),
			zap.Duration("elapsed", time.Since(start)),
		}
		switch code {
		case codes.OK, codes.NotFound:
			log.Debug("rpc", fields...)
		case codes.Internal, codes.Unknown:
			log.Error("rpc", append(fields, zap.Error(err))...)
		default:
			log.Info("rpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
