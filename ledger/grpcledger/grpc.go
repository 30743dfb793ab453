package grpcledger

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "noema.ledgerkit.ledger.v1.Ledger"

// LedgerServer is the server API for the Ledger gRPC service.
//
// Messages are protobuf well-known types so no codegen toolchain is needed.
// Accounts, checkpoints and statuses travel as structpb.Struct; see codec.go
// for the field names.
type LedgerServer interface {
	GetAccount(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetMultipleAccounts(context.Context, *structpb.ListValue) (*structpb.ListValue, error)
	LatestCheckpoint(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	BlockHeight(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	SendSigned(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	SignatureStatus(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Logs(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
}

// UnimplementedLedgerServer can be embedded to have forward compatible implementations.
type UnimplementedLedgerServer struct{}

func (UnimplementedLedgerServer) GetAccount(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAccount not implemented")
}
func (UnimplementedLedgerServer) GetMultipleAccounts(context.Context, *structpb.ListValue) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method GetMultipleAccounts not implemented")
}
func (UnimplementedLedgerServer) LatestCheckpoint(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method LatestCheckpoint not implemented")
}
func (UnimplementedLedgerServer) BlockHeight(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method BlockHeight not implemented")
}
func (UnimplementedLedgerServer) SendSigned(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method SendSigned not implemented")
}
func (UnimplementedLedgerServer) SignatureStatus(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SignatureStatus not implemented")
}
func (UnimplementedLedgerServer) Logs(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Logs not implemented")
}

// RegisterLedgerServer registers the Ledger service on a gRPC server.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&Ledger_ServiceDesc, srv)
}

// LedgerClient is the client API for the Ledger gRPC service.
type LedgerClient interface {
	GetAccount(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetMultipleAccounts(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
	LatestCheckpoint(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	BlockHeight(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	SendSigned(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	SignatureStatus(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Logs(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type ledgerClient struct{ cc grpc.ClientConnInterface }

func NewLedgerClient(cc grpc.ClientConnInterface) LedgerClient { return &ledgerClient{cc: cc} }

func invoke[T any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*T, error) {
	out := new(T)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) GetAccount(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "GetAccount", in, opts)
}

func (c *ledgerClient) GetMultipleAccounts(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, "GetMultipleAccounts", in, opts)
}

func (c *ledgerClient) LatestCheckpoint(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "LatestCheckpoint", in, opts)
}

func (c *ledgerClient) BlockHeight(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	return invoke[wrapperspb.UInt64Value](ctx, c.cc, "BlockHeight", in, opts)
}

func (c *ledgerClient) SendSigned(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "SendSigned", in, opts)
}

func (c *ledgerClient) SignatureStatus(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "SignatureStatus", in, opts)
}

func (c *ledgerClient) Logs(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, "Logs", in, opts)
}

func unary[In any](method string, call func(LedgerServer, context.Context, *In) (any, error)) grpc.MethodDesc {
	full := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(In)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(LedgerServer), ctx, req.(*In))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Ledger_ServiceDesc is the grpc.ServiceDesc for the Ledger service.
var Ledger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetAccount", func(s LedgerServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.GetAccount(ctx, in)
		}),
		unary("GetMultipleAccounts", func(s LedgerServer, ctx context.Context, in *structpb.ListValue) (any, error) {
			return s.GetMultipleAccounts(ctx, in)
		}),
		unary("LatestCheckpoint", func(s LedgerServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.LatestCheckpoint(ctx, in)
		}),
		unary("BlockHeight", func(s LedgerServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.BlockHeight(ctx, in)
		}),
		unary("SendSigned", func(s LedgerServer, ctx context.Context, in *wrapperspb.BytesValue) (any, error) {
			return s.SendSigned(ctx, in)
		}),
		unary("SignatureStatus", func(s LedgerServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.SignatureStatus(ctx, in)
		}),
		unary("Logs", func(s LedgerServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.Logs(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger.proto",
}
