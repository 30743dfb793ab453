package grpcledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"noema.dev/ledgerkit/ledger"
)

// Client implements ledger.Ledger over a Ledger gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ ledger.Ledger = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		dialOpts = append(dialOpts, grpc.WithBlock())
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, &ledger.TransportError{Op: "dial", Err: err}
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewLedgerClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

func (c *Client) GetAccount(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.GetAccount(ctx, wrapperspb.String(addr.String()))
	if err != nil {
		return nil, mapRPC(ctx, "get account", err, nil)
	}
	return accountFromStruct(reply)
}

func (c *Client) GetMultipleAccounts(ctx context.Context, addrs []solana.PublicKey) ([]*ledger.Account, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	in := make([]string, len(addrs))
	for i, a := range addrs {
		in[i] = a.String()
	}
	reply, err := c.client.GetMultipleAccounts(ctx, stringsToList(in))
	if err != nil {
		return nil, mapRPC(ctx, "get multiple accounts", err, nil)
	}
	if len(reply.GetValues()) != len(addrs) {
		return nil, fmt.Errorf("grpcledger: got %d accounts for %d addresses", len(reply.GetValues()), len(addrs))
	}
	out := make([]*ledger.Account, len(addrs))
	for i, v := range reply.GetValues() {
		if _, null := v.GetKind().(*structpb.Value_NullValue); null {
			continue
		}
		acc, err := accountFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		out[i] = acc
	}
	return out, nil
}

func (c *Client) LatestCheckpoint(ctx context.Context) (ledger.Checkpoint, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.LatestCheckpoint(ctx, &emptypb.Empty{})
	if err != nil {
		return ledger.Checkpoint{}, mapRPC(ctx, "latest checkpoint", err, nil)
	}
	return checkpointFromStruct(reply)
}

func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.BlockHeight(ctx, &emptypb.Empty{})
	if err != nil {
		return 0, mapRPC(ctx, "block height", err, nil)
	}
	return reply.GetValue(), nil
}

func (c *Client) SendSigned(ctx context.Context, raw []byte) (solana.Signature, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	var trailer metadata.MD
	reply, err := c.client.SendSigned(ctx, wrapperspb.Bytes(raw), grpc.Trailer(&trailer))
	if err != nil {
		return solana.Signature{}, mapRPC(ctx, "send", err, trailer)
	}
	sig, err := solana.SignatureFromBase58(reply.GetValue())
	if err != nil {
		return solana.Signature{}, fmt.Errorf("grpcledger: signature: %w", err)
	}
	return sig, nil
}

func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (ledger.SignatureStatus, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.SignatureStatus(ctx, wrapperspb.String(sig.String()))
	if err != nil {
		return ledger.SignatureStatus{}, mapRPC(ctx, "signature status", err, nil)
	}
	return statusFromStruct(reply)
}

func (c *Client) Logs(ctx context.Context, sig solana.Signature) ([]string, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Logs(ctx, wrapperspb.String(sig.String()))
	if err != nil {
		return nil, mapRPC(ctx, "logs", err, nil)
	}
	return listToStrings(reply), nil
}
