// Package ledger defines the remote-ledger surface consumed by the account
// reader and the transaction submitter, together with the error taxonomy
// every backend maps its failures into.
package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Account is an account as fetched. It is only valid for the read that produced it.
type Account struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// Checkpoint is the freshness token a transaction is signed against. The
// transaction is only valid while the block height is at most LastValidBlockHeight.
type Checkpoint struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// SignatureStatus is the inclusion state of a transaction. Err holds the
// ledger's error text when Status is StatusFailed.
type SignatureStatus struct {
	Status Status
	Slot   uint64
	Err    string
}

// Ledger is implemented by every backend (RPC, gRPC, in-memory).
//
// Contract:
//   - GetAccount returns ErrNotFound when the account does not exist.
//   - GetMultipleAccounts returns one entry per address, nil where absent.
//   - SendSigned returns ErrAlreadyProcessed when the same signed transaction
//     has already been accepted, a *RejectionError for definite rejections and
//     a *TransportError when delivery could not be confirmed either way.
type Ledger interface {
	GetAccount(ctx context.Context, addr solana.PublicKey) (*Account, error)
	GetMultipleAccounts(ctx context.Context, addrs []solana.PublicKey) ([]*Account, error)
	LatestCheckpoint(ctx context.Context) (Checkpoint, error)
	BlockHeight(ctx context.Context) (uint64, error)
	SendSigned(ctx context.Context, raw []byte) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error)
	Logs(ctx context.Context, sig solana.Signature) ([]string, error)
}
