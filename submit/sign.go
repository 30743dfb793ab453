package submit

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/ledger"
)

// Signer is a signing capability. The private key never has to leave it.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

type privateKeySigner struct{ key solana.PrivateKey }

// PrivateKey adapts an in-memory key to Signer.
func PrivateKey(key solana.PrivateKey) Signer { return privateKeySigner{key: key} }

func (s privateKeySigner) PublicKey() solana.PublicKey { return s.key.PublicKey() }

func (s privateKeySigner) Sign(message []byte) (solana.Signature, error) {
	return s.key.Sign(message)
}

// Request is one logical submission.
type Request struct {
	FeePayer     solana.PublicKey
	Instructions []solana.Instruction
	// Signers must cover every account the instructions mark as signer,
	// including the fee payer.
	Signers []Signer
}

// Signed is a transaction ready to send. Raw is never re-signed: every retry
// sends exactly these bytes.
type Signed struct {
	Raw        []byte
	Signature  solana.Signature
	Checkpoint ledger.Checkpoint
}

// Sign fetches a fresh checkpoint and signs req against it.
func (s *Submitter) Sign(ctx context.Context, req Request) (Signed, error) {
	if len(req.Instructions) == 0 {
		return Signed{}, ErrNoInstructions
	}
	if req.FeePayer.IsZero() {
		return Signed{}, fmt.Errorf("%w: fee payer", ErrMissingSigner)
	}
	cp, err := s.ledger.LatestCheckpoint(ctx)
	if err != nil {
		return Signed{}, fmt.Errorf("submit: checkpoint: %w", err)
	}
	return SignWith(req, cp)
}

// SignWith signs req against a caller-supplied checkpoint.
func SignWith(req Request, cp ledger.Checkpoint) (Signed, error) {
	if len(req.Instructions) == 0 {
		return Signed{}, ErrNoInstructions
	}
	tx, err := solana.NewTransaction(req.Instructions, cp.Blockhash, solana.TransactionPayer(req.FeePayer))
	if err != nil {
		return Signed{}, fmt.Errorf("submit: build transaction: %w", err)
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return Signed{}, fmt.Errorf("submit: encode message: %w", err)
	}

	byKey := make(map[solana.PublicKey]Signer, len(req.Signers))
	for _, sg := range req.Signers {
		byKey[sg.PublicKey()] = sg
	}
	n := int(tx.Message.Header.NumRequiredSignatures)
	tx.Signatures = make([]solana.Signature, 0, n)
	for i := 0; i < n; i++ {
		key := tx.Message.AccountKeys[i]
		sg, ok := byKey[key]
		if !ok {
			return Signed{}, fmt.Errorf("%w: %s", ErrMissingSigner, key)
		}
		sig, err := sg.Sign(msg)
		if err != nil {
			return Signed{}, fmt.Errorf("submit: sign with %s: %w", key, err)
		}
		tx.Signatures = append(tx.Signatures, sig)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return Signed{}, fmt.Errorf("submit: encode transaction: %w", err)
	}
	return Signed{Raw: raw, Signature: tx.Signatures[0], Checkpoint: cp}, nil
}
