package ledger

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// FirstSignature reads the transaction id out of signed wire bytes: a
// compact-u16 signature count followed by 64-byte signatures, the first of
// which names the transaction.
func FirstSignature(raw []byte) (solana.Signature, error) {
	count, n, err := bin.DecodeCompactU16(raw)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: signature count: %v", ErrMalformedTx, err)
	}
	if count < 1 {
		return solana.Signature{}, fmt.Errorf("%w: no signatures", ErrMalformedTx)
	}
	if len(raw)-n < 64 {
		return solana.Signature{}, fmt.Errorf("%w: short signature", ErrMalformedTx)
	}
	var sig solana.Signature
	copy(sig[:], raw[n:n+64])
	if sig == (solana.Signature{}) {
		return solana.Signature{}, fmt.Errorf("%w: transaction is not signed", ErrMalformedTx)
	}
	return sig, nil
}
