package programs

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/instruction"
)

var InstantPaymentArgs = codec.Schema{Name: "instant_payment", Fields: []codec.Field{
	codec.F("amount", codec.U64),
	codec.F("memo", codec.String),
}}

// Payment is the argument set of InstantPayment. Timestamp seeds the payment
// record address and must be the unix time the payment is sent at.
type Payment struct {
	Sender    solana.PublicKey
	Recipient solana.PublicKey
	Treasury  solana.PublicKey
	Amount    uint64
	Memo      string
	Timestamp int64
}

// InstantPayment transfers USDC from sender to recipient, minus the platform
// fee paid to the treasury. It returns the payment record address.
func (b *Builder) InstantPayment(p Payment) (*instruction.Instruction, solana.PublicKey, error) {
	if err := deployed("payments", b.programs.Payments); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if b.mints.USDC.IsZero() {
		return nil, solana.PublicKey{}, fmt.Errorf("%w: usdc mint", ErrNotDeployed)
	}
	if err := positive("amount", p.Amount); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if err := checkString("memo", p.Memo, MaxMemo); err != nil {
		return nil, solana.PublicKey{}, err
	}
	payment, err := b.derive.Payment(p.Sender, p.Recipient, p.Timestamp)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	cfg, err := b.derive.PaymentsConfig()
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	atas := make([]solana.PublicKey, 3)
	for i, owner := range []solana.PublicKey{p.Sender, p.Recipient, p.Treasury} {
		if atas[i], err = tokenAccount(owner, b.mints.USDC); err != nil {
			return nil, solana.PublicKey{}, err
		}
	}
	in, err := instruction.Build(b.programs.Payments, []instruction.Role{
		instruction.Writable(payment.Address),
		instruction.Writable(cfg.Address),
		instruction.Payer(p.Sender),
		instruction.Readonly(p.Recipient),
		instruction.Writable(atas[0]),
		instruction.Writable(atas[1]),
		instruction.Writable(atas[2]),
		instruction.Readonly(solana.TokenProgramID),
		instruction.Readonly(solana.SystemProgramID),
	}, "instant_payment", InstantPaymentArgs, []any{p.Amount, p.Memo})
	return in, payment.Address, err
}
