// Package programs builds instructions for the deployed registry, staking,
// attestation, consensus and payment programs.
package programs

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/address"
	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/instruction"
)

// Argument limits enforced by the programs, checked before building so a bad
// request never costs a fee.
const (
	MaxRegistryAgentID = 64
	MaxAgentID         = 32
	MaxName            = 64
	MaxURI             = 200
	MaxMemo            = 200
	MaxRequestID       = 64
	MaxValidators      = 10
)

var (
	ErrInvalidArgument = errors.New("programs: invalid argument")
	ErrNotDeployed     = errors.New("programs: program not configured for this cluster")
)

// Builder assembles instructions for one cluster's deployment.
type Builder struct {
	programs config.Programs
	mints    config.Mints
	derive   *address.Deriver
}

func New(programs config.Programs, mints config.Mints) *Builder {
	return &Builder{programs: programs, mints: mints, derive: address.NewDeriver(programs)}
}

// FromConfig resolves ids from cfg.
func FromConfig(cfg config.Config) (*Builder, error) {
	p, err := cfg.Programs.Resolve()
	if err != nil {
		return nil, err
	}
	m, err := cfg.Mints.Resolve()
	if err != nil {
		return nil, err
	}
	return New(p, m), nil
}

func (b *Builder) Deriver() *address.Deriver { return b.derive }

func checkString(field, v string, max int) error {
	if !utf8.ValidString(v) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidArgument, field)
	}
	if len(v) > max {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrInvalidArgument, field, len(v), max)
	}
	return nil
}

func checkNonEmpty(field, v string, max int) error {
	if v == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidArgument, field)
	}
	return checkString(field, v, max)
}

func deployed(name string, id solana.PublicKey) error {
	if id.IsZero() {
		return fmt.Errorf("%w: %s", ErrNotDeployed, name)
	}
	return nil
}

// tokenAccount is the associated token account of owner for mint.
func tokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	pda, err := address.TokenAccount(owner, mint)
	return pda.Address, err
}

// Memo builds a memo program instruction signed by signers.
func Memo(text string, signers ...solana.PublicKey) (*instruction.Instruction, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("%w: memo needs a signer", ErrInvalidArgument)
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: memo is not valid UTF-8", ErrInvalidArgument)
	}
	roles := make([]instruction.Role, len(signers))
	for i, s := range signers {
		roles[i] = instruction.Signer(s)
	}
	return instruction.Raw(solana.MemoProgramID, roles, []byte(text))
}
