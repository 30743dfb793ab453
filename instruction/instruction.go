// Package instruction assembles outbound program instructions: the program id,
// the ordered account roles and a payload of selector || encoded arguments.
package instruction

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/selector"
)

var ErrInvalidRoles = errors.New("instruction: invalid roles")

// Role is one account reference of an instruction.
type Role struct {
	Address  solana.PublicKey
	Signer   bool
	Writable bool
	// FeePayer marks the primary signer. At most one role may set it.
	FeePayer bool
}

func Readonly(addr solana.PublicKey) Role { return Role{Address: addr} }

func Writable(addr solana.PublicKey) Role { return Role{Address: addr, Writable: true} }

func Signer(addr solana.PublicKey) Role { return Role{Address: addr, Signer: true} }

// Payer is a writable signer that pays fees.
func Payer(addr solana.PublicKey) Role {
	return Role{Address: addr, Signer: true, Writable: true, FeePayer: true}
}

// Instruction is immutable once built and implements solana.Instruction.
type Instruction struct {
	program solana.PublicKey
	roles   []Role
	method  string
	payload []byte
}

var _ solana.Instruction = (*Instruction)(nil)

// Build assembles an instruction calling method on program.
func Build(program solana.PublicKey, roles []Role, method string, args codec.Schema, values []any) (*Instruction, error) {
	if err := ValidateRoles(roles); err != nil {
		return nil, err
	}
	body, err := codec.Encode(args, values)
	if err != nil {
		return nil, fmt.Errorf("instruction: %s: %w", method, err)
	}
	sel := selector.Instruction(method)
	payload := make([]byte, 0, selector.Size+len(body))
	payload = append(payload, sel[:]...)
	payload = append(payload, body...)
	return &Instruction{
		program: program,
		roles:   append([]Role(nil), roles...),
		method:  method,
		payload: payload,
	}, nil
}

// Raw wraps a pre-encoded payload for programs that do not use selectors.
func Raw(program solana.PublicKey, roles []Role, payload []byte) (*Instruction, error) {
	if err := ValidateRoles(roles); err != nil {
		return nil, err
	}
	return &Instruction{
		program: program,
		roles:   append([]Role(nil), roles...),
		payload: bytes.Clone(payload),
	}, nil
}

// ValidateRoles requires a non-empty role list with at most one fee payer,
// and that the fee payer signs.
func ValidateRoles(roles []Role) error {
	if len(roles) == 0 {
		return fmt.Errorf("%w: no accounts", ErrInvalidRoles)
	}
	payers := 0
	for i, r := range roles {
		if !r.FeePayer {
			continue
		}
		payers++
		if !r.Signer {
			return fmt.Errorf("%w: fee payer %d (%s) is not a signer", ErrInvalidRoles, i, r.Address)
		}
	}
	if payers > 1 {
		return fmt.Errorf("%w: %d fee payers", ErrInvalidRoles, payers)
	}
	return nil
}

func (in *Instruction) ProgramID() solana.PublicKey { return in.program }

func (in *Instruction) Accounts() []*solana.AccountMeta {
	out := make([]*solana.AccountMeta, len(in.roles))
	for i, r := range in.roles {
		out[i] = solana.NewAccountMeta(r.Address, r.Writable, r.Signer)
	}
	return out
}

func (in *Instruction) Data() ([]byte, error) { return bytes.Clone(in.payload), nil }

// Method is the instruction name, empty for Raw instructions.
func (in *Instruction) Method() string { return in.method }

func (in *Instruction) Roles() []Role { return append([]Role(nil), in.roles...) }

// FeePayer returns the role marked as fee payer, if any.
func (in *Instruction) FeePayer() (solana.PublicKey, bool) {
	for _, r := range in.roles {
		if r.FeePayer {
			return r.Address, true
		}
	}
	return solana.PublicKey{}, false
}

// Selector returns the leading selector of the payload.
func (in *Instruction) Selector() (selector.Selector, bool) {
	if in.method == "" || len(in.payload) < selector.Size {
		return selector.Selector{}, false
	}
	return selector.Selector(in.payload[:selector.Size]), true
}
