// Package identity resolves agent ids to their registered owner wallets.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/account"
	"noema.dev/ledgerkit/address"
	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/records"
)

// MaxAgentIDLength is the registry's limit on agent ids, in bytes.
const MaxAgentIDLength = 64

var (
	ErrNotFound       = errors.New("identity: not registered")
	ErrInactive       = errors.New("identity: deactivated")
	ErrInvalidAgentID = errors.New("identity: invalid agent id")
)

// NormalizeAgentID trims surrounding whitespace and lowercases id. Agent ids
// are registered in this form.
func NormalizeAgentID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ValidateAgentID checks a normalized id against the registry's limits.
func ValidateAgentID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAgentID)
	}
	if len(id) > MaxAgentIDLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidAgentID, len(id), MaxAgentIDLength)
	}
	if len(id) > address.MaxSeedLength {
		return fmt.Errorf("%w: %d bytes cannot seed an address", ErrInvalidAgentID, len(id))
	}
	return nil
}

// Resolved is a registered, active identity.
type Resolved struct {
	AgentID  string
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Identity records.Identity
}

type Resolver struct {
	reader  *account.Reader
	deriver *address.Deriver
}

func NewResolver(reader *account.Reader, deriver *address.Deriver) *Resolver {
	return &Resolver{reader: reader, deriver: deriver}
}

// Resolve looks up agentID after normalizing it.
func (r *Resolver) Resolve(ctx context.Context, agentID string) (Resolved, error) {
	id := NormalizeAgentID(agentID)
	if err := ValidateAgentID(id); err != nil {
		return Resolved{}, err
	}
	pda, err := r.deriver.Identity(id)
	if err != nil {
		return Resolved{}, err
	}
	rec, err := r.reader.Fetch(ctx, pda.Address, records.IdentitySchema)
	return finish(id, pda.Address, rec, err)
}

// BatchResult is one entry of ResolveBatch, in request order.
type BatchResult struct {
	Resolved
	Err error
}

// ResolveBatch resolves many ids with batched account reads. Per-id failures
// are reported in the results; the error is for whole-batch failures.
func (r *Resolver) ResolveBatch(ctx context.Context, agentIDs []string) ([]BatchResult, error) {
	out := make([]BatchResult, len(agentIDs))
	var (
		addrs []solana.PublicKey
		index []int
	)
	for i, raw := range agentIDs {
		id := NormalizeAgentID(raw)
		out[i].AgentID = id
		if err := ValidateAgentID(id); err != nil {
			out[i].Err = err
			continue
		}
		pda, err := r.deriver.Identity(id)
		if err != nil {
			out[i].Err = err
			continue
		}
		out[i].Address = pda.Address
		addrs = append(addrs, pda.Address)
		index = append(index, i)
	}
	if len(addrs) == 0 {
		return out, nil
	}
	results, err := r.reader.FetchMany(ctx, addrs, records.IdentitySchema)
	if err != nil {
		return nil, err
	}
	for j, res := range results {
		i := index[j]
		out[i].Resolved, out[i].Err = finish(out[i].AgentID, res.Address, res.Record, res.Err)
	}
	return out, nil
}

func finish(id string, addr solana.PublicKey, rec codec.Record, err error) (Resolved, error) {
	res := Resolved{AgentID: id, Address: addr}
	if err != nil {
		if account.IsAbsent(err) {
			return res, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return res, err
	}
	ident, err := records.IdentityFromRecord(rec)
	if err != nil {
		return res, err
	}
	res.Identity = ident
	res.Owner = ident.Owner
	if !ident.IsActive {
		return res, fmt.Errorf("%w: %s", ErrInactive, id)
	}
	return res, nil
}
