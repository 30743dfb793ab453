// Package address derives program addresses: deterministic 32-byte keys that
// are guaranteed not to be valid ed25519 public keys, so no private key can
// sign for them.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

const (
	// MaxSeedLength is the ledger's per-seed byte ceiling.
	MaxSeedLength = 32
	// MaxSeeds counts the bump byte as a seed.
	MaxSeeds = 16

	derivationMarker = "ProgramDerivedAddress"
)

var (
	ErrSeedTooLong = errors.New("address: seed too long")
	ErrNoValidBump = errors.New("address: no valid bump found")
	ErrOnCurve     = errors.New("address: derived address is on curve")
)

// Derive returns the first off-curve address for program and seeds, scanning the
// bump from 255 down to 1, together with that bump.
func Derive(program solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return solana.PublicKey{}, 0, err
	}
	return derive(program, seeds, IsOnCurve)
}

// derive never tries bump 0.
func derive(program solana.PublicKey, seeds [][]byte, onCurve func([]byte) bool) (solana.PublicKey, uint8, error) {
	for bump := 255; bump >= 1; bump-- {
		candidate := hashCandidate(program, seeds, []byte{byte(bump)})
		if !onCurve(candidate[:]) {
			return candidate, uint8(bump), nil
		}
	}
	return solana.PublicKey{}, 0, ErrNoValidBump
}

// CreateAddress recomputes the address for a known bump. It fails with
// ErrOnCurve when that bump does not produce a program address.
func CreateAddress(program solana.PublicKey, bump uint8, seeds ...[]byte) (solana.PublicKey, error) {
	if err := checkSeeds(seeds); err != nil {
		return solana.PublicKey{}, err
	}
	candidate := hashCandidate(program, seeds, []byte{bump})
	if IsOnCurve(candidate[:]) {
		return solana.PublicKey{}, ErrOnCurve
	}
	return candidate, nil
}

// WithSeed computes sha256(base || seed || owner), the ledger's seeded
// wallet-style address. The result carries no curve guarantee.
func WithSeed(base solana.PublicKey, seed string, owner solana.PublicKey) (solana.PublicKey, error) {
	if len(seed) > MaxSeedLength {
		return solana.PublicKey{}, fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(seed))
	}
	h := sha256.New()
	_, _ = h.Write(base[:])
	_, _ = h.Write([]byte(seed))
	_, _ = h.Write(owner[:])
	var out solana.PublicKey
	copy(out[:], h.Sum(nil))
	return out, nil
}

// IsOnCurve reports whether b is the compressed encoding of an ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

func checkSeeds(seeds [][]byte) error {
	if n := len(seeds) + 1; n > MaxSeeds {
		return fmt.Errorf("%w: %d seeds with bump exceeds %d", ErrSeedTooLong, n, MaxSeeds)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d is %d bytes", ErrSeedTooLong, i, len(s))
		}
	}
	return nil
}

func hashCandidate(program solana.PublicKey, seeds [][]byte, bump []byte) solana.PublicKey {
	h := sha256.New()
	for _, s := range seeds {
		_, _ = h.Write(s)
	}
	_, _ = h.Write(bump)
	_, _ = h.Write(program[:])
	_, _ = h.Write([]byte(derivationMarker))
	var out solana.PublicKey
	copy(out[:], h.Sum(nil))
	return out
}
