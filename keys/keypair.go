package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"noema.dev/ledgerkit/submit"
)

var ErrInvalidKeypair = errors.New("keys: invalid keypair")

// ParseKeypairJSON parses the solana-keygen format: a JSON array of the 64
// keypair bytes. The public half must match the secret half.
func ParseKeypairJSON(data []byte) (solana.PrivateKey, error) {
	var raw []byte
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte value %d out of range", ErrInvalidKeypair, v)
		}
		raw = append(raw, byte(v))
	}
	return checkKeypair(raw)
}

// MarshalKeypairJSON renders key in the solana-keygen format.
func MarshalKeypairJSON(key solana.PrivateKey) ([]byte, error) {
	if _, err := checkKeypair(key); err != nil {
		return nil, err
	}
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

// ParseBase58 parses a base58 encoded 64-byte keypair.
func ParseBase58(s string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return checkKeypair(raw)
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

// Parse accepts any supported textual keypair: a JSON byte array, a base58
// keypair or a hex seed.
func Parse(data []byte) (solana.PrivateKey, error) {
	s := bytes.TrimSpace(data)
	if len(s) > 0 && s[0] == '[' {
		return ParseKeypairJSON(s)
	}
	if seed, err := ParseSeedHex(string(s)); err == nil {
		return FromSeed(seed)
	}
	return ParseBase58(string(s))
}

// LoadFile reads a keypair file in any format Parse accepts.
func LoadFile(path string) (solana.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// Signer wraps key for transaction submission.
func Signer(key solana.PrivateKey) submit.Signer { return submit.PrivateKey(key) }

func checkKeypair(raw []byte) (solana.PrivateKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(raw))
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match secret", ErrInvalidKeypair)
	}
	return solana.PrivateKey(bytes.Clone(raw)), nil
}
