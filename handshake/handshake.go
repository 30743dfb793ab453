// Package handshake implements the delivery handshake: a receiver issues a
// challenge, the payer signs it and pays with a memo that names the agent and
// the challenge, and the receiver matches the memo of a landed payment.
package handshake

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/identity"
	"noema.dev/ledgerkit/submit"
)

const (
	memoTag   = "HANDSHAKE"
	sigTag    = "SIG:"
	NonceSize = 16
	// SigPrefixLen is how many hex characters of the challenge signature the
	// memo carries.
	SigPrefixLen = 32
)

var (
	ErrMalformedMemo = errors.New("handshake: malformed memo")
	ErrMismatch      = errors.New("handshake: memo does not match challenge")
	ErrStale         = errors.New("handshake: challenge expired")
	ErrBadSignature  = errors.New("handshake: bad challenge signature")
)

// Challenge is issued by the receiver. Timestamp is in unix milliseconds.
type Challenge struct {
	Timestamp int64
	Nonce     [NonceSize]byte
}

// NewChallenge draws a nonce from r (crypto/rand when nil).
func NewChallenge(now time.Time, r io.Reader) (Challenge, error) {
	if r == nil {
		r = rand.Reader
	}
	c := Challenge{Timestamp: now.UnixMilli()}
	if _, err := io.ReadFull(r, c.Nonce[:]); err != nil {
		return Challenge{}, fmt.Errorf("handshake: nonce: %w", err)
	}
	return c, nil
}

// ParseChallenge rebuilds a challenge from its millisecond timestamp and hex
// nonce.
func ParseChallenge(timestamp int64, nonceHex string) (Challenge, error) {
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != NonceSize {
		return Challenge{}, fmt.Errorf("%w: nonce must be %d hex bytes", ErrMalformedMemo, NonceSize)
	}
	c := Challenge{Timestamp: timestamp}
	copy(c.Nonce[:], nonce)
	return c, nil
}

func (c Challenge) NonceHex() string { return hex.EncodeToString(c.Nonce[:]) }

func (c Challenge) Time() time.Time { return time.UnixMilli(c.Timestamp) }

// Message is the byte string that gets signed: "<timestamp>|<nonce hex>".
func (c Challenge) Message() []byte {
	return []byte(strconv.FormatInt(c.Timestamp, 10) + "|" + c.NonceHex())
}

// Sign signs the challenge with the payer's key.
func Sign(c Challenge, s submit.Signer) (solana.Signature, error) {
	return s.Sign(c.Message())
}

func Verify(c Challenge, sig solana.Signature, pub solana.PublicKey) error {
	if !sig.Verify(pub, c.Message()) {
		return ErrBadSignature
	}
	return nil
}

// Memo is the payment memo "HANDSHAKE|agentId|timestamp|nonce[|SIG:<prefix>]".
type Memo struct {
	AgentID   string
	Challenge Challenge
	// SigPrefix is the leading hex of the challenge signature, empty when the
	// memo carries none.
	SigPrefix string
}

// NewMemo builds the memo for agentID. sig may be nil.
func NewMemo(agentID string, c Challenge, sig *solana.Signature) Memo {
	m := Memo{AgentID: identity.NormalizeAgentID(agentID), Challenge: c}
	if sig != nil {
		m.SigPrefix = hex.EncodeToString(sig[:])[:SigPrefixLen]
	}
	return m
}

func (m Memo) String() string {
	s := strings.Join([]string{memoTag, m.AgentID, strconv.FormatInt(m.Challenge.Timestamp, 10), m.Challenge.NonceHex()}, "|")
	if m.SigPrefix != "" {
		s += "|" + sigTag + m.SigPrefix
	}
	return s
}

func ParseMemo(s string) (Memo, error) {
	parts := strings.Split(strings.TrimSpace(s), "|")
	if len(parts) != 4 && len(parts) != 5 {
		return Memo{}, fmt.Errorf("%w: %d fields", ErrMalformedMemo, len(parts))
	}
	if parts[0] != memoTag {
		return Memo{}, fmt.Errorf("%w: missing %s tag", ErrMalformedMemo, memoTag)
	}
	var m Memo
	m.AgentID = parts[1]
	if m.AgentID == "" {
		return Memo{}, fmt.Errorf("%w: empty agent id", ErrMalformedMemo)
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Memo{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedMemo, err)
	}
	if m.Challenge, err = ParseChallenge(ts, parts[3]); err != nil {
		return Memo{}, err
	}
	if len(parts) == 5 {
		p, ok := strings.CutPrefix(parts[4], sigTag)
		if !ok || len(p) != SigPrefixLen {
			return Memo{}, fmt.Errorf("%w: signature field", ErrMalformedMemo)
		}
		if _, err := hex.DecodeString(p); err != nil {
			return Memo{}, fmt.Errorf("%w: signature field: %v", ErrMalformedMemo, err)
		}
		m.SigPrefix = strings.ToLower(p)
	}
	return m, nil
}

// Expectation is what the receiver checks a landed memo against.
type Expectation struct {
	AgentID   string
	Challenge Challenge
	// Signature, when set, must agree with the memo's signature prefix.
	Signature *solana.Signature
	MaxAge    time.Duration
}

// Match checks m against e at time now.
func (e Expectation) Match(m Memo, now time.Time) error {
	if m.AgentID != identity.NormalizeAgentID(e.AgentID) {
		return fmt.Errorf("%w: agent %q", ErrMismatch, m.AgentID)
	}
	if m.Challenge != e.Challenge {
		return fmt.Errorf("%w: challenge", ErrMismatch)
	}
	if e.Signature != nil {
		want := hex.EncodeToString(e.Signature[:])[:SigPrefixLen]
		if m.SigPrefix != want {
			return fmt.Errorf("%w: signature prefix", ErrMismatch)
		}
	}
	if e.MaxAge > 0 {
		age := now.Sub(e.Challenge.Time())
		if age > e.MaxAge || age < -e.MaxAge {
			return fmt.Errorf("%w: age %s", ErrStale, age)
		}
	}
	return nil
}

// MemoFromLogs extracts the first memo program payload from transaction logs.
func MemoFromLogs(logs []string) (string, bool) {
	const marker = "Program log: Memo (len "
	for _, l := range logs {
		rest, ok := strings.CutPrefix(l, marker)
		if !ok {
			continue
		}
		_, quoted, ok := strings.Cut(rest, "): ")
		if !ok {
			continue
		}
		s, err := strconv.Unquote(quoted)
		if err != nil {
			continue
		}
		return s, true
	}
	return "", false
}
