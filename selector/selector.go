// Package selector computes the 8-byte discriminators that lead every
// instruction payload and every program-owned account.
package selector

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a selector in bytes.
const Size = 8

// Kind names the namespace a selector is drawn from.
type Kind uint8

const (
	KindInstruction Kind = iota + 1
	KindAccount
)

func (k Kind) prefix() string {
	switch k {
	case KindInstruction:
		return "global"
	case KindAccount:
		return "account"
	default:
		return ""
	}
}

func (k Kind) String() string {
	switch k {
	case KindInstruction:
		return "instruction"
	case KindAccount:
		return "account"
	default:
		return "unknown"
	}
}

// Selector is the first 8 bytes of sha256(prefix + ":" + name).
type Selector [Size]byte

// For returns the selector for name in the given namespace.
// Any UTF-8 string is accepted.
func For(kind Kind, name string) Selector {
	sum := sha256.Sum256([]byte(kind.prefix() + ":" + name))
	var s Selector
	copy(s[:], sum[:Size])
	return s
}

// Instruction returns the selector for an instruction method (snake_case).
func Instruction(method string) Selector { return For(KindInstruction, method) }

// Account returns the selector for an account type (the struct name).
func Account(typeName string) Selector { return For(KindAccount, typeName) }

// Matches reports whether b begins with s.
func (s Selector) Matches(b []byte) bool {
	if len(b) < Size {
		return false
	}
	return [Size]byte(b[:Size]) == [Size]byte(s)
}

func (s Selector) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, s[:])
	return out
}

func (s Selector) String() string { return hex.EncodeToString(s[:]) }
