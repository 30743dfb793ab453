package codec

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable category for decode and encode failures.
//
// Callers branch on the kind: SelectorMismatch usually means "not this record
// type" and can be treated as absence, while TruncatedRecord and MalformedRecord
// mean the bytes are corrupt or the schema is wrong.
type ErrorKind string

const (
	KindSelectorMismatch ErrorKind = "SelectorMismatch"
	KindTruncated        ErrorKind = "TruncatedRecord"
	KindMalformed        ErrorKind = "MalformedRecord"
	KindInvalidValue     ErrorKind = "InvalidValue"
)

// Error carries enough context to log a failure without re-deriving it.
type Error struct {
	Kind   ErrorKind
	Record string
	Field  string
	// Offset is the cursor position where the failure was detected.
	Offset int
	// Need and Have are byte counts for truncation failures.
	Need    int
	Have    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	where := e.Record
	if e.Field != "" {
		where += "." + e.Field
	}
	switch e.Kind {
	case KindTruncated:
		return fmt.Sprintf("codec: %s: truncated at offset %d: need %d bytes, have %d", where, e.Offset, e.Need, e.Have)
	case KindSelectorMismatch:
		return fmt.Sprintf("codec: %s: selector mismatch: %s", where, e.Message)
	default:
		return fmt.Sprintf("codec: %s: %s", where, e.Message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func IsTruncated(err error) bool        { return IsKind(err, KindTruncated) }
func IsSelectorMismatch(err error) bool { return IsKind(err, KindSelectorMismatch) }
func IsMalformed(err error) bool        { return IsKind(err, KindMalformed) }
