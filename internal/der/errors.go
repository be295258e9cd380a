package der

import (
	"fmt"
	"strings"
)

// Kind classifies a decoding failure.
type Kind int

const (
	MalformedStructure Kind = iota + 1
	UnexpectedTag
	TruncatedInput
	NonCanonicalEncoding
)

func (k Kind) String() string {
	switch k {
	case MalformedStructure:
		return "MalformedStructure"
	case UnexpectedTag:
		return "UnexpectedTag"
	case TruncatedInput:
		return "TruncatedInput"
	case NonCanonicalEncoding:
		return "NonCanonicalEncoding"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by every Decoder operation. Field is the dotted path of the
// element being decoded, Expected and Actual are filled in when a concrete
// comparison failed.
type Error struct {
	Kind     Kind
	Field    string
	Expected string
	Actual   string
	Msg      string
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrMalformedStructure   = &Error{Kind: MalformedStructure}
	ErrUnexpectedTag        = &Error{Kind: UnexpectedTag}
	ErrTruncatedInput       = &Error{Kind: TruncatedInput}
	ErrNonCanonicalEncoding = &Error{Kind: NonCanonicalEncoding}
)

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Field != "" {
		sb.WriteString(" at ")
		sb.WriteString(e.Field)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&sb, " (expected %s, got %s)", e.Expected, e.Actual)
	}
	return sb.String()
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}
