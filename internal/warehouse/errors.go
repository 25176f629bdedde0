package warehouse

import (
	"errors"
	"fmt"
)

// Kind classifies business failures surfaced to operators. Errors that carry
// no Kind are infrastructure failures.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindInvalidState     Kind = "INVALID_STATE"
	KindCapacityExceeded Kind = "CAPACITY_EXCEEDED"
	KindInvalidArgument  Kind = "INVALID_ARGUMENT"
)

// Store sentinels. Implementations return these (possibly wrapped) so the
// engine can translate them into business errors.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Error is a business error. Details holds the offending quantities or keys
// so callers can display them.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindConflict})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func newError(kind Kind, details map[string]string, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Details: details,
	}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
