// Package apperr defines the error taxonomy shared by every component:
// validation failures, stale references, transient storage outages and
// exhausted optimistic-concurrency retries. Callers branch on KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and surfacing decisions.
type Kind int

const (
	Unknown Kind = iota
	// Validation: malformed input (bad grade, empty id). Reject, no state change.
	Validation
	// NotFound: the caller's reference is stale (unknown item/user/mention target).
	NotFound
	// StorageUnavailable: transient backing-store failure. Safe to retry,
	// every write is idempotent per key.
	StorageUnavailable
	// ConcurrencyConflict: optimistic-lock retries exhausted.
	ConcurrencyConflict
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case StorageUnavailable:
		return "storage_unavailable"
	case ConcurrencyConflict:
		return "concurrency_conflict"
	}
	return "unknown"
}

// Error carries a kind, a message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
