// Package apierrors implements the error taxonomy shared by every component:
// input, not-found, conflict, transient-storage, permanent-storage,
// credential-expired, compiler-failed, and invariant-violation. The HTTP
// layer (pkg/response) is the sole point that translates a Kind to a status
// code; workers never propagate these to a caller, they log and update rows.
package apierrors

import (
	"errors"
	"fmt"
)

// Kind is one error taxonomy bucket.
type Kind string

const (
	KindInput             Kind = "input"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindTransientStorage   Kind = "transient_storage"
	KindPermanentStorage   Kind = "permanent_storage"
	KindCredentialExpired Kind = "credential_expired"
	KindCompilerFailed    Kind = "compiler_failed"
	KindInvariant         Kind = "invariant_violation"
)

// Error wraps an underlying cause with a taxonomy Kind and a message safe to
// surface to callers.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or something it wraps) is an *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, otherwise
// KindInvariant — an untagged error reaching the HTTP layer is a bug, and is
// surfaced as a 500 per spec.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInvariant
}

var (
	// ErrNotFound is a convenience sentinel for repository lookups; wrap it
	// with Wrap(KindNotFound, ...) when surfacing to the HTTP layer.
	ErrNotFound = errors.New("not found")
)
