package refreshclient

import "fmt"

// AbortError indicates a refresh was cancelled rather than failed. Aborts
// never increment a refresher's consecutiveErrors and are never surfaced to
// the user-facing error handler (spec.md §7, category 1).
type AbortError struct {
	Reason string
}

// Error implements the error interface.
func (e AbortError) Error() string {
	if e.Reason == "" {
		return "refresh aborted"
	}
	return fmt.Sprintf("refresh aborted: %s", e.Reason)
}

// NewAbortError constructs an AbortError with the given reason.
func NewAbortError(reason string) error {
	return AbortError{Reason: reason}
}

// IsAbort reports whether err represents a cancellation rather than a failure.
func IsAbort(err error) bool {
	_, ok := err.(AbortError)
	return ok
}

// SuppressedError wraps a network-transient failure absorbed by a
// kubeconfig-transition suppression window (spec.md §7, category 2). It is
// never handed to the user-facing error handler.
type SuppressedError struct {
	Underlying error
}

// Error implements the error interface.
func (e SuppressedError) Error() string {
	if e.Underlying == nil {
		return "suppressed network error"
	}
	return e.Underlying.Error()
}

// Unwrap exposes the wrapped error for errors.Is/As.
func (e SuppressedError) Unwrap() error {
	return e.Underlying
}

// NewSuppressedError wraps err as a SuppressedError.
func NewSuppressedError(err error) error {
	return SuppressedError{Underlying: err}
}

// IsSuppressed reports whether err was absorbed by the suppression window.
func IsSuppressed(err error) bool {
	_, ok := err.(SuppressedError)
	return ok
}
