package rail

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by both backends. The watcher is the only place
// that turns these into retry/abort decisions.
var (
	// ErrNotLoggedIn means the backend reported a lost session mid-run.
	// Recoverable: re-login and retry.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrNoResults means a search matched nothing after filtering. This is
	// the normal outcome of most polling iterations, not a fault.
	ErrNoResults = errors.New("no matching trains")

	// ErrSoldOut means a write lost the race between search and submit.
	ErrSoldOut = errors.New("sold out")

	// ErrDuplicate means the backend rejected a write as a repeat of an
	// existing reservation. Must never be auto-retried.
	ErrDuplicate = errors.New("duplicate reservation")

	// ErrReservationNotFound means the post-write lookup could not locate
	// the reservation number the write returned. Integrity fault.
	ErrReservationNotFound = errors.New("reservation not found after booking")

	// ErrInvalidPassenger means the passenger list failed validation
	// (unknown category, negative count, or zero passengers overall).
	ErrInvalidPassenger = errors.New("invalid passenger list")
)

// AuthError is an explicit login rejection: bad credential, unknown
// account, or a blocked IP. Fatal; the raw backend message is preserved.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login rejected: %s", e.Message)
}

// ResponseError is an unclassified backend rejection carrying the server's
// machine-readable code and human-readable message.
type ResponseError struct {
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// QueueError wraps any failure of the queue-admission handshake. The cached
// token has already been cleared by the time callers see one; treat as
// retryable.
type QueueError struct {
	Err error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("queue admission failed: %v", e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

// CodecError means the pre-login key handshake did not produce a usable
// encryption key.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("credential codec: %s", e.Reason)
}
