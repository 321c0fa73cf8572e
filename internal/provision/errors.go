package provision

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a provisioning failure
type ErrorKind int

const (
	// KindTransient indicates a failure that may succeed on retry (a send, a connect)
	KindTransient ErrorKind = iota
	// KindAbsent indicates something expected was not there (no stored record, no networks)
	KindAbsent
	// KindUnavailable indicates a resource could not be acquired (access point, sockets)
	KindUnavailable
	// KindMalformed indicates invalid input (oversized or bad credential fields)
	KindMalformed
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "Transient"
	case KindAbsent:
		return "Absent"
	case KindUnavailable:
		return "Unavailable"
	case KindMalformed:
		return "Malformed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Sentinel causes carried by Error.
var (
	ErrEscapeLimit   = errors.New("connect attempts exhausted")
	ErrAPDisabled    = errors.New("access point fallback disabled")
	ErrAPUnavailable = errors.New("access point unavailable")
)

// Error represents a failure of one provisioning step
type Error struct {
	Kind      ErrorKind // Category of error
	Op        string    // Step that failed, e.g. "start_ap"
	Message   string    // Human-readable error message
	Err       error     // Underlying error (if any)
	Retryable bool      // Whether the step may be retried
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s (caused by: %v)", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{
		Kind:      kind,
		Op:        op,
		Message:   message,
		Err:       err,
		Retryable: kind == KindTransient,
	}
}

// IsRetryable reports whether err is a provisioning error marked retryable.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// KindOf returns the kind of a provisioning error and whether err is one.
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
