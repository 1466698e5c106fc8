// Package errors provides the error taxonomy for ghci sessions. It defines
// sentinel errors, the tagged session error type, constructors with context
// wrapping, and classification helpers.
//
// # Error Kinds
//
// Every failure surfaced by a session is an [*Error] carrying one of three
// kinds:
//   - KindTimeout: an evaluation waited longer than the configured deadline
//   - KindIO: spawning the process, pipe reads/writes, or closing an exited process
//   - KindPoll: the readiness wait itself failed, usually because the
//     evaluator crashed and its streams went away
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewIOError("write frame", cause).WithPID(4242)
//	err := errors.NewTimeoutError("eval", 50*time.Millisecond)
//
// Checking errors:
//
//	if errors.IsTimeout(err) { ... }
//
//	var sessErr *errors.Error
//	if errors.As(err, &sessErr) && sessErr.Kind() == errors.KindPoll { ... }
//
// None of these errors are retryable: after a timeout the evaluator's
// position in its input stream is unknown, so the session must be discarded.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Kind identifies which variant of the session error union an [*Error] is.
type Kind int

const (
	// KindTimeout means the evaluation exceeded its deadline.
	KindTimeout Kind = iota
	// KindIO means a process or pipe operation failed.
	KindIO
	// KindPoll means the readiness wait failed.
	KindPoll
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io"
	case KindPoll:
		return "poll"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrTimeout indicates that an evaluation timed out waiting on output.
	ErrTimeout = New("ghci session timed out waiting on output")
	// ErrInvalidInput indicates an operation that is not valid for the
	// current process state, such as killing an exited process.
	ErrInvalidInput = New("invalid input")
	// ErrProcessExited indicates that the evaluator process has already exited.
	ErrProcessExited = New("process has already exited")
	// ErrStreamClosed indicates that the evaluator closed stdout or stderr.
	ErrStreamClosed = New("evaluator closed its output stream")
)

// Session state sentinel errors
var (
	// ErrSessionClosed indicates the session was closed explicitly.
	ErrSessionClosed = New("session is closed")
	// ErrSessionTimedOut indicates the session previously timed out and can
	// no longer be trusted to frame responses.
	ErrSessionTimedOut = New("session timed out and must be discarded")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// -----------------------------------------------------------------------------
// Session Error
// -----------------------------------------------------------------------------

// Error is the error returned by every session operation.
//
// Example:
//
//	err := errors.NewPollError("wait for output", unix.EBADF).WithPID(4242)
//	fmt.Println(err) // "Poll error [op=wait for output, pid=4242]: bad file descriptor"
type Error struct {
	baseError
	kind     Kind
	Op       string
	PID      int
	Duration time.Duration // wait bound for timeouts, zero otherwise
}

// NewTimeoutError creates a KindTimeout error for an operation that waited
// the given duration without output.
func NewTimeoutError(op string, d time.Duration) *Error {
	return &Error{
		baseError: baseError{
			message:  ErrTimeout.Error(),
			severity: SeverityWarning,
		},
		kind:     KindTimeout,
		Op:       op,
		Duration: d,
	}
}

// NewIOError creates a KindIO error wrapping cause.
func NewIOError(op string, cause error) *Error {
	return &Error{
		baseError: baseError{
			message:  "IO error",
			cause:    cause,
			severity: SeverityError,
		},
		kind: KindIO,
		Op:   op,
	}
}

// NewPollError creates a KindPoll error wrapping cause.
func NewPollError(op string, cause error) *Error {
	return &Error{
		baseError: baseError{
			message:  "Poll error",
			cause:    cause,
			severity: SeverityCritical,
		},
		kind: KindPoll,
		Op:   op,
	}
}

// WithPID adds the evaluator process ID to the error context.
func (e *Error) WithPID(pid int) *Error {
	e.PID = pid
	return e
}

// WithCause sets the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithSeverity sets the error severity.
func (e *Error) WithSeverity(s Severity) *Error {
	e.severity = s
	return e
}

// Kind reports which variant this error is.
func (e *Error) Kind() Kind {
	return e.kind
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.PID > 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	if e.kind == KindTimeout && e.Duration > 0 {
		parts = append(parts, fmt.Sprintf("timeout=%s", e.Duration))
	}

	prefix := e.message
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", e.message, strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is reports whether target is an *Error of the same kind, ErrTimeout for a
// timeout, or anything matched by the cause chain.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.kind == e.kind
	}
	if e.kind == KindTimeout && target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var sessErr *Error
	if As(err, &sessErr) {
		return sessErr.kind, true
	}
	return 0, false
}

// IsTimeout returns true if err is, or wraps, a KindTimeout error.
func IsTimeout(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTimeout
}

// IsIO returns true if err is, or wraps, a KindIO error.
func IsIO(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindIO
}

// IsPoll returns true if err is, or wraps, a KindPoll error.
func IsPoll(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindPoll
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that are not session errors.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    log.Error("evaluator crashed", "err", err)
//	case errors.SeverityWarning:
//	    log.Warn("evaluation timed out", "err", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var sessErr *Error
	if As(err, &sessErr) {
		return sessErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to evaluate snippet")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to load %s", path)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
