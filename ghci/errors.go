package ghci

import "github.com/Iron-Ham/ghcisession/internal/errors"

// Error is the error returned by session operations. Use [Error.Kind] or
// the Is* helpers to tell the variants apart.
type Error = errors.Error

// ErrorKind identifies a variant of [Error].
type ErrorKind = errors.Kind

// Error kinds.
const (
	KindTimeout = errors.KindTimeout
	KindIO      = errors.KindIO
	KindPoll    = errors.KindPoll
)

// Sentinel causes carried by [Error] values.
var (
	ErrTimeout         = errors.ErrTimeout
	ErrInvalidInput    = errors.ErrInvalidInput
	ErrProcessExited   = errors.ErrProcessExited
	ErrStreamClosed    = errors.ErrStreamClosed
	ErrSessionClosed   = errors.ErrSessionClosed
	ErrSessionTimedOut = errors.ErrSessionTimedOut
)

// IsTimeout reports whether err is a timeout. A session that returned one
// must be closed.
func IsTimeout(err error) bool { return errors.IsTimeout(err) }

// IsIO reports whether err is an I/O failure on the process or its pipes.
func IsIO(err error) bool { return errors.IsIO(err) }

// IsPoll reports whether err is a failure of the readiness wait, which
// usually means the interpreter crashed.
func IsPoll(err error) bool { return errors.IsPoll(err) }
