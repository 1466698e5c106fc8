package ghci

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/ghcisession/internal/errors"
)

// Session is a running ghci process with a negotiated prompt.
type Session struct {
	// mu serializes evaluations and lifecycle changes. state is written
	// only with mu held but can be read without it.
	mu    sync.Mutex
	state atomic.Int32

	id      string
	child   *child
	stdin   *bufio.Writer
	stdout  *nonblockingReader
	stderr  *nonblockingReader
	timeout time.Duration
	cleanup runtime.Cleanup
	logger  *slog.Logger

	// stderrClosed is set once the interpreter's stderr reached EOF. The
	// session keeps working on stdout alone.
	stderrClosed bool
}

// EvalOutput is what the interpreter wrote while evaluating one snippet.
// Stdout never contains the prompt marker.
type EvalOutput struct {
	Stdout string
	Stderr string
}

// New spawns the interpreter and negotiates the marker prompt. On any
// failure the process is killed and reaped before New returns.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewIOError("new session", fmt.Errorf("%w: %w", errors.ErrInvalidInput, err))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id := uuid.NewString()
	logger = logger.With("session_id", id)

	c, err := launch(cfg)
	if err != nil {
		logger.Error("failed to start interpreter", "path", ResolvePath(cfg.Path), "error", err)
		return nil, err
	}

	s := &Session{
		id:      id,
		child:   c,
		stdin:   bufio.NewWriter(c.stdin),
		timeout: cfg.Timeout,
		logger:  logger.With("pid", c.pid()),
	}
	s.setState(StateInitializing)
	s.cleanup = runtime.AddCleanup(s, (*child).release, c)
	s.logger.Debug("interpreter started", "path", c.cmd.Path, "args", cfg.Args)

	if err := s.initialize(); err != nil {
		s.cleanup.Stop()
		_ = c.terminate()
		s.logger.Error("session initialization failed", "error", err)
		return nil, err
	}

	s.setState(StateReady)
	s.logger.Info("session ready")
	return s, nil
}

func (s *Session) initialize() error {
	if err := negotiate(s.stdin, s.child.stdout); err != nil {
		return withPID(err, s.child.pid())
	}

	var err error
	if s.stdout, err = newNonblockingReader(s.child.stdout); err != nil {
		return errors.NewIOError("set stdout nonblocking", err).WithPID(s.child.pid())
	}
	if s.stderr, err = newNonblockingReader(s.child.stderr); err != nil {
		return errors.NewIOError("set stderr nonblocking", err).WithPID(s.child.pid())
	}

	// Startup warnings must not show up in the first evaluation.
	var startup bytes.Buffer
	_, err = s.stderr.readAvailable(&startup)
	switch {
	case err == io.EOF:
		s.stderrClosed = true
		s.logger.Debug("interpreter stderr closed at startup")
	case err != nil:
		return errors.NewIOError("drain stderr", err).WithPID(s.child.pid())
	}
	if startup.Len() > 0 {
		s.logger.Debug("discarded startup stderr", "bytes", startup.Len())
	}
	return nil
}

func withPID(err error, pid int) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithPID(pid)
	}
	return err
}

// ID returns the unique identifier used in log records for this session.
func (s *Session) ID() string {
	return s.id
}

// PID returns the interpreter's process ID.
func (s *Session) PID() int {
	return s.child.pid()
}

// State returns the current lifecycle state. It does not wait for a
// running evaluation, so another goroutine sees StateEvaluating while one
// is in progress.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// SetTimeout changes the bound on each wait for output in later Eval
// calls. Zero or negative disables it.
func (s *Session) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
	s.logger.Debug("timeout changed", "timeout", d)
}

// Timeout returns the current per-wait timeout. Zero means none.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(s.timeout, 0)
}

// Close kills the interpreter, reaps it and releases the pipes. If the
// process had already exited on its own, Close still releases everything
// but returns an I/O error wrapping ErrInvalidInput and ErrProcessExited.
// Closing twice returns an error wrapping ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid := s.child.pid()
	if s.State() == StateClosed {
		return errors.NewIOError("close", errors.ErrSessionClosed).WithPID(pid)
	}
	s.setState(StateClosed)
	s.cleanup.Stop()

	err := s.child.terminate()
	switch {
	case err == nil:
		s.logger.Info("session closed")
		return nil
	case errors.Is(err, errors.ErrProcessExited):
		s.logger.Warn("interpreter exited before close")
		return errors.NewIOError("close", fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)).WithPID(pid)
	default:
		s.logger.Error("failed to kill interpreter", "error", err)
		return errors.NewIOError("close", err).WithPID(pid)
	}
}
