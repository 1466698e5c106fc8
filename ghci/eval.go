package ghci

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/ghcisession/internal/errors"
)

var marker = []byte(Marker)

// Eval sends snippet as a :{ ... :} block and returns what the interpreter
// printed before the next prompt. A ghci-level error such as a type error
// is not a Go error; it shows up in EvalOutput.Stderr.
//
// If a wait for output exceeds the session timeout, Eval returns a
// timeout error and the session is unusable from then on.
func (s *Session) Eval(snippet string) (EvalOutput, error) {
	return s.EvalContext(context.Background(), snippet)
}

// EvalContext is like Eval but also honors ctx. Each wait is bounded by
// the smaller of the session timeout and the time left before the ctx
// deadline, and cancelling ctx ends the wait at once. Once the snippet has
// been sent, cancellation is reported as a timeout because the
// interpreter's position in the output is lost.
func (s *Session) EvalContext(ctx context.Context, snippet string) (EvalOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUsable("eval"); err != nil {
		return EvalOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		// Nothing was sent, so the session is still usable.
		return EvalOutput{}, errors.NewIOError("eval", err).WithPID(s.child.pid()).WithSeverity(errors.SeverityInfo)
	}

	s.setState(StateEvaluating)
	start := time.Now()
	out, err := s.roundTrip(ctx, snippet)

	switch {
	case err == nil:
		s.setState(StateReady)
		s.logger.Debug("evaluation finished",
			"stdout_bytes", len(out.Stdout),
			"stderr_bytes", len(out.Stderr),
			"duration", time.Since(start))
	case errors.IsTimeout(err):
		s.setState(StateTimedOut)
		s.logger.Warn("evaluation timed out, session must be closed",
			"timeout", s.timeout,
			"duration", time.Since(start))
	default:
		s.setState(StateReady)
		kind, _ := errors.KindOf(err)
		s.logger.Error("evaluation failed", "error", err, "error_kind", kind.String())
	}
	return out, err
}

func (s *Session) checkUsable(op string) error {
	pid := s.child.pid()
	switch s.State() {
	case StateClosed:
		return errors.NewIOError(op, errors.ErrSessionClosed).WithPID(pid)
	case StateTimedOut:
		return errors.NewTimeoutError(op, s.timeout).WithCause(errors.ErrSessionTimedOut).WithPID(pid)
	}
	return nil
}

// wakeOnDone returns a descriptor that becomes readable when ctx is done,
// or -1 if ctx can never be done. stop releases it.
func wakeOnDone(ctx context.Context) (fd int, stop func(), err error) {
	if ctx.Done() == nil {
		return -1, func() {}, nil
	}
	r, w, err := os.Pipe()
	if err != nil {
		return -1, nil, err
	}
	unregister := context.AfterFunc(ctx, func() {
		_, _ = w.Write([]byte{0})
	})
	return int(r.Fd()), func() {
		unregister()
		_ = w.Close()
		_ = r.Close()
	}, nil
}

// roundTrip writes one framed snippet and collects output until the marker
// closes stdout. Both accumulators are local so nothing carries over
// between calls.
func (s *Session) roundTrip(ctx context.Context, snippet string) (EvalOutput, error) {
	pid := s.child.pid()

	wakeFd, stopWake, err := wakeOnDone(ctx)
	if err != nil {
		return EvalOutput{}, errors.NewIOError("create wake pipe", err).WithPID(pid)
	}
	defer stopWake()

	if err := s.writeFrame(snippet); err != nil {
		return EvalOutput{}, errors.NewIOError("write snippet", err).WithPID(pid)
	}

	var stdout, stderr bytes.Buffer
	for {
		bound, byContext := s.timeout, false
		if deadline, ok := ctx.Deadline(); ok {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return EvalOutput{}, errors.NewTimeoutError("eval", 0).WithCause(context.DeadlineExceeded).WithPID(pid)
			}
			if bound <= 0 || remaining < bound {
				bound, byContext = remaining, true
			}
		}
		if err := ctx.Err(); err != nil {
			return EvalOutput{}, errors.NewTimeoutError("eval", bound).WithCause(err).WithPID(pid)
		}

		stderrFd := s.stderr.fd
		if s.stderrClosed {
			stderrFd = -1
		}
		ready, err := pollReadable(stderrFd, s.stdout.fd, wakeFd, bound)
		if err != nil {
			return EvalOutput{}, errors.NewPollError("wait for output", err).WithPID(pid)
		}
		if !ready.any() {
			terr := errors.NewTimeoutError("eval", bound).WithPID(pid)
			if byContext {
				terr = terr.WithCause(context.DeadlineExceeded)
			}
			return EvalOutput{}, terr
		}
		if ready.woken {
			return EvalOutput{}, errors.NewTimeoutError("eval", bound).WithCause(context.Cause(ctx)).WithPID(pid)
		}

		if ready.stderr {
			if err := s.readStderr(&stderr); err != nil {
				return EvalOutput{}, err
			}
		}
		if ready.stdout {
			if _, err := s.stdout.readAvailable(&stdout); err != nil {
				return EvalOutput{}, streamError("read stdout", err).WithPID(pid)
			}
			if bytes.HasSuffix(stdout.Bytes(), marker) {
				stdout.Truncate(stdout.Len() - len(marker))
				// stderr written just before the prompt may not have been
				// polled yet.
				if err := s.readStderr(&stderr); err != nil {
					return EvalOutput{}, err
				}
				return EvalOutput{Stdout: stdout.String(), Stderr: stderr.String()}, nil
			}
		}
	}
}

// readStderr appends whatever stderr has buffered. EOF on stderr alone is
// not fatal: the interpreter may have closed it on request, and stdout
// still carries the prompt.
func (s *Session) readStderr(buf *bytes.Buffer) error {
	if s.stderrClosed {
		return nil
	}
	_, err := s.stderr.readAvailable(buf)
	switch {
	case err == io.EOF:
		s.stderrClosed = true
		s.logger.Debug("interpreter stderr closed")
		return nil
	case err != nil:
		return errors.NewIOError("read stderr", err).WithPID(s.child.pid())
	}
	return nil
}

func (s *Session) writeFrame(snippet string) error {
	for _, part := range []string{":{\n", snippet, "\n:}\n"} {
		if _, err := s.stdin.WriteString(part); err != nil {
			return err
		}
	}
	return s.stdin.Flush()
}

// streamError maps a read failure to an error. EOF means the interpreter
// went away, which poll reports as readable.
func streamError(op string, err error) *errors.Error {
	if err == io.EOF {
		return errors.NewPollError(op, errors.ErrStreamClosed)
	}
	return errors.NewIOError(op, err)
}

// Import brings modules into scope with :module.
func (s *Session) Import(modules ...string) error {
	if len(modules) == 0 {
		return nil
	}
	return s.command("import", ":module "+strings.Join(modules, " "))
}

// Load loads source files with :load. Compile errors are not returned;
// they are logged at warn level.
func (s *Session) Load(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.command("load", ":load "+strings.Join(paths, " "))
}

// command runs a ghci command for its effect and discards the output.
func (s *Session) command(op, line string) error {
	out, err := s.Eval(line)
	if err != nil {
		return err
	}
	if msg := strings.TrimSpace(out.Stderr); msg != "" {
		s.logger.Warn(op+" reported errors", "command", line, "stderr", msg)
	}
	return nil
}
