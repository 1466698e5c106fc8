//go:build unix

package ghci

import (
	"bytes"
	"io"
	"math"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const readChunk = 4096

// nonblockingReader reads whatever a pipe currently holds without blocking.
// It keeps the *os.File alive; the descriptor is closed by child.terminate.
type nonblockingReader struct {
	f  *os.File
	fd int
}

func newNonblockingReader(f *os.File) (*nonblockingReader, error) {
	// Fd puts the descriptor back into blocking mode, so set O_NONBLOCK after.
	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	return &nonblockingReader{f: f, fd: fd}, nil
}

// readAvailable appends everything currently buffered in the pipe to buf
// and returns the number of bytes read. It returns io.EOF only when the
// write end is closed and nothing was read.
func (r *nonblockingReader) readAvailable(buf *bytes.Buffer) (int, error) {
	var chunk [readChunk]byte
	total := 0
	for {
		n, err := unix.Read(r.fd, chunk[:])
		if n > 0 {
			buf.Write(chunk[:n])
			total += n
		}
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return total, nil
		case err != nil:
			return total, err
		case n == 0:
			if total == 0 {
				return 0, io.EOF
			}
			return total, nil
		}
	}
}

// readiness says which descriptors have something to read (or have hit
// EOF). The zero value means the wait timed out.
type readiness struct {
	stderr bool
	stdout bool
	woken  bool
}

func (r readiness) any() bool {
	return r.stderr || r.stdout || r.woken
}

// pollReadable blocks in poll(2) until stderr, stdout or wake is readable
// or bound elapses. A negative descriptor is left out of the wait. A bound
// of zero or less waits indefinitely. Interrupted waits resume with the
// time remaining.
func pollReadable(stderrFd, stdoutFd, wakeFd int, bound time.Duration) (readiness, error) {
	fds := []unix.PollFd{
		{Fd: int32(stderrFd), Events: unix.POLLIN},
		{Fd: int32(stdoutFd), Events: unix.POLLIN},
		{Fd: int32(wakeFd), Events: unix.POLLIN},
	}

	var deadline time.Time
	if bound > 0 {
		deadline = time.Now().Add(bound)
	}

	for {
		ms := -1
		if bound > 0 {
			ms = timeoutMillis(time.Until(deadline))
		}

		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return readiness{}, err
		}
		if n == 0 {
			return readiness{}, nil
		}

		for _, fd := range fds {
			if fd.Fd >= 0 && fd.Revents&unix.POLLNVAL != 0 {
				return readiness{}, unix.EBADF
			}
		}
		return readiness{
			stderr: fds[0].Revents != 0,
			stdout: fds[1].Revents != 0,
			woken:  fds[2].Revents != 0,
		}, nil
	}
}

// timeoutMillis converts d to a poll(2) timeout, rounding up so that a
// sub-millisecond wait does not become a busy poll.
func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return -1
	}
	return int(ms)
}
