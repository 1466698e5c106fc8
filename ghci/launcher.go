package ghci

import (
	"os"
	"os/exec"

	"github.com/Iron-Ham/ghcisession/internal/errors"
)

// child is a running interpreter and the parent ends of its three pipes.
// It holds no reference to the Session so that it can serve as the
// argument of the session's runtime cleanup.
type child struct {
	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	stderr *os.File
	done   bool
}

// launch spawns the interpreter with stdin, stdout and stderr connected to
// fresh pipes. The pipes are *os.File values so os/exec hands them to the
// child directly instead of copying through goroutines.
func launch(cfg Config) (*child, error) {
	path := ResolvePath(cfg.Path)

	// pipes[i] is {read end, write end} for stdin, stdout, stderr.
	var pipes [3][2]*os.File
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			closeFiles(pipes[:i]...)
			return nil, errors.NewIOError("create pipe", err)
		}
		pipes[i] = [2]*os.File{r, w}
	}

	cmd := exec.Command(path, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = cfg.Env
	cmd.Stdin = pipes[0][0]
	cmd.Stdout = pipes[1][1]
	cmd.Stderr = pipes[2][1]
	configureProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		closeFiles(pipes[:]...)
		return nil, errors.NewIOError("spawn "+path, err)
	}

	// The child has its own copies now; keeping ours open would hide EOF.
	_ = pipes[0][0].Close()
	_ = pipes[1][1].Close()
	_ = pipes[2][1].Close()

	return &child{
		cmd:    cmd,
		stdin:  pipes[0][1],
		stdout: pipes[1][0],
		stderr: pipes[2][0],
	}, nil
}

func closeFiles(pairs ...[2]*os.File) {
	for _, p := range pairs {
		for _, f := range p {
			if f != nil {
				_ = f.Close()
			}
		}
	}
}

func (c *child) pid() int {
	return c.cmd.Process.Pid
}

// terminate kills the process if it is still running, reaps it and closes
// the parent pipe ends. It returns ErrProcessExited when the process had
// already exited on its own. Calling it twice is a no-op.
func (c *child) terminate() error {
	if c.done {
		return nil
	}
	c.done = true

	var result error
	reap := true
	if c.exited() {
		result = errors.ErrProcessExited
	} else if err := c.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			result = errors.ErrProcessExited
		} else {
			// Waiting on a process we failed to signal could block forever.
			result = err
			reap = false
		}
	}
	if reap {
		// Wait reports the kill signal as an error; only reaping matters.
		_ = c.cmd.Wait()
	}

	_ = c.stdin.Close()
	_ = c.stdout.Close()
	_ = c.stderr.Close()
	return result
}

// release is the cleanup registered for sessions that are never closed.
func (c *child) release() {
	_ = c.terminate()
}
