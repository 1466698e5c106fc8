//go:build unix && !linux

package ghci

import (
	"os/exec"
	"syscall"
)

// exited reports whether the process has terminated. Without waitid's
// WNOWAIT an unreaped zombie still looks alive here; terminate then falls
// back to the os.ErrProcessDone check after Kill.
func (c *child) exited() bool {
	return c.cmd.Process.Signal(syscall.Signal(0)) != nil
}

func configureProcAttr(*exec.Cmd) {}
