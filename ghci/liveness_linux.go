//go:build linux

package ghci

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/ghcisession/internal/errors"
)

// exited reports whether the process has terminated. WNOWAIT leaves the
// zombie in place so that cmd.Wait can still reap it.
func (c *child) exited() bool {
	var info unix.Siginfo
	err := unix.Waitid(unix.P_PID, c.pid(), &info, unix.WEXITED|unix.WNOHANG|unix.WNOWAIT, nil)
	if err != nil {
		// ECHILD: already reaped.
		return errors.Is(err, unix.ECHILD)
	}
	return info.Signo == int32(unix.SIGCHLD)
}

// configureProcAttr asks the kernel to kill the interpreter if this
// process dies first.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
