//go:build !windows

package backend

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr puts the speech process in its own group so signals
// reach any children it forks.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(cmd *exec.Cmd) {
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
	}
}

func suspendProcess(cmd *exec.Cmd) error {
	err := unix.Kill(-cmd.Process.Pid, unix.SIGSTOP)
	if err == unix.ESRCH {
		// Already gone; nothing to suspend.
		return nil
	}
	return err
}

func resumeProcess(cmd *exec.Cmd) error {
	err := unix.Kill(-cmd.Process.Pid, unix.SIGCONT)
	if err == unix.ESRCH {
		return nil
	}
	return err
}
