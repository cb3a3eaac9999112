//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the child in a new process group and makes context
// cancellation kill the whole group, including anything a wrapper script forked.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		_, err := killGroup(cmd.Process.Pid)
		return err
	}
}

// killProcessGroup kills anything the child left running in its group after it
// exited, such as a server started with '&'. It reports whether a process was signalled.
func killProcessGroup(cmd *exec.Cmd) (bool, error) {
	if cmd.Process == nil {
		return false, nil
	}
	return killGroup(cmd.Process.Pid)
}

func killGroup(pgid int) (bool, error) {
	err := syscall.Kill(-pgid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return false, nil
	}
	return err == nil, err
}
