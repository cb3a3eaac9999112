//go:build !unix

package process

import "os/exec"

// setProcessGroup is a no-op; exec.CommandContext kills the direct child.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup is a no-op without process groups.
func killProcessGroup(cmd *exec.Cmd) (bool, error) { return false, nil }
