// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build unix

package command

import (
	"os/exec"
	"syscall"
)

// detach puts cmd in a new session so it survives the parent exiting and
// does not receive the terminal's signals.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
