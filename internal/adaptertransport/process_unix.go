//go:build !windows

package adaptertransport

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func osStderr() *os.File { return os.Stderr }

// killProcess terminates the adapter's whole process group, since many DAP
// adapters (lldb-dap in particular) fork helper children that would
// otherwise survive the parent.
func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}

	if err := unix.Kill(-pgid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}

	return nil
}

// setpgid arranges for the adapter to start its own process group so
// killProcess can reap the whole tree; call from the platform-neutral spawn
// path before cmd.Start().
func setpgid(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}

	cmd.SysProcAttr.Setpgid = true
}
