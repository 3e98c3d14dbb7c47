//go:build windows

package adaptertransport

import (
	"os"
	"os/exec"
)

func osStderr() *os.File { return os.Stderr }

// killProcess terminates the adapter process. Windows has no POSIX process
// groups and no job object is used, so only the adapter process itself is
// killed; its grandchildren are not reaped.
func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	return cmd.Process.Kill()
}

func setpgid(cmd *exec.Cmd) {}
