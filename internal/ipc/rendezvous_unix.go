//go:build !windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// EndpointPath resolves the Unix domain socket path per spec.md §6:
// $XDG_RUNTIME_DIR/<app>/daemon.sock, falling back to /tmp/<app>-<uid>/daemon.sock.
func EndpointPath(app string) string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, app, "daemon.sock")
	}

	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d", app, os.Getuid()), "daemon.sock")
}

// Listen creates the rendezvous directory with owner-only permissions,
// removes any stale socket file, and binds a Unix domain socket at mode
// 0600.
func Listen(app string) (net.Listener, error) {
	sockPath := EndpointPath(app)
	dir := filepath.Dir(sockPath)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ipc: create runtime dir %s: %w", dir, err)
	}

	if err := os.Chmod(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ipc: chmod runtime dir %s: %w", dir, err)
	}

	if _, err := os.Stat(sockPath); err == nil {
		if err := removeStaleSocket(sockPath); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen on %s: %w", sockPath, err)
	}

	if err := os.Chmod(sockPath, 0o600); err != nil {
		_ = ln.Close()

		return nil, fmt.Errorf("ipc: chmod socket %s: %w", sockPath, err)
	}

	return ln, nil
}

// removeStaleSocket unlinks a socket file left behind by a broker that
// exited without cleaning up (crash, kill -9). The remove is unconditional:
// nothing probes whether a broker is still listening on the path, so a live
// broker's socket file is removed too.
func removeStaleSocket(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ipc: remove stale socket %s: %w", path, err)
	}

	return nil
}

// Dial connects to an already-running broker's rendezvous socket.
func Dial(app string) (net.Conn, error) {
	return net.Dial("unix", EndpointPath(app))
}
