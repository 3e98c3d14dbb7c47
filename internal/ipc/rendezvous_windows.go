//go:build windows

package ipc

import (
	"fmt"
	"net"
	"os"
)

// EndpointPath returns the per-user named pipe name for app, per spec.md §6.
func EndpointPath(app string) string {
	user := os.Getenv("USERNAME")
	if user == "" {
		user = "default"
	}

	return fmt.Sprintf(`\\.\pipe\%s-%s`, app, user)
}

// Listen is unimplemented on Windows in this tree: a production build would
// wire github.com/Microsoft/go-winio's ListenPipe here against EndpointPath.
// That dependency is outside the example corpus this broker was grounded
// on, so the Windows rendezvous path is left as a documented gap rather
// than an invented one.
func Listen(app string) (net.Listener, error) {
	return nil, fmt.Errorf("ipc: named pipe rendezvous not implemented on windows (see EndpointPath)")
}

// Dial mirrors Listen's limitation.
func Dial(app string) (net.Conn, error) {
	return nil, fmt.Errorf("ipc: named pipe rendezvous not implemented on windows (see EndpointPath)")
}
