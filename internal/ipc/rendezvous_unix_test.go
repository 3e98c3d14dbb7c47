//go:build !windows

package ipc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEndpointPathUsesXDGRuntimeDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	got := EndpointPath("dapbroker")
	want := filepath.Join(dir, "dapbroker", "daemon.sock")

	if got != want {
		t.Fatalf("EndpointPath = %q, want %q", got, want)
	}
}

func TestListenAndDialRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	ln, err := Listen("dapbroker-test")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	info, err := os.Stat(EndpointPath("dapbroker-test"))
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}

	if info.Mode().Perm() != 0o600 {
		t.Fatalf("socket mode = %v, want 0600", info.Mode().Perm())
	}

	accepted := make(chan struct{})

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}

		close(accepted)
	}()

	conn, err := Dial("dapbroker-test")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	conn.Close()
	<-accepted
}

func TestListenRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	sockPath := EndpointPath("dapbroker-stale")

	if err := os.MkdirAll(filepath.Dir(sockPath), 0o700); err != nil {
		t.Fatal(err)
	}

	// A leftover file at the socket path with nothing listening on it,
	// simulating a broker that crashed without unlinking its rendezvous
	// file.
	if err := os.WriteFile(sockPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	ln, err := Listen("dapbroker-stale")
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	defer ln.Close()
}
