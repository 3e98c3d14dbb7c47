package session

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/orizon-lang/dap-broker/internal/adaptertransport"
	"github.com/orizon-lang/dap-broker/internal/dapclient"
	"github.com/orizon-lang/dap-broker/internal/dapproto"
)

// fakeAdapter drives the server side of a net.Pipe as a scripted DAP
// adapter: it answers requests with canned bodies and can push events on
// demand, mirroring the deterministic mock adapter spec.md's end-to-end
// scenarios call for.
type fakeAdapter struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func newFakeAdapter(conn net.Conn) *fakeAdapter {
	return &fakeAdapter{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}
}

func (f *fakeAdapter) readRequest(t *testing.T) dapproto.Request {
	t.Helper()

	raw, err := dapproto.ReadMessage(f.r)
	if err != nil {
		t.Fatalf("fakeAdapter: read request: %v", err)
	}

	var req dapproto.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("fakeAdapter: decode request: %v", err)
	}

	return req
}

func (f *fakeAdapter) respond(t *testing.T, req dapproto.Request, body any) {
	t.Helper()

	var raw json.RawMessage

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("fakeAdapter: marshal body: %v", err)
		}

		raw = b
	}

	resp := dapproto.Response{Seq: req.Seq + 1000, Type: "response", RequestSeq: req.Seq, Success: true, Command: req.Command, Body: raw}

	encoded, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("fakeAdapter: marshal response: %v", err)
	}

	if err := dapproto.WriteMessage(f.w, encoded); err != nil {
		t.Fatalf("fakeAdapter: write response: %v", err)
	}
}

func (f *fakeAdapter) sendEvent(t *testing.T, name string, body any) {
	t.Helper()

	var raw json.RawMessage

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("fakeAdapter: marshal event body: %v", err)
		}

		raw = b
	}

	ev := dapproto.Event{Type: "event", Event: name, Body: raw}

	encoded, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("fakeAdapter: marshal event: %v", err)
	}

	if err := dapproto.WriteMessage(f.w, encoded); err != nil {
		t.Fatalf("fakeAdapter: write event: %v", err)
	}
}

// newTestSession wires a Session directly to a fakeAdapter over an in-memory
// pipe, running the full initialize/launch/wait-initialized/
// configurationDone handshake, bypassing adapterconfig resolution and
// subprocess spawning (exercised separately by internal/adaptertransport).
func newTestSession(t *testing.T, caps dapproto.Capabilities, stopOnEntry bool) (*Session, *fakeAdapter) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	adapter := newFakeAdapter(serverConn)

	stream := adaptertransport.NewStream(clientConn, func() error { return nil })

	s := newSession(Config{Timeouts: Timeouts{Initialize: time.Second, General: time.Second}, OutputMaxEvents: 100, OutputMaxBytes: 4096})
	s.adapterName = "mock"
	s.launched = true
	s.program = "/bin/prog"

	done := make(chan struct{})

	go func() {
		defer close(done)

		req := adapter.readRequest(t)
		if req.Command != "initialize" {
			t.Errorf("expected initialize, got %s", req.Command)
		}

		adapter.respond(t, req, caps)

		req = adapter.readRequest(t)
		if req.Command != "launch" {
			t.Errorf("expected launch, got %s", req.Command)
		}

		adapter.respond(t, req, nil)

		adapter.sendEvent(t, "initialized", nil)

		req = adapter.readRequest(t)
		if req.Command != "configurationDone" {
			t.Errorf("expected configurationDone, got %s", req.Command)
		}

		adapter.respond(t, req, nil)
	}()

	err := s.handshake(stream, func(c *dapclient.Client) error {
		return c.Launch(dapproto.LaunchArguments{Program: "/bin/prog"}, time.Second)
	}, stopOnEntry)
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}

	<-done

	return s, adapter
}

func TestHandshakeReachesStoppedOnEntry(t *testing.T) {
	s, _ := newTestSession(t, dapproto.Capabilities{}, true)

	if s.State() != Stopped {
		t.Fatalf("state = %v, want Stopped", s.State())
	}

	status := s.Status()
	if status.StoppedReason != "entry" {
		t.Fatalf("stoppedReason = %q, want entry", status.StoppedReason)
	}
}

func TestHandshakeReachesRunningWithoutStopOnEntry(t *testing.T) {
	s, _ := newTestSession(t, dapproto.Capabilities{}, false)

	if s.State() != Running {
		t.Fatalf("state = %v, want Running", s.State())
	}
}

func TestResumeDrainsStaleStoppedBeforeSending(t *testing.T) {
	s, adapter := newTestSession(t, dapproto.Capabilities{}, false)

	// Simulate a stop observed just before Continue is called.
	adapter.sendEvent(t, "stopped", dapproto.StoppedBody{Reason: "breakpoint", ThreadID: 1})

	time.Sleep(20 * time.Millisecond) // let the fan-out queue receive it

	done := make(chan struct{})

	go func() {
		defer close(done)

		req := adapter.readRequest(t)
		if req.Command != "continue" {
			t.Errorf("expected continue, got %s", req.Command)
		}

		adapter.respond(t, req, nil)
	}()

	if err := s.Continue(); err != nil {
		t.Fatalf("Continue: %v", err)
	}

	<-done

	if s.State() != Running {
		t.Fatalf("state = %v, want Running", s.State())
	}
}

func TestAwaitReturnsOnStoppedEvent(t *testing.T) {
	s, adapter := newTestSession(t, dapproto.Capabilities{}, false)

	go func() {
		time.Sleep(10 * time.Millisecond)
		adapter.sendEvent(t, "stopped", dapproto.StoppedBody{Reason: "step", ThreadID: 1})
	}()

	result, err := s.Await(time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}

	if result.State != Stopped || result.StoppedReason != "step" {
		t.Fatalf("result = %+v", result)
	}
}

func TestAwaitTimesOut(t *testing.T) {
	s, _ := newTestSession(t, dapproto.Capabilities{}, false)

	_, err := s.Await(30 * time.Millisecond)
	if _, ok := err.(*AwaitTimeoutError); !ok {
		t.Fatalf("err = %v, want AwaitTimeoutError", err)
	}
}
