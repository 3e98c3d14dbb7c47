package broker

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/orizon-lang/dap-broker/internal/adaptertransport"
	"github.com/orizon-lang/dap-broker/internal/dapclient"
	"github.com/orizon-lang/dap-broker/internal/dapproto"
	"github.com/orizon-lang/dap-broker/internal/ipc"
	"github.com/orizon-lang/dap-broker/internal/session"
)

// fakeAdapter drives the server side of a net.Pipe as a scripted DAP
// adapter, mirroring internal/session's test helper one layer up so the
// broker's dispatch table can be exercised without a real subprocess.
type fakeAdapter struct {
	r *bufio.Reader
	w *bufio.Writer
}

func newFakeAdapter(conn net.Conn) *fakeAdapter {
	return &fakeAdapter{r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}
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

// brokerWithSession builds a Broker whose session is already live, wired to
// a fakeAdapter over an in-memory pipe via session.FromStream, so dispatch
// can be driven directly without serveConn's real socket loop.
func brokerWithSession(t *testing.T, stopOnEntry bool) (*Broker, *fakeAdapter) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	adapter := newFakeAdapter(serverConn)

	stream := adaptertransport.NewStream(clientConn, func() error { return nil })

	done := make(chan struct{})

	go func() {
		defer close(done)

		req := adapter.readRequest(t)
		adapter.respond(t, req, dapproto.Capabilities{SupportsRestartRequest: true})

		req = adapter.readRequest(t)
		adapter.respond(t, req, nil)

		adapter.sendEvent(t, "initialized", nil)

		req = adapter.readRequest(t)
		adapter.respond(t, req, nil)
	}()

	sess, err := session.FromStream(stream, "mock", true, "/bin/prog", nil, func(c *dapclient.Client) error {
		return c.Launch(dapproto.LaunchArguments{Program: "/bin/prog"}, time.Second)
	}, stopOnEntry, session.Config{
		Timeouts:        session.Timeouts{Initialize: time.Second, General: time.Second},
		OutputMaxEvents: 100,
		OutputMaxBytes:  4096,
	})
	if err != nil {
		t.Fatalf("session.FromStream: %v", err)
	}

	<-done

	b := New(DefaultConfig(), nil, nil)
	b.sess = sess

	return b, adapter
}

func cmdReq(id uint64, tag string, fields map[string]any) ipc.Request {
	payload := map[string]any{"type": tag}

	for k, v := range fields {
		payload[k] = v
	}

	raw, _ := json.Marshal(payload)

	return ipc.Request{ID: id, Command: raw}
}

func TestDispatchStatusWithNoSession(t *testing.T) {
	b := New(DefaultConfig(), nil, nil)

	resp := b.dispatch(cmdReq(1, "status", nil))
	if !resp.Success {
		t.Fatalf("resp = %+v", resp)
	}

	var st session.Status

	if err := json.Unmarshal(resp.Result, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if st.State != session.Idle {
		t.Fatalf("state = %v, want Idle", st.State)
	}
}

func TestDispatchBreakpointAddWithoutSessionFails(t *testing.T) {
	b := New(DefaultConfig(), nil, nil)

	resp := b.dispatch(cmdReq(1, "breakpoint_add", map[string]any{"location": "a.c:1"}))
	if resp.Success {
		t.Fatalf("expected failure")
	}

	if resp.Error.Code != ipc.SessionNotActive {
		t.Fatalf("code = %v, want SESSION_NOT_ACTIVE", resp.Error.Code)
	}
}

func TestDispatchShutdownClosesChannel(t *testing.T) {
	b := New(DefaultConfig(), nil, nil)

	resp := b.dispatch(cmdReq(1, "shutdown", nil))
	if !resp.Success {
		t.Fatalf("resp = %+v", resp)
	}

	select {
	case <-b.shutdownCh:
	default:
		t.Fatalf("expected shutdownCh to be closed")
	}
}

func TestDispatchStartWhileActiveFails(t *testing.T) {
	b, _ := brokerWithSession(t, false)

	resp := b.dispatch(cmdReq(1, "start", map[string]any{"program": "/bin/x"}))
	if resp.Success {
		t.Fatalf("expected failure")
	}

	if resp.Error.Code != ipc.SessionAlreadyActive {
		t.Fatalf("code = %v, want SESSION_ALREADY_ACTIVE", resp.Error.Code)
	}
}

func TestDispatchStatusAfterStopOnEntry(t *testing.T) {
	b, _ := brokerWithSession(t, true)

	statusResp := b.dispatch(cmdReq(1, "status", nil))
	if !statusResp.Success {
		t.Fatalf("status resp = %+v", statusResp)
	}

	var st session.Status
	if err := json.Unmarshal(statusResp.Result, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}

	if st.State != session.Stopped {
		t.Fatalf("state = %v, want Stopped", st.State)
	}
}

func TestDispatchBreakpointAddThenRemove(t *testing.T) {
	b, adapter := brokerWithSession(t, false)

	done := make(chan struct{})

	go func() {
		defer close(done)

		req := adapter.readRequest(t)
		adapter.respond(t, req, dapproto.SetBreakpointsBody{Breakpoints: []dapproto.Breakpoint{{ID: 1, Verified: true, Line: 5}}})
	}()

	resp := b.dispatch(cmdReq(1, "breakpoint_add", map[string]any{"location": "/x/y.c:5"}))
	<-done

	if !resp.Success {
		t.Fatalf("resp = %+v", resp)
	}

	listResp := b.dispatch(cmdReq(2, "breakpoint_list", nil))
	if !listResp.Success {
		t.Fatalf("list resp = %+v", listResp)
	}

	var list []session.BreakpointInfo
	if err := json.Unmarshal(listResp.Result, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}

	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	done2 := make(chan struct{})

	go func() {
		defer close(done2)

		req := adapter.readRequest(t)
		adapter.respond(t, req, dapproto.SetBreakpointsBody{})
	}()

	removeResp := b.dispatch(cmdReq(3, "breakpoint_remove", map[string]any{"id": 1}))
	<-done2

	if !removeResp.Success {
		t.Fatalf("remove resp = %+v", removeResp)
	}
}

func TestDispatchBreakpointAddFunctionWithoutCapabilityFails(t *testing.T) {
	b, _ := brokerWithSession(t, false)

	resp := b.dispatch(cmdReq(1, "breakpoint_add", map[string]any{"location": "mainFunc"}))
	if resp.Success {
		t.Fatalf("expected failure")
	}

	if resp.Error.Code != ipc.InternalError {
		t.Fatalf("code = %v, want INTERNAL_ERROR (capability gate)", resp.Error.Code)
	}
}

func TestDispatchStackTraceWithoutSessionFails(t *testing.T) {
	b := New(DefaultConfig(), nil, nil)

	resp := b.dispatch(cmdReq(1, "stack_trace", map[string]any{"limit": 1}))
	if resp.Success {
		t.Fatalf("expected failure")
	}

	if resp.Error.Code != ipc.SessionNotActive {
		t.Fatalf("code = %v, want SESSION_NOT_ACTIVE", resp.Error.Code)
	}
}
