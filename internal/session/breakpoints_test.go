package session

import (
	"testing"

	"github.com/orizon-lang/dap-broker/internal/dapproto"
	"github.com/orizon-lang/dap-broker/internal/location"
)

func TestAddThenRemoveBreakpointSendsEmptySetOnSecondCall(t *testing.T) {
	s, adapter := newTestSession(t, dapproto.Capabilities{SupportsConditionalBreakpoints: true}, true)

	var calls []dapproto.SetBreakpointsArguments

	serve := func(n int) {
		for i := 0; i < n; i++ {
			req := adapter.readRequest(t)
			if req.Command != "setBreakpoints" {
				t.Errorf("expected setBreakpoints, got %s", req.Command)
			}

			var args dapproto.SetBreakpointsArguments

			_ = decodeBody(req.Arguments, &args)
			calls = append(calls, args)

			bps := make([]dapproto.Breakpoint, len(args.Breakpoints))
			for j, bp := range args.Breakpoints {
				bps[j] = dapproto.Breakpoint{ID: j + 1, Verified: true, Line: bp.Line}
			}

			adapter.respond(t, req, dapproto.SetBreakpointsBody{Breakpoints: bps})
		}
	}

	done := make(chan struct{})
	go func() { defer close(done); serve(1) }()

	info, err := s.AddBreakpoint(location.Parse("/x/y.c:5"), "", "")
	if err != nil {
		t.Fatalf("AddBreakpoint: %v", err)
	}

	<-done

	if info.ID != 1 || !info.Verified {
		t.Fatalf("info = %+v", info)
	}

	list := s.ListBreakpoints()
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	done2 := make(chan struct{})
	go func() { defer close(done2); serve(1) }()

	if err := s.RemoveBreakpoint(info.ID); err != nil {
		t.Fatalf("RemoveBreakpoint: %v", err)
	}

	<-done2

	if len(s.ListBreakpoints()) != 0 {
		t.Fatalf("expected empty list after remove")
	}

	if len(calls) != 2 {
		t.Fatalf("len(calls) = %d, want 2", len(calls))
	}

	if len(calls[0].Breakpoints) != 1 {
		t.Fatalf("first call breakpoints = %v, want 1 entry", calls[0].Breakpoints)
	}

	if len(calls[1].Breakpoints) != 0 {
		t.Fatalf("second call breakpoints = %v, want empty array", calls[1].Breakpoints)
	}
}

func TestAddFunctionBreakpointWithoutCapabilityFails(t *testing.T) {
	s, _ := newTestSession(t, dapproto.Capabilities{}, true)

	_, err := s.AddBreakpoint(location.Parse("main"), "", "")

	capErr, ok := err.(*CapabilityError)
	if !ok {
		t.Fatalf("err = %v, want *CapabilityError", err)
	}

	if capErr.Feature != "function breakpoints" {
		t.Fatalf("Feature = %q", capErr.Feature)
	}
}

func TestRemoveAllBreakpointsOnEmptyStoreIsNoop(t *testing.T) {
	s, adapter := newTestSession(t, dapproto.Capabilities{}, true)

	done := make(chan struct{})

	go func() {
		defer close(done)

		req := adapter.readRequest(t)
		if req.Command != "setFunctionBreakpoints" {
			t.Errorf("expected setFunctionBreakpoints, got %s", req.Command)
		}

		adapter.respond(t, req, dapproto.SetBreakpointsBody{})
	}()

	if err := s.RemoveAllBreakpoints(); err != nil {
		t.Fatalf("RemoveAllBreakpoints: %v", err)
	}

	<-done

	if len(s.ListBreakpoints()) != 0 {
		t.Fatalf("expected empty list")
	}
}

func TestBreakpointNotFound(t *testing.T) {
	s, _ := newTestSession(t, dapproto.Capabilities{}, true)

	err := s.RemoveBreakpoint(999)

	if _, ok := err.(*BreakpointNotFoundError); !ok {
		t.Fatalf("err = %v, want *BreakpointNotFoundError", err)
	}
}
