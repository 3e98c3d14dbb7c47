package session

import "github.com/orizon-lang/dap-broker/internal/dapproto"

// resumeOp issues a resume/step command: drain queued events first (the
// drain-before-send rule enforcing I3), clear stopped fields, send the
// request, and move to Running.
func (s *Session) resumeOp(send func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drain before validating state: a queued but not-yet-applied Stopped
	// event may be exactly what makes this resume admissible.
	s.drainEvents()

	if s.state != Stopped {
		return &InvalidStateError{Action: "resume", State: s.state}
	}

	s.clearStoppedFields()

	if err := send(); err != nil {
		return err
	}

	s.state = Running

	return nil
}

func (s *Session) Continue() error {
	return s.resumeOp(func() error {
		tid, err := s.activeThreadID()
		if err != nil {
			return err
		}

		return s.client.Continue(tid, s.timeouts.General)
	})
}

func (s *Session) Next() error {
	return s.resumeOp(func() error {
		tid, err := s.activeThreadID()
		if err != nil {
			return err
		}

		return s.client.Next(tid, s.timeouts.General)
	})
}

func (s *Session) StepIn() error {
	return s.resumeOp(func() error {
		tid, err := s.activeThreadID()
		if err != nil {
			return err
		}

		return s.client.StepIn(tid, s.timeouts.General)
	})
}

func (s *Session) StepOut() error {
	return s.resumeOp(func() error {
		tid, err := s.activeThreadID()
		if err != nil {
			return err
		}

		return s.client.StepOut(tid, s.timeouts.General)
	})
}

// Pause sends pause and leaves the state as Running until the adapter's
// Stopped event arrives, per the state table's "remains Running until
// event" entry.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return &InvalidStateError{Action: "pause", State: s.state}
	}

	tid, err := s.activeThreadID()
	if err != nil {
		return err
	}

	return s.client.Pause(tid, s.timeouts.General)
}

// Scopes returns the scopes for frameID, defaulting to the current frame
// when frameID is 0.
func (s *Session) Scopes(frameID int) ([]dapproto.Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInspectable("scopes"); err != nil {
		return nil, err
	}

	if frameID == 0 {
		id, err := s.currentFrameID()
		if err != nil {
			return nil, err
		}

		frameID = id
	}

	body, err := s.client.Scopes(dapproto.ScopesArguments{FrameID: frameID}, s.timeouts.General)

	return body.Scopes, err
}

// LocalsResult carries the resolved scope's variables alongside the scope
// name the fallback chain actually picked, since it isn't always "Locals".
type LocalsResult struct {
	ScopeName string
	Variables []dapproto.Variable
}

// Locals is Scopes' usual caller: it resolves the current frame's
// "Locals"/"Local" scope and returns its variables in one call, matching
// the `locals` IPC command's contract. If no scope is named either, it
// falls back to the first scope and reports that scope's actual name.
func (s *Session) Locals(frameID int) (LocalsResult, error) {
	scopes, err := s.Scopes(frameID)
	if err != nil {
		return LocalsResult{}, err
	}

	for _, sc := range scopes {
		if sc.Name == "Locals" || sc.Name == "Local" {
			vars, err := s.Variables(sc.VariablesReference)

			return LocalsResult{ScopeName: sc.Name, Variables: vars}, err
		}
	}

	if len(scopes) > 0 {
		vars, err := s.Variables(scopes[0].VariablesReference)

		return LocalsResult{ScopeName: scopes[0].Name, Variables: vars}, err
	}

	return LocalsResult{}, nil
}

// Variables returns the children of a variablesReference.
func (s *Session) Variables(ref int) ([]dapproto.Variable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInspectable("variables"); err != nil {
		return nil, err
	}

	body, err := s.client.Variables(dapproto.VariablesArguments{VariablesReference: ref}, s.timeouts.General)

	return body.Variables, err
}

// Evaluate runs an expression in the given context (watch|repl|hover),
// defaulting to the current frame when frameID is 0.
func (s *Session) Evaluate(expr string, frameID int, context string) (dapproto.EvaluateBody, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInspectable("evaluate"); err != nil {
		return dapproto.EvaluateBody{}, err
	}

	if frameID == 0 {
		id, err := s.currentFrameID()
		if err == nil {
			frameID = id
		}
	}

	if context == "hover" && !s.caps.SupportsEvaluateForHovers {
		return dapproto.EvaluateBody{}, &CapabilityError{Feature: "evaluate for hovers"}
	}

	return s.client.Evaluate(dapproto.EvaluateArguments{Expression: expr, FrameID: frameID, Context: context}, s.timeouts.General)
}

// SetVariable mutates a variable, gated on supportsSetVariable.
func (s *Session) SetVariable(ref int, name, value string) (dapproto.SetVariableBody, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInspectable("setVariable"); err != nil {
		return dapproto.SetVariableBody{}, err
	}

	if !s.caps.SupportsSetVariable {
		return dapproto.SetVariableBody{}, &CapabilityError{Feature: "set variable"}
	}

	return s.client.SetVariable(dapproto.SetVariableArguments{VariablesReference: ref, Name: name, Value: value}, s.timeouts.General)
}

// ReadMemory is gated on supportsReadMemoryRequest.
func (s *Session) ReadMemory(memRef string, offset, count int) (dapproto.ReadMemoryBody, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInspectable("readMemory"); err != nil {
		return dapproto.ReadMemoryBody{}, err
	}

	if !s.caps.SupportsReadMemoryRequest {
		return dapproto.ReadMemoryBody{}, &CapabilityError{Feature: "read memory"}
	}

	return s.client.ReadMemory(dapproto.ReadMemoryArguments{MemoryReference: memRef, Offset: offset, Count: count}, s.timeouts.General)
}

// Disassemble is gated on supportsDisassembleRequest.
func (s *Session) Disassemble(memRef string, count int) (dapproto.DisassembleBody, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInspectable("disassemble"); err != nil {
		return dapproto.DisassembleBody{}, err
	}

	if !s.caps.SupportsDisassembleRequest {
		return dapproto.DisassembleBody{}, &CapabilityError{Feature: "disassemble"}
	}

	return s.client.Disassemble(dapproto.DisassembleArguments{MemoryReference: memRef, InstructionCount: count}, s.timeouts.General)
}

// DataBreakpointInfo and SetDataBreakpoints are both gated on
// supportsDataBreakpoints.
func (s *Session) DataBreakpointInfo(ref int, name string) (dapproto.DataBreakpointInfoBody, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.caps.SupportsDataBreakpoints {
		return dapproto.DataBreakpointInfoBody{}, &CapabilityError{Feature: "data breakpoints"}
	}

	return s.client.DataBreakpointInfo(dapproto.DataBreakpointInfoArguments{VariablesReference: ref, Name: name}, s.timeouts.General)
}

func (s *Session) SetDataBreakpoints(bps []dapproto.DataBreakpoint) (dapproto.SetDataBreakpointsBody, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.caps.SupportsDataBreakpoints {
		return dapproto.SetDataBreakpointsBody{}, &CapabilityError{Feature: "data breakpoints"}
	}

	return s.client.SetDataBreakpoints(dapproto.SetDataBreakpointsArguments{Breakpoints: bps}, s.timeouts.General)
}
