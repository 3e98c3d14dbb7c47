package session

import (
	"github.com/orizon-lang/dap-broker/internal/dapproto"
	"github.com/orizon-lang/dap-broker/internal/location"
)

// AddBreakpoint implements the Add algorithm: assign an id, append to the
// appropriate collection, and resend the bulk set for the affected scope.
// Capability gates (I5) run before any wire request for function
// breakpoints.
func (s *Session) AddBreakpoint(loc location.Location, condition, hitCondition string) (BreakpointInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle || s.state == Terminating {
		return BreakpointInfo{}, &NotActiveError{}
	}

	if loc.Kind == location.Function {
		if condition != "" && !s.caps.SupportsConditionalBreakpoints {
			return BreakpointInfo{}, &CapabilityError{Feature: "conditional breakpoints"}
		}

		if hitCondition != "" && !s.caps.SupportsHitConditionalBreakpoints {
			return BreakpointInfo{}, &CapabilityError{Feature: "hit-conditional breakpoints"}
		}

		if !s.caps.SupportsFunctionBreakpoints {
			return BreakpointInfo{}, &CapabilityError{Feature: "function breakpoints"}
		}

		bp := &FunctionBreakpoint{
			ID:           s.breakpoints.allocID(),
			Name:         loc.FuncName,
			Condition:    condition,
			HitCondition: hitCondition,
			Enabled:      true,
		}
		s.breakpoints.funcs = append(s.breakpoints.funcs, bp)

		if err := s.sendFunctionBreakpoints(); err != nil {
			return BreakpointInfo{}, err
		}

		return breakpointInfoFromFunc(bp), nil
	}

	if condition != "" && !s.caps.SupportsConditionalBreakpoints {
		return BreakpointInfo{}, &CapabilityError{Feature: "conditional breakpoints"}
	}

	if hitCondition != "" && !s.caps.SupportsHitConditionalBreakpoints {
		return BreakpointInfo{}, &CapabilityError{Feature: "hit-conditional breakpoints"}
	}

	s.breakpoints.touch(loc.File)

	bp := &SourceBreakpoint{
		ID:           s.breakpoints.allocID(),
		File:         loc.File,
		Line:         loc.LineNo,
		Condition:    condition,
		HitCondition: hitCondition,
		Enabled:      true,
	}
	s.breakpoints.byFile[loc.File] = append(s.breakpoints.byFile[loc.File], bp)

	if err := s.sendSourceBreakpoints(loc.File); err != nil {
		return BreakpointInfo{}, err
	}

	return breakpointInfoFromSource(bp), nil
}

// RemoveBreakpoint implements Remove(id): locate by id, drop it, resend the
// bulk set for its scope.
func (s *Session) RemoveBreakpoint(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle || s.state == Terminating {
		return &NotActiveError{}
	}

	if file, ok := s.breakpoints.removeSource(id); ok {
		return s.sendSourceBreakpoints(file)
	}

	if s.breakpoints.removeFunc(id) {
		return s.sendFunctionBreakpoints()
	}

	return &BreakpointNotFoundError{ID: id}
}

// RemoveAllBreakpoints implements Remove-all: empty sets to every file ever
// touched, clear the function list, and send an empty function set.
func (s *Session) RemoveAllBreakpoints() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle || s.state == Terminating {
		return &NotActiveError{}
	}

	for _, file := range s.breakpoints.touchedFiles {
		s.breakpoints.byFile[file] = nil

		if err := s.sendSourceBreakpoints(file); err != nil {
			return err
		}
	}

	s.breakpoints.funcs = nil

	return s.sendFunctionBreakpoints()
}

// EnableBreakpoint and DisableBreakpoint toggle the flag and resend the
// bulk set for the breakpoint's scope; a disabled breakpoint is simply
// absent from the wire request.
func (s *Session) EnableBreakpoint(id int) error  { return s.setEnabled(id, true) }
func (s *Session) DisableBreakpoint(id int) error { return s.setEnabled(id, false) }

func (s *Session) setEnabled(id int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle || s.state == Terminating {
		return &NotActiveError{}
	}

	if bp := s.breakpoints.findSource(id); bp != nil {
		bp.Enabled = enabled

		return s.sendSourceBreakpoints(bp.File)
	}

	if bp := s.breakpoints.findFunc(id); bp != nil {
		bp.Enabled = enabled

		return s.sendFunctionBreakpoints()
	}

	return &BreakpointNotFoundError{ID: id}
}

// ListBreakpoints projects stored breakpoint state with no wire traffic.
func (s *Session) ListBreakpoints() []BreakpointInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.breakpoints.list()
}

// resendAllBreakpoints re-installs every currently-enabled breakpoint during
// the handshake run by Start/Attach/FromStream. On a brand new session no
// breakpoints exist yet, so it sends nothing.
func (s *Session) resendAllBreakpoints() error {
	for _, file := range s.breakpoints.touchedFiles {
		if err := s.sendSourceBreakpoints(file); err != nil {
			return err
		}
	}

	if len(s.breakpoints.funcs) > 0 {
		return s.sendFunctionBreakpoints()
	}

	return nil
}

func (s *Session) sendSourceBreakpoints(file string) error {
	enabled := s.breakpoints.enabledInFile(file)

	wire := make([]dapproto.SourceBreakpoint, len(enabled))
	for i, bp := range enabled {
		wire[i] = dapproto.SourceBreakpoint{Line: bp.Line, Condition: bp.Condition, HitCondition: bp.HitCondition}
	}

	body, err := s.client.SetBreakpoints(dapproto.SetBreakpointsArguments{
		Source:      dapproto.Source{Path: file},
		Breakpoints: wire,
	}, s.timeouts.General)
	if err != nil {
		return err
	}

	// Position-based correlation: the adapter's reply is in request order.
	for i, bp := range enabled {
		if i >= len(body.Breakpoints) {
			break
		}

		resp := body.Breakpoints[i]
		bp.Verified = resp.Verified
		bp.Message = resp.Message
		bp.ActualLine = resp.Line
	}

	return nil
}

func (s *Session) sendFunctionBreakpoints() error {
	enabled := s.breakpoints.enabledFuncs()

	wire := make([]dapproto.FunctionBreakpoint, len(enabled))
	for i, bp := range enabled {
		wire[i] = dapproto.FunctionBreakpoint{Name: bp.Name, Condition: bp.Condition, HitCondition: bp.HitCondition}
	}

	body, err := s.client.SetFunctionBreakpoints(dapproto.SetFunctionBreakpointsArguments{Breakpoints: wire}, s.timeouts.General)
	if err != nil {
		return err
	}

	for i, bp := range enabled {
		if i >= len(body.Breakpoints) {
			break
		}

		resp := body.Breakpoints[i]
		bp.Verified = resp.Verified
		bp.Message = resp.Message
	}

	return nil
}

func breakpointInfoFromSource(bp *SourceBreakpoint) BreakpointInfo {
	loc := location.Location{Kind: location.Line, File: bp.File, LineNo: bp.Line}

	return BreakpointInfo{ID: bp.ID, Location: loc.String(), Enabled: bp.Enabled, Verified: bp.Verified, ActualLine: bp.ActualLine, Message: bp.Message}
}

func breakpointInfoFromFunc(bp *FunctionBreakpoint) BreakpointInfo {
	return BreakpointInfo{ID: bp.ID, Location: bp.Name, Enabled: bp.Enabled, Verified: bp.Verified, Message: bp.Message}
}
