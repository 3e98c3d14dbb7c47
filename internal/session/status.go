package session

// Status is the `status` IPC command's projection of session state.
type Status struct {
	State         State
	Program       string
	Adapter       string
	StoppedReason string
	ExitCode      int
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drainEvents()

	return Status{
		State:         s.state,
		Program:       s.program,
		Adapter:       s.adapterName,
		StoppedReason: s.stoppedReason,
		ExitCode:      s.exitCode,
	}
}

// StoppedInfo reports the cached stop details the `context` IPC command
// composes with a source window and locals.
type StoppedInfo struct {
	ThreadID         int
	Reason           string
	HitBreakpointIDs []int
}

func (s *Session) StoppedInfo() (StoppedInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Stopped {
		return StoppedInfo{}, &InvalidStateError{Action: "context", State: s.state}
	}

	return StoppedInfo{ThreadID: s.stoppedThreadID, Reason: s.stoppedReason, HitBreakpointIDs: s.hitBreakpointIDs}, nil
}

// GetOutput returns the last n buffered entries (or all, if n <= 0),
// optionally clearing the buffer afterward.
func (s *Session) GetOutput(tail int, clear bool) []OutputEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drainEvents()

	entries := s.output.Tail(tail)

	if clear {
		s.output.Clear()
	}

	return entries
}
