package session

import "github.com/orizon-lang/dap-broker/internal/dapproto"

// Threads refreshes and returns the cached thread list. Only admissible in
// Stopped, per the inspection-operations rule.
func (s *Session) Threads() ([]dapproto.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInspectable("threads"); err != nil {
		return nil, err
	}

	body, err := s.client.Threads(s.timeouts.General)
	if err != nil {
		return nil, err
	}

	s.threads = body.Threads

	return body.Threads, nil
}

// SelectThread verifies id is present in the cached thread list and resets
// the frame cache, per the navigation section.
func (s *Session) SelectThread(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false

	for _, t := range s.threads {
		if t.ID == id {
			found = true

			break
		}
	}

	if !found {
		return &ThreadNotFoundError{ThreadID: id}
	}

	s.selectedTID = id
	s.frames = nil
	s.frameIndex = 0

	return nil
}

// activeThreadID applies the fallback chain: selected-thread, then
// stopped-thread, then the first thread in the last fetched list.
func (s *Session) activeThreadID() (int, error) {
	if s.selectedTID != 0 {
		return s.selectedTID, nil
	}

	if s.stoppedThreadID != 0 {
		return s.stoppedThreadID, nil
	}

	if len(s.threads) > 0 {
		return s.threads[0].ID, nil
	}

	return 0, &ThreadNotFoundError{ThreadID: 0}
}

// StackTrace fetches and caches the stack trace for the active thread,
// resetting frame-index to 0.
func (s *Session) StackTrace(limit int) ([]dapproto.StackFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stackTraceLocked(limit)
}

func (s *Session) stackTraceLocked(limit int) ([]dapproto.StackFrame, error) {
	if err := s.requireInspectable("stackTrace"); err != nil {
		return nil, err
	}

	tid, err := s.activeThreadID()
	if err != nil {
		return nil, err
	}

	body, err := s.client.StackTrace(dapproto.StackTraceArguments{ThreadID: tid, Levels: limit}, s.timeouts.General)
	if err != nil {
		return nil, err
	}

	s.frames = body.StackFrames
	s.frameIndex = 0

	return body.StackFrames, nil
}

// CurrentFrame returns the selected frame, caching the stack trace first if
// it hasn't been fetched yet this stop.
func (s *Session) CurrentFrame() (dapproto.StackFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInspectable("currentFrame"); err != nil {
		return dapproto.StackFrame{}, err
	}

	if s.frames == nil {
		if _, err := s.stackTraceLocked(0); err != nil {
			return dapproto.StackFrame{}, err
		}
	}

	if s.frameIndex < 0 || s.frameIndex >= len(s.frames) {
		return dapproto.StackFrame{}, &FrameNotFoundError{Reason: "no current frame"}
	}

	return s.frames[s.frameIndex], nil
}

// FrameSelect jumps to an absolute frame index within the cached trace.
func (s *Session) FrameSelect(index int) (dapproto.StackFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.frames) {
		return dapproto.StackFrame{}, &FrameNotFoundError{Reason: "frame index out of range"}
	}

	s.frameIndex = index

	return s.frames[index], nil
}

// FrameUp and FrameDown move the selected frame by one, bounds-checked at
// either end.
func (s *Session) FrameUp() (dapproto.StackFrame, error) { return s.moveFrame(1) }

func (s *Session) FrameDown() (dapproto.StackFrame, error) { return s.moveFrame(-1) }

func (s *Session) moveFrame(delta int) (dapproto.StackFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.frameIndex + delta
	if next < 0 || next >= len(s.frames) {
		return dapproto.StackFrame{}, &FrameNotFoundError{Reason: "already at the edge of the stack"}
	}

	s.frameIndex = next

	return s.frames[next], nil
}

// currentFrameID returns the variablesReference-bearing frame id for
// scopes/evaluate calls that default to the current frame.
func (s *Session) currentFrameID() (int, error) {
	if s.frameIndex < 0 || s.frameIndex >= len(s.frames) {
		return 0, &FrameNotFoundError{Reason: "no current frame"}
	}

	return s.frames[s.frameIndex].ID, nil
}

// requireInspectable enforces the rule that stackTrace/locals/evaluate/
// scopes/variables/context are admissible only in Stopped.
func (s *Session) requireInspectable(action string) error {
	switch s.state {
	case Stopped:
		return nil
	case Exited:
		return &ProgramExitedError{ExitCode: s.exitCode}
	default:
		return &InvalidStateError{Action: action, State: s.state}
	}
}
