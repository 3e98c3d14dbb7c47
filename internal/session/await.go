package session

import "time"

// AwaitResult reports the outcome of Await.
type AwaitResult struct {
	AlreadyStopped   bool
	State            State
	StoppedReason    string
	ThreadID         int
	HitBreakpointIDs []int
	ExitCode         int
}

// Await blocks until the next Stopped/Exited/Terminated event, bounded by
// timeout. It first drains any already-queued events through the normal
// handler (which may itself move the session to Stopped or Exited); if that
// lands the session in a terminal/stopped state already, it returns
// immediately with AlreadyStopped set. Otherwise it waits on the event
// channel, applying the handler to every event observed, and returns on the
// first stop-class event.
func (s *Session) Await(timeout time.Duration) (AwaitResult, error) {
	s.mu.Lock()

	s.drainEvents()

	if s.state == Stopped || s.state == Exited {
		result := AwaitResult{
			AlreadyStopped:   true,
			State:            s.state,
			StoppedReason:    s.stoppedReason,
			ThreadID:         s.stoppedThreadID,
			HitBreakpointIDs: s.hitBreakpointIDs,
			ExitCode:         s.exitCode,
		}
		s.mu.Unlock()

		return result, nil
	}

	events := s.events
	s.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return AwaitResult{}, ErrAwaitAdapterCrashed
			}

			s.mu.Lock()
			s.applyEvent(ev)
			state := s.state
			reason := s.stoppedReason
			tid := s.stoppedThreadID
			hitIDs := s.hitBreakpointIDs
			code := s.exitCode
			s.mu.Unlock()

			if state == Stopped || state == Exited {
				return AwaitResult{State: state, StoppedReason: reason, ThreadID: tid, HitBreakpointIDs: hitIDs, ExitCode: code}, nil
			}
		case <-deadline.C:
			return AwaitResult{}, &AwaitTimeoutError{}
		}
	}
}
