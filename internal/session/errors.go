package session

import "fmt"

// InvalidStateError reports an operation attempted from a state that
// doesn't admit it.
type InvalidStateError struct {
	Action string
	State  State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session: %s is not valid in state %s", e.Action, e.State)
}

// ProgramExitedError reports an inspection call made after the debuggee
// exited.
type ProgramExitedError struct {
	ExitCode int
}

func (e *ProgramExitedError) Error() string {
	return fmt.Sprintf("session: program already exited with code %d", e.ExitCode)
}

// ThreadNotFoundError reports a thread id not present in the last observed
// thread list.
type ThreadNotFoundError struct {
	ThreadID int
}

func (e *ThreadNotFoundError) Error() string {
	return fmt.Sprintf("session: thread %d not found", e.ThreadID)
}

// FrameNotFoundError reports an out-of-range frame navigation.
type FrameNotFoundError struct {
	Reason string
}

func (e *FrameNotFoundError) Error() string { return "session: " + e.Reason }

// BreakpointNotFoundError reports an unknown breakpoint id.
type BreakpointNotFoundError struct {
	ID int
}

func (e *BreakpointNotFoundError) Error() string {
	return fmt.Sprintf("session: breakpoint %d not found", e.ID)
}

// CapabilityError reports a feature request the adapter declared it does
// not support, checked before the wire request is ever sent (invariant I5).
type CapabilityError struct {
	Feature string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("session: debug adapter does not support %s", e.Feature)
}

// RestartUnsupportedError reports a restart attempt against an adapter
// without supportsRestartRequest.
type RestartUnsupportedError struct{}

func (e *RestartUnsupportedError) Error() string {
	return "session: adapter does not support restart; stop and start a new session instead"
}

// AlreadyActiveError reports a Start/Attach attempted while a session
// already exists. The broker's mapError maps it to SESSION_ALREADY_ACTIVE;
// the broker's start/attach handlers build that IPC error directly rather
// than constructing this type.
type AlreadyActiveError struct{}

func (e *AlreadyActiveError) Error() string { return "session: a session is already active" }

// NotActiveError reports an operation with no session to act on.
type NotActiveError struct{}

func (e *NotActiveError) Error() string { return "session: no debug session active; start one first" }

// AwaitTimeoutError reports that Await's deadline elapsed with no
// stop-class event observed.
type AwaitTimeoutError struct{}

func (e *AwaitTimeoutError) Error() string { return "session: await timed out" }

// ErrAwaitAdapterCrashed reports that the event channel closed (adapter
// reader exited) while Await was waiting.
var ErrAwaitAdapterCrashed = fmt.Errorf("session: adapter crashed while awaiting a stop event")
