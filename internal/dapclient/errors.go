package dapclient

import (
	"errors"
	"fmt"
)

// ErrAdapterCrashed is returned by any in-flight or future request once the
// adapter reader has observed EOF, a decode failure, or shutdown.
var ErrAdapterCrashed = errors.New("dapclient: adapter crashed or connection closed")

// TimeoutError reports that a request's deadline elapsed before a response
// arrived.
type TimeoutError struct {
	Command string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dapclient: request %q timed out", e.Command)
}

// AwaitTimeoutError reports an await deadline that elapsed with no
// stop-class event observed. Nothing in this package returns it;
// session.Await reports its timeout as session.AwaitTimeoutError.
type AwaitTimeoutError struct{}

func (e *AwaitTimeoutError) Error() string { return "dapclient: await timed out" }

// ProtocolError wraps a frame the codec or decoder rejected.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return "dapclient: protocol error: " + e.Err.Error() }

func (e *ProtocolError) Unwrap() error { return e.Err }

// AdapterRequestError reports an adapter response with success=false.
type AdapterRequestError struct {
	Command string
	Message string
}

func (e *AdapterRequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dapclient: adapter rejected %q", e.Command)
	}

	return fmt.Sprintf("dapclient: adapter rejected %q: %s", e.Command, e.Message)
}
