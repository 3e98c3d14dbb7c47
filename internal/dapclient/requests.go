package dapclient

import (
	"encoding/json"
	"time"

	"github.com/orizon-lang/dap-broker/internal/dapproto"
)

// Initialize sends the initialize request and returns the adapter's
// declared capabilities.
func (c *Client) Initialize(adapterID string, timeout time.Duration) (dapproto.Capabilities, error) {
	var caps dapproto.Capabilities

	err := c.call("initialize", dapproto.InitializeArguments{
		AdapterID:      adapterID,
		LinesStartAt1:  true,
		ColumnsStartAt1: true,
		PathFormat:     "path",
	}, timeout, &caps)

	return caps, err
}

// WaitInitialized consumes events off the fan-out queue until "initialized"
// is seen. Any other event observed in the meantime is re-enqueued (in
// original order, ahead of anything arriving later) once this returns, so
// it is safe to call before the session has attached its own consumer.
func (c *Client) WaitInitialized(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	var buffered []*dapproto.Event

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.events.Prepend(buffered)

			return &TimeoutError{Command: "initialize"}
		}

		timer := time.NewTimer(remaining)

		select {
		case ev, ok := <-c.events.Out():
			timer.Stop()

			if !ok {
				return ErrAdapterCrashed
			}

			if ev.Event == "initialized" {
				c.events.Prepend(buffered)

				return nil
			}

			buffered = append(buffered, ev)
		case <-timer.C:
			c.events.Prepend(buffered)

			return &TimeoutError{Command: "initialize"}
		case <-c.shutdown:
			timer.Stop()

			return ErrAdapterCrashed
		}
	}
}

func (c *Client) Launch(args dapproto.LaunchArguments, timeout time.Duration) error {
	return c.call("launch", args, timeout, nil)
}

func (c *Client) Attach(args dapproto.AttachArguments, timeout time.Duration) error {
	return c.call("attach", args, timeout, nil)
}

func (c *Client) ConfigurationDone(timeout time.Duration) error {
	return c.call("configurationDone", nil, timeout, nil)
}

func (c *Client) SetBreakpoints(args dapproto.SetBreakpointsArguments, timeout time.Duration) (dapproto.SetBreakpointsBody, error) {
	var body dapproto.SetBreakpointsBody
	err := c.call("setBreakpoints", args, timeout, &body)

	return body, err
}

func (c *Client) SetFunctionBreakpoints(args dapproto.SetFunctionBreakpointsArguments, timeout time.Duration) (dapproto.SetBreakpointsBody, error) {
	var body dapproto.SetBreakpointsBody
	err := c.call("setFunctionBreakpoints", args, timeout, &body)

	return body, err
}

func (c *Client) Continue(threadID int, timeout time.Duration) error {
	return c.call("continue", map[string]int{"threadId": threadID}, timeout, nil)
}

func (c *Client) Next(threadID int, timeout time.Duration) error {
	return c.call("next", map[string]int{"threadId": threadID}, timeout, nil)
}

func (c *Client) StepIn(threadID int, timeout time.Duration) error {
	return c.call("stepIn", map[string]int{"threadId": threadID}, timeout, nil)
}

func (c *Client) StepOut(threadID int, timeout time.Duration) error {
	return c.call("stepOut", map[string]int{"threadId": threadID}, timeout, nil)
}

func (c *Client) Pause(threadID int, timeout time.Duration) error {
	return c.call("pause", map[string]int{"threadId": threadID}, timeout, nil)
}

func (c *Client) StackTrace(args dapproto.StackTraceArguments, timeout time.Duration) (dapproto.StackTraceBody, error) {
	var body dapproto.StackTraceBody
	err := c.call("stackTrace", args, timeout, &body)

	return body, err
}

func (c *Client) Threads(timeout time.Duration) (dapproto.ThreadsBody, error) {
	var body dapproto.ThreadsBody
	err := c.call("threads", nil, timeout, &body)

	return body, err
}

func (c *Client) Scopes(args dapproto.ScopesArguments, timeout time.Duration) (dapproto.ScopesBody, error) {
	var body dapproto.ScopesBody
	err := c.call("scopes", args, timeout, &body)

	return body, err
}

func (c *Client) Variables(args dapproto.VariablesArguments, timeout time.Duration) (dapproto.VariablesBody, error) {
	var body dapproto.VariablesBody
	err := c.call("variables", args, timeout, &body)

	return body, err
}

func (c *Client) Evaluate(args dapproto.EvaluateArguments, timeout time.Duration) (dapproto.EvaluateBody, error) {
	var body dapproto.EvaluateBody
	err := c.call("evaluate", args, timeout, &body)

	return body, err
}

func (c *Client) Restart(timeout time.Duration) error {
	return c.call("restart", json.RawMessage("{}"), timeout, nil)
}

func (c *Client) SetVariable(args dapproto.SetVariableArguments, timeout time.Duration) (dapproto.SetVariableBody, error) {
	var body dapproto.SetVariableBody
	err := c.call("setVariable", args, timeout, &body)

	return body, err
}

func (c *Client) ReadMemory(args dapproto.ReadMemoryArguments, timeout time.Duration) (dapproto.ReadMemoryBody, error) {
	var body dapproto.ReadMemoryBody
	err := c.call("readMemory", args, timeout, &body)

	return body, err
}

func (c *Client) Disassemble(args dapproto.DisassembleArguments, timeout time.Duration) (dapproto.DisassembleBody, error) {
	var body dapproto.DisassembleBody
	err := c.call("disassemble", args, timeout, &body)

	return body, err
}

func (c *Client) DataBreakpointInfo(args dapproto.DataBreakpointInfoArguments, timeout time.Duration) (dapproto.DataBreakpointInfoBody, error) {
	var body dapproto.DataBreakpointInfoBody
	err := c.call("dataBreakpointInfo", args, timeout, &body)

	return body, err
}

func (c *Client) SetDataBreakpoints(args dapproto.SetDataBreakpointsArguments, timeout time.Duration) (dapproto.SetDataBreakpointsBody, error) {
	var body dapproto.SetDataBreakpointsBody
	err := c.call("setDataBreakpoints", args, timeout, &body)

	return body, err
}
