// Package dapproto defines the wire-level vocabulary of the Debug Adapter
// Protocol: the three message shapes (request, response, event) and the
// typed argument/body structs for the commands and events this broker
// issues or consumes. Anything not named here still round-trips through
// json.RawMessage, so an adapter sending an unrecognized event never breaks
// decoding.
package dapproto

import "encoding/json"

// ProtocolMessage is the envelope shared by all three DAP message kinds.
type ProtocolMessage struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"` // "request" | "response" | "event"
}

// Request is a command sent to the adapter.
type Request struct {
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewRequest builds a Request with arguments marshaled from v (v may be nil).
func NewRequest(seq int, command string, v any) (Request, error) {
	req := Request{Seq: seq, Type: "request", Command: command}

	if v == nil {
		return req, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return Request{}, err
	}

	req.Arguments = raw

	return req, nil
}

// Response answers a prior Request by sequence number.
type Response struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Event is an unsolicited notification from the adapter.
type Event struct {
	Seq   int             `json:"seq"`
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// messageKind peeks at the "type" discriminator of a raw DAP message without
// fully decoding it, so the reader can route to the right struct.
func messageKind(raw []byte) (string, error) {
	var hdr ProtocolMessage
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return "", err
	}

	return hdr.Type, nil
}

// Decode routes a raw frame to a Response or an Event. Requests never
// arrive on this side of the connection (the broker only ever issues
// requests to the adapter), so any other type is returned as an
// *UnknownMessageTypeError.
func Decode(raw []byte) (resp *Response, ev *Event, err error) {
	kind, err := messageKind(raw)
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case "response":
		var r Response
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, nil, err
		}

		return &r, nil, nil
	case "event":
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, nil, err
		}

		return nil, &e, nil
	default:
		return nil, nil, &UnknownMessageTypeError{Kind: kind}
	}
}

// UnknownMessageTypeError is returned by Decode for a message whose "type"
// is neither "response" nor "event".
type UnknownMessageTypeError struct {
	Kind string
}

func (e *UnknownMessageTypeError) Error() string {
	return "dapproto: unknown message type " + e.Kind
}

// Capabilities is the subset of the adapter's initialize response this
// broker reads. Unknown fields the adapter sends are simply dropped by
// encoding/json, matching how the reference adapters describe their own
// capability structs.
type Capabilities struct {
	SupportsConfigurationDoneRequest  bool `json:"supportsConfigurationDoneRequest"`
	SupportsFunctionBreakpoints       bool `json:"supportsFunctionBreakpoints"`
	SupportsConditionalBreakpoints    bool `json:"supportsConditionalBreakpoints"`
	SupportsHitConditionalBreakpoints bool `json:"supportsHitConditionalBreakpoints"`
	SupportsRestartRequest            bool `json:"supportsRestartRequest"`
	SupportsDataBreakpoints           bool `json:"supportsDataBreakpoints"`
	SupportsReadMemoryRequest         bool `json:"supportsReadMemoryRequest"`
	SupportsDisassembleRequest        bool `json:"supportsDisassembleRequest"`
	SupportsSetVariable               bool `json:"supportsSetVariable"`
	SupportsEvaluateForHovers         bool `json:"supportsEvaluateForHovers"`
}

// StoppedBody is the body of a "stopped" event.
type StoppedBody struct {
	Reason            string `json:"reason"`
	Description       string `json:"description,omitempty"`
	ThreadID          int    `json:"threadId"`
	AllThreadsStopped bool   `json:"allThreadsStopped,omitempty"`
	HitBreakpointIDs  []int  `json:"hitBreakpointIds,omitempty"`
	Text              string `json:"text,omitempty"`
}

// ExitedBody is the body of an "exited" event.
type ExitedBody struct {
	ExitCode int `json:"exitCode"`
}

// ThreadEventBody is the body of a "thread" event.
type ThreadEventBody struct {
	Reason   string `json:"reason"`
	ThreadID int    `json:"threadId"`
}

// OutputBody is the body of an "output" event.
type OutputBody struct {
	Category string `json:"category,omitempty"`
	Output   string `json:"output"`
}

// ContinuedBody is the body of a "continued" event (treated as a hint only).
type ContinuedBody struct {
	ThreadID            int  `json:"threadId"`
	AllThreadsContinued bool `json:"allThreadsContinued,omitempty"`
}

// SourceBreakpoint mirrors the DAP wire shape for one entry of a bulk
// setBreakpoints request.
type SourceBreakpoint struct {
	Line      int    `json:"line"`
	Condition string `json:"condition,omitempty"`
	HitCondition string `json:"hitCondition,omitempty"`
}

// FunctionBreakpoint mirrors the DAP wire shape for one entry of a bulk
// setFunctionBreakpoints request.
type FunctionBreakpoint struct {
	Name         string `json:"name"`
	Condition    string `json:"condition,omitempty"`
	HitCondition string `json:"hitCondition,omitempty"`
}

// Source identifies a source file to the adapter.
type Source struct {
	Path string `json:"path,omitempty"`
	Name string `json:"name,omitempty"`
}

// SetBreakpointsArguments is the bulk request for one source file.
type SetBreakpointsArguments struct {
	Source      Source             `json:"source"`
	Breakpoints []SourceBreakpoint `json:"breakpoints"`
}

// SetFunctionBreakpointsArguments is the bulk request for function breakpoints.
type SetFunctionBreakpointsArguments struct {
	Breakpoints []FunctionBreakpoint `json:"breakpoints"`
}

// Breakpoint is one element of the array the adapter returns from
// setBreakpoints/setFunctionBreakpoints, in request order (see the
// position-based correlation policy), and also the shape of a "breakpoint"
// event's changed-breakpoint payload, where Source/Line identify it instead.
type Breakpoint struct {
	ID       int     `json:"id,omitempty"`
	Verified bool    `json:"verified"`
	Message  string  `json:"message,omitempty"`
	Line     int     `json:"line,omitempty"`
	Source   *Source `json:"source,omitempty"`
}

// SetBreakpointsBody wraps the returned Breakpoint array.
type SetBreakpointsBody struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
}

// BreakpointEventBody is the body of a "breakpoint" event, reporting a
// mid-session change to one breakpoint's verification status.
type BreakpointEventBody struct {
	Reason     string     `json:"reason"`
	Breakpoint Breakpoint `json:"breakpoint"`
}

// LaunchArguments and AttachArguments carry only what this broker
// contributes: program, args and stopOnEntry for launch, pid for attach.
// No other adapter-specific launch/attach fields are sent.
type LaunchArguments struct {
	Program     string `json:"program,omitempty"`
	Args        []string `json:"args,omitempty"`
	StopOnEntry bool   `json:"stopOnEntry,omitempty"`
}

type AttachArguments struct {
	Pid int `json:"pid,omitempty"`
}

// StackFrame mirrors the DAP stack frame shape.
type StackFrame struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Source Source `json:"source,omitempty"`
}

// StackTraceArguments requests frames for a thread.
type StackTraceArguments struct {
	ThreadID   int `json:"threadId"`
	StartFrame int `json:"startFrame,omitempty"`
	Levels     int `json:"levels,omitempty"`
}

// StackTraceBody is the adapter's reply.
type StackTraceBody struct {
	StackFrames []StackFrame `json:"stackFrames"`
	TotalFrames int          `json:"totalFrames,omitempty"`
}

// Thread mirrors the DAP thread shape.
type Thread struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ThreadsBody is the adapter's reply to "threads".
type ThreadsBody struct {
	Threads []Thread `json:"threads"`
}

// Scope mirrors the DAP scope shape.
type Scope struct {
	Name               string `json:"name"`
	VariablesReference int    `json:"variablesReference"`
	Expensive          bool   `json:"expensive,omitempty"`
}

// ScopesArguments requests scopes for a frame.
type ScopesArguments struct {
	FrameID int `json:"frameId"`
}

// ScopesBody is the adapter's reply.
type ScopesBody struct {
	Scopes []Scope `json:"scopes"`
}

// Variable mirrors the DAP variable shape.
type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference"`
}

// VariablesArguments requests the children of a variables reference.
type VariablesArguments struct {
	VariablesReference int `json:"variablesReference"`
}

// VariablesBody is the adapter's reply.
type VariablesBody struct {
	Variables []Variable `json:"variables"`
}

// EvaluateArguments requests expression evaluation.
type EvaluateArguments struct {
	Expression string `json:"expression"`
	FrameID    int    `json:"frameId,omitempty"`
	Context    string `json:"context,omitempty"` // watch | repl | hover
}

// EvaluateBody is the adapter's reply.
type EvaluateBody struct {
	Result             string `json:"result"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference,omitempty"`
}

// SetVariableArguments requests a variable mutation.
type SetVariableArguments struct {
	VariablesReference int    `json:"variablesReference"`
	Name               string `json:"name"`
	Value              string `json:"value"`
}

// SetVariableBody is the adapter's reply.
type SetVariableBody struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// ReadMemoryArguments requests a memory read.
type ReadMemoryArguments struct {
	MemoryReference string `json:"memoryReference"`
	Offset          int    `json:"offset,omitempty"`
	Count           int    `json:"count"`
}

// ReadMemoryBody is the adapter's reply.
type ReadMemoryBody struct {
	Address       string `json:"address"`
	UnreadableBytes int  `json:"unreadableBytes,omitempty"`
	Data          string `json:"data,omitempty"`
}

// DisassembleArguments requests disassembly.
type DisassembleArguments struct {
	MemoryReference  string `json:"memoryReference"`
	InstructionCount int    `json:"instructionCount"`
}

// DisassembledInstruction mirrors one element of the disassemble reply.
type DisassembledInstruction struct {
	Address     string `json:"address"`
	Instruction string `json:"instruction"`
}

// DisassembleBody is the adapter's reply.
type DisassembleBody struct {
	Instructions []DisassembledInstruction `json:"instructions"`
}

// DataBreakpointInfoArguments requests whether a variable can be
// data-watched.
type DataBreakpointInfoArguments struct {
	VariablesReference int    `json:"variablesReference,omitempty"`
	Name               string `json:"name"`
}

// DataBreakpointInfoBody is the adapter's reply.
type DataBreakpointInfoBody struct {
	DataID      string `json:"dataId"`
	Description string `json:"description"`
}

// DataBreakpoint mirrors one entry of a setDataBreakpoints request.
type DataBreakpoint struct {
	DataID    string `json:"dataId"`
	AccessType string `json:"accessType,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// SetDataBreakpointsArguments is the bulk request.
type SetDataBreakpointsArguments struct {
	Breakpoints []DataBreakpoint `json:"breakpoints"`
}

// SetDataBreakpointsBody is the adapter's reply.
type SetDataBreakpointsBody struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
}

// DisconnectArguments requests session teardown.
type DisconnectArguments struct {
	TerminateDebuggee bool `json:"terminateDebuggee,omitempty"`
}

// InitializeArguments is sent with the initialize request.
type InitializeArguments struct {
	AdapterID                   string `json:"adapterID"`
	LinesStartAt1               bool   `json:"linesStartAt1"`
	ColumnsStartAt1              bool  `json:"columnsStartAt1"`
	PathFormat                  string `json:"pathFormat,omitempty"`
	SupportsVariableType        bool   `json:"supportsVariableType,omitempty"`
}
