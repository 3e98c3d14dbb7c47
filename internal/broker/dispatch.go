package broker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/orizon-lang/dap-broker/internal/adapterconfig"
	"github.com/orizon-lang/dap-broker/internal/dapclient"
	"github.com/orizon-lang/dap-broker/internal/ipc"
	"github.com/orizon-lang/dap-broker/internal/location"
	"github.com/orizon-lang/dap-broker/internal/session"
)

// serveConn reads and answers length-prefixed IPC requests from conn until
// it errors or closes, per the single-connection-at-a-time accept model.
func (b *Broker) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := ipc.ReadFrame(r)
		if err != nil {
			return
		}

		var req ipc.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			b.log.Printf("broker: bad request envelope: %v", err)

			return
		}

		b.touchActivity()

		resp := b.dispatch(req)

		encoded, err := json.Marshal(resp)
		if err != nil {
			b.log.Printf("broker: marshal response: %v", err)

			return
		}

		if err := ipc.WriteFrame(w, encoded); err != nil {
			return
		}
	}
}

func (b *Broker) dispatch(req ipc.Request) ipc.Response {
	var tag ipc.CommandTag
	if err := json.Unmarshal(req.Command, &tag); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed command envelope")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch tag.Type {
	case "start":
		return b.handleStart(req)
	case "attach":
		return b.handleAttach(req)
	case "detach":
		return b.withSession(req, func(s *session.Session) (any, error) { return nil, s.Detach() })
	case "stop":
		return b.withSessionTeardown(req)
	case "restart":
		return b.withSession(req, func(s *session.Session) (any, error) { return nil, s.Restart() })
	case "status":
		return b.handleStatus(req)
	case "breakpoint_add":
		return b.handleBreakpointAdd(req)
	case "breakpoint_remove":
		return b.handleBreakpointRemove(req)
	case "breakpoint_list":
		return b.withSession(req, func(s *session.Session) (any, error) { return s.ListBreakpoints(), nil })
	case "breakpoint_enable":
		return b.handleBreakpointToggle(req, true)
	case "breakpoint_disable":
		return b.handleBreakpointToggle(req, false)
	case "continue":
		return b.withSession(req, func(s *session.Session) (any, error) { return nil, s.Continue() })
	case "next":
		return b.withSession(req, func(s *session.Session) (any, error) { return nil, s.Next() })
	case "step_in":
		return b.withSession(req, func(s *session.Session) (any, error) { return nil, s.StepIn() })
	case "step_out":
		return b.withSession(req, func(s *session.Session) (any, error) { return nil, s.StepOut() })
	case "pause":
		return b.withSession(req, func(s *session.Session) (any, error) { return nil, s.Pause() })
	case "stack_trace":
		return b.handleStackTrace(req)
	case "locals":
		return b.handleLocals(req)
	case "evaluate":
		return b.handleEvaluate(req)
	case "scopes":
		return b.handleScopes(req)
	case "variables":
		return b.handleVariables(req)
	case "threads":
		return b.withSession(req, func(s *session.Session) (any, error) { return s.Threads() })
	case "thread_select":
		return b.handleThreadSelect(req)
	case "frame_select":
		return b.handleFrameSelect(req)
	case "frame_up":
		return b.withSession(req, func(s *session.Session) (any, error) { return s.FrameUp() })
	case "frame_down":
		return b.withSession(req, func(s *session.Session) (any, error) { return s.FrameDown() })
	case "context":
		return b.handleContext(req)
	case "get_output":
		return b.handleGetOutput(req)
	case "await":
		return b.handleAwait(req)
	case "shutdown":
		b.requestShutdown()

		return mustResult(req.ID, nil)
	default:
		return ipc.NewError(req.ID, ipc.InternalError, "unrecognized command: "+tag.Type)
	}
}

// withSession runs fn against the live session, or returns SessionNotActive.
func (b *Broker) withSession(req ipc.Request, fn func(*session.Session) (any, error)) ipc.Response {
	if b.sess == nil {
		return ipc.NewError(req.ID, ipc.SessionNotActive, "no debug session active; start one first")
	}

	result, err := fn(b.sess)
	if err != nil {
		return mapError(req.ID, err)
	}

	return mustResult(req.ID, result)
}

func (b *Broker) withSessionTeardown(req ipc.Request) ipc.Response {
	if b.sess == nil {
		return ipc.NewError(req.ID, ipc.SessionNotActive, "no debug session active; start one first")
	}

	err := b.sess.Stop()
	b.sess = nil

	if err != nil {
		return mapError(req.ID, err)
	}

	return mustResult(req.ID, nil)
}

func (b *Broker) handleStart(req ipc.Request) ipc.Response {
	if b.sess != nil {
		return ipc.NewError(req.ID, ipc.SessionAlreadyActive, "a debug session is already active")
	}

	var args startArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed start arguments")
	}

	s, err := session.Start(b.table, session.StartParams{
		Program:     args.Program,
		Args:        args.Args,
		Adapter:     args.Adapter,
		StopOnEntry: args.StopOnEntry,
	}, b.cfg.Session)
	if err != nil {
		return mapError(req.ID, err)
	}

	b.sess = s

	return mustResult(req.ID, statusOf(s))
}

func (b *Broker) handleAttach(req ipc.Request) ipc.Response {
	if b.sess != nil {
		return ipc.NewError(req.ID, ipc.SessionAlreadyActive, "a debug session is already active")
	}

	var args attachArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed attach arguments")
	}

	s, err := session.Attach(b.table, session.AttachParams{PID: args.PID, Adapter: args.Adapter}, b.cfg.Session)
	if err != nil {
		return mapError(req.ID, err)
	}

	b.sess = s

	return mustResult(req.ID, statusOf(s))
}

func (b *Broker) handleStatus(req ipc.Request) ipc.Response {
	if b.sess == nil {
		return mustResult(req.ID, session.Status{State: session.Idle})
	}

	return mustResult(req.ID, statusOf(b.sess))
}

func statusOf(s *session.Session) session.Status { return s.Status() }

func (b *Broker) handleBreakpointAdd(req ipc.Request) ipc.Response {
	var args breakpointAddArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed breakpoint_add arguments")
	}

	if b.sess == nil {
		return ipc.NewError(req.ID, ipc.SessionNotActive, "no debug session active; start one first")
	}

	loc := location.Parse(args.Location)

	info, err := b.sess.AddBreakpoint(loc, args.Condition, args.HitCount)
	if err != nil {
		return mapError(req.ID, err)
	}

	return mustResult(req.ID, info)
}

func (b *Broker) handleBreakpointRemove(req ipc.Request) ipc.Response {
	var args breakpointRemoveArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed breakpoint_remove arguments")
	}

	if b.sess == nil {
		return ipc.NewError(req.ID, ipc.SessionNotActive, "no debug session active; start one first")
	}

	var err error
	if args.All {
		err = b.sess.RemoveAllBreakpoints()
	} else {
		err = b.sess.RemoveBreakpoint(args.ID)
	}

	if err != nil {
		return mapError(req.ID, err)
	}

	return mustResult(req.ID, nil)
}

func (b *Broker) handleBreakpointToggle(req ipc.Request, enable bool) ipc.Response {
	var args breakpointIDArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed breakpoint id argument")
	}

	return b.withSession(req, func(s *session.Session) (any, error) {
		if enable {
			return nil, s.EnableBreakpoint(args.ID)
		}

		return nil, s.DisableBreakpoint(args.ID)
	})
}

func (b *Broker) handleStackTrace(req ipc.Request) ipc.Response {
	var args stackTraceArgs
	_ = json.Unmarshal(req.Command, &args)

	return b.withSession(req, func(s *session.Session) (any, error) { return s.StackTrace(args.Limit) })
}

func (b *Broker) handleLocals(req ipc.Request) ipc.Response {
	var args localsArgs
	_ = json.Unmarshal(req.Command, &args)

	return b.withSession(req, func(s *session.Session) (any, error) { return s.Locals(args.FrameID) })
}

func (b *Broker) handleEvaluate(req ipc.Request) ipc.Response {
	var args evaluateArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed evaluate arguments")
	}

	return b.withSession(req, func(s *session.Session) (any, error) {
		return s.Evaluate(args.Expression, args.FrameID, args.Context)
	})
}

func (b *Broker) handleScopes(req ipc.Request) ipc.Response {
	var args scopesArgs
	_ = json.Unmarshal(req.Command, &args)

	return b.withSession(req, func(s *session.Session) (any, error) { return s.Scopes(args.FrameID) })
}

func (b *Broker) handleVariables(req ipc.Request) ipc.Response {
	var args variablesArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed variables arguments")
	}

	return b.withSession(req, func(s *session.Session) (any, error) { return s.Variables(args.Reference) })
}

func (b *Broker) handleThreadSelect(req ipc.Request) ipc.Response {
	var args threadSelectArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed thread_select arguments")
	}

	return b.withSession(req, func(s *session.Session) (any, error) { return nil, s.SelectThread(args.ID) })
}

func (b *Broker) handleFrameSelect(req ipc.Request) ipc.Response {
	var args frameSelectArgs
	if err := json.Unmarshal(req.Command, &args); err != nil {
		return ipc.NewError(req.ID, ipc.InternalError, "malformed frame_select arguments")
	}

	return b.withSession(req, func(s *session.Session) (any, error) { return s.FrameSelect(args.Number) })
}

// contextResult bundles what the `context` IPC command returns: the current
// frame (which carries its source path and line), the current frame's
// locals, and the stop details. No source text is read, and the command's
// `lines` argument is not used.
type contextResult struct {
	Frame  any `json:"frame"`
	Locals any `json:"locals"`
	Stop   any `json:"stop"`
}

func (b *Broker) handleContext(req ipc.Request) ipc.Response {
	var args contextArgs
	_ = json.Unmarshal(req.Command, &args)

	return b.withSession(req, func(s *session.Session) (any, error) {
		frame, err := s.CurrentFrame()
		if err != nil {
			return nil, err
		}

		locals, err := s.Locals(0)
		if err != nil {
			return nil, err
		}

		stop, err := s.StoppedInfo()
		if err != nil {
			return nil, err
		}

		return contextResult{Frame: frame, Locals: locals, Stop: stop}, nil
	})
}

func (b *Broker) handleGetOutput(req ipc.Request) ipc.Response {
	var args getOutputArgs
	_ = json.Unmarshal(req.Command, &args)

	return b.withSession(req, func(s *session.Session) (any, error) {
		return s.GetOutput(args.Tail, args.Clear), nil
	})
}

func (b *Broker) handleAwait(req ipc.Request) ipc.Response {
	var args awaitArgs
	_ = json.Unmarshal(req.Command, &args)

	if b.sess == nil {
		return ipc.NewError(req.ID, ipc.SessionNotActive, "no debug session active; start one first")
	}

	timeout := time.Duration(args.TimeoutSecs * float64(time.Second))
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	result, err := b.sess.Await(timeout)
	if err != nil {
		return mapError(req.ID, err)
	}

	return mustResult(req.ID, result)
}

func mustResult(id uint64, v any) ipc.Response {
	resp, err := ipc.NewResult(id, v)
	if err != nil {
		return ipc.NewError(id, ipc.InternalError, "failed to encode result")
	}

	return resp
}

// mapError translates a session/dapclient/adapterconfig error into the IPC
// error-code taxonomy from spec.md §6.
func mapError(id uint64, err error) ipc.Response {
	var (
		invalidState    *session.InvalidStateError
		programExited   *session.ProgramExitedError
		threadNotFound  *session.ThreadNotFoundError
		frameNotFound   *session.FrameNotFoundError
		bpNotFound      *session.BreakpointNotFoundError
		capErr          *session.CapabilityError
		restartUnsup    *session.RestartUnsupportedError
		notActive       *session.NotActiveError
		alreadyActive   *session.AlreadyActiveError
		awaitTimeout    *session.AwaitTimeoutError
		adapterNotFound *adapterconfig.NotFoundError
		dapTimeout      *dapclient.TimeoutError
		dapRejected     *dapclient.AdapterRequestError
	)

	switch {
	case errors.As(err, &dapTimeout):
		return ipc.NewError(id, ipc.Timeout, err.Error())
	case errors.As(err, &dapRejected):
		return ipc.NewError(id, ipc.DAPRequestFailed, err.Error())
	case errors.Is(err, dapclient.ErrAdapterCrashed):
		return ipc.NewError(id, ipc.DAPRequestFailed, err.Error())
	case errors.As(err, &invalidState):
		return ipc.NewError(id, ipc.InvalidState, err.Error())
	case errors.As(err, &programExited):
		return ipc.NewError(id, ipc.ProgramExited, err.Error())
	case errors.As(err, &threadNotFound):
		return ipc.NewError(id, ipc.ThreadNotFound, err.Error())
	case errors.As(err, &frameNotFound):
		return ipc.NewError(id, ipc.FrameNotFound, err.Error())
	case errors.As(err, &bpNotFound):
		return ipc.NewError(id, ipc.BreakpointNotFound, err.Error())
	case errors.As(err, &capErr):
		return ipc.NewError(id, ipc.InternalError, err.Error())
	case errors.As(err, &restartUnsup):
		return ipc.NewError(id, ipc.InvalidState, err.Error())
	case errors.As(err, &notActive):
		return ipc.NewError(id, ipc.SessionNotActive, err.Error())
	case errors.As(err, &alreadyActive):
		return ipc.NewError(id, ipc.SessionAlreadyActive, err.Error())
	case errors.As(err, &awaitTimeout):
		return ipc.NewError(id, ipc.Timeout, err.Error())
	case errors.As(err, &adapterNotFound):
		return ipc.NewError(id, ipc.AdapterNotFound, err.Error())
	case errors.Is(err, session.ErrAwaitAdapterCrashed):
		return ipc.NewError(id, ipc.DAPRequestFailed, err.Error())
	default:
		return ipc.NewError(id, ipc.DAPRequestFailed, err.Error())
	}
}
