// Package session implements the debug session state machine (spec.md §4.4,
// component C4): lifecycle transitions, breakpoint management, frame/thread
// navigation, output buffering, and the await primitive, all layered on top
// of internal/dapclient.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orizon-lang/dap-broker/internal/adapterconfig"
	"github.com/orizon-lang/dap-broker/internal/adaptertransport"
	"github.com/orizon-lang/dap-broker/internal/dapclient"
	"github.com/orizon-lang/dap-broker/internal/dapproto"
	"github.com/orizon-lang/dap-broker/internal/location"
)

// Timeouts bundles the per-call deadlines the session applies to every DAP
// request it issues.
type Timeouts struct {
	Initialize time.Duration
	General    time.Duration
}

// DefaultTimeouts returns the built-in deadlines: 5s for initialize, 3s for
// every other request.
func DefaultTimeouts() Timeouts {
	return Timeouts{Initialize: 5 * time.Second, General: 3 * time.Second}
}

// Session owns one adapter connection end to end: the wire client, the
// state machine, breakpoints, navigation, and buffered output. A Session is
// single-owner — the broker serializes all access from its accept loop and
// its periodic drain tick, so no internal locking is needed beyond the
// mutex guarding the fields also read by a concurrent GetOutput/status call.
type Session struct {
	mu sync.Mutex

	client *dapclient.Client
	events <-chan *dapproto.Event

	timeouts Timeouts

	state    State
	caps     dapproto.Capabilities
	launched bool // true for Start (launch), false for Attach

	program   string
	programArgs []string
	adapterName string

	stoppedReason     string
	stoppedThreadID   int
	hitBreakpointIDs  []int

	threads       []dapproto.Thread
	selectedTID   int
	frames        []dapproto.StackFrame
	frameIndex    int

	exitCode int

	breakpoints *breakpointStore
	output      *OutputBuffer
}

// Config bundles the inputs New needs beyond the adapter profile table.
type Config struct {
	Timeouts       Timeouts
	OutputMaxEvents int
	OutputMaxBytes  int
}

// DefaultConfig returns the default timeouts and an output buffer capped at
// 2000 entries and 1 MiB.
func DefaultConfig() Config {
	return Config{Timeouts: DefaultTimeouts(), OutputMaxEvents: 2000, OutputMaxBytes: 1 << 20}
}

func newSession(cfg Config) *Session {
	return &Session{
		timeouts:    cfg.Timeouts,
		state:       Idle,
		breakpoints: newBreakpointStore(),
		output:      NewOutputBuffer(cfg.OutputMaxEvents, cfg.OutputMaxBytes),
	}
}

// StartParams are the spawn-time arguments for a Start (launch) session.
type StartParams struct {
	Program     string
	Args        []string
	Adapter     string
	StopOnEntry bool
}

// Start spawns the configured adapter, runs the initialize/launch/
// configurationDone handshake from the state table's Initializing→Running
// (or →Stopped) path, and returns the live Session.
func Start(table *adapterconfig.Table, params StartParams, cfg Config) (*Session, error) {
	profile, err := table.Resolve(params.Adapter)
	if err != nil {
		return nil, fmt.Errorf("session: resolve adapter %q: %w", params.Adapter, err)
	}

	stream, err := spawn(profile)
	if err != nil {
		return nil, fmt.Errorf("session: spawn adapter: %w", err)
	}

	s := newSession(cfg)
	s.launched = true
	s.program = params.Program
	s.programArgs = params.Args
	s.adapterName = params.Adapter

	if err := s.handshake(stream, func(c *dapclient.Client) error {
		return c.Launch(dapproto.LaunchArguments{
			Program:     params.Program,
			Args:        params.Args,
			StopOnEntry: params.StopOnEntry,
		}, s.timeouts.General)
	}, params.StopOnEntry); err != nil {
		return nil, err
	}

	return s, nil
}

// FromStream runs the same Initializing→Configuring→{Stopped,Running}
// handshake as Start/Attach against an already-connected stream, for
// callers (tests, or a future "attach to an already-listening adapter
// socket" command) that have their own way of obtaining a Stream instead
// of spawning one through an adapterconfig.Profile.
func FromStream(stream *adaptertransport.Stream, adapterName string, launched bool, program string, programArgs []string, launchOrAttach func(*dapclient.Client) error, stopOnEntry bool, cfg Config) (*Session, error) {
	s := newSession(cfg)
	s.adapterName = adapterName
	s.launched = launched
	s.program = program
	s.programArgs = programArgs

	if err := s.handshake(stream, launchOrAttach, stopOnEntry); err != nil {
		return nil, err
	}

	return s, nil
}

// AttachParams are the spawn-time arguments for an Attach session.
type AttachParams struct {
	PID     int
	Adapter string
}

// Attach mirrors Start for the attach-to-running-process path.
func Attach(table *adapterconfig.Table, params AttachParams, cfg Config) (*Session, error) {
	profile, err := table.Resolve(params.Adapter)
	if err != nil {
		return nil, fmt.Errorf("session: resolve adapter %q: %w", params.Adapter, err)
	}

	stream, err := spawn(profile)
	if err != nil {
		return nil, fmt.Errorf("session: spawn adapter: %w", err)
	}

	s := newSession(cfg)
	s.launched = false
	s.adapterName = params.Adapter

	if err := s.handshake(stream, func(c *dapclient.Client) error {
		return c.Attach(dapproto.AttachArguments{Pid: params.PID}, s.timeouts.General)
	}, false); err != nil {
		return nil, err
	}

	return s, nil
}

func spawn(profile adapterconfig.Profile) (*adaptertransport.Stream, error) {
	if err := adapterconfig.CheckVersion(profile); err != nil {
		return nil, err
	}

	const spawnTimeout = 10 * time.Second

	switch profile.Transport {
	case adapterconfig.TransportTCP:
		switch profile.SpawnStyle {
		case adapterconfig.SpawnTCPPortArg:
			return adaptertransport.TCPPortArgSpawn(context.Background(), profile.Path, profile.Args, spawnTimeout)
		default:
			return adaptertransport.TCPListenSpawn(context.Background(), profile.Path, profile.Args, spawnTimeout)
		}
	case adapterconfig.TransportQUIC:
		return adaptertransport.QUICDialSpawn(context.Background(), profile.Path, profile.Args, profile.Addr, spawnTimeout)
	default:
		return adaptertransport.StdioSpawn(profile.Path, profile.Args)
	}
}

// handshake runs Initializing→Configuring→{Stopped,Running}: send
// initialize, send launch or attach via launchOrAttach, wait for the
// adapter's "initialized" event, install the session's stored breakpoints
// (none exist yet on a fresh session), and send configurationDone.
func (s *Session) handshake(stream *adaptertransport.Stream, launchOrAttach func(*dapclient.Client) error, stopOnEntry bool) error {
	s.state = Initializing

	client := dapclient.New(stream, nil)

	caps, err := client.Initialize(s.adapterName, s.timeouts.Initialize)
	if err != nil {
		_ = client.Terminate(false, s.timeouts.General)

		return fmt.Errorf("session: initialize: %w", err)
	}

	s.client = client
	s.caps = caps

	eventsCh, err := client.TakeEventStream()
	if err != nil {
		return fmt.Errorf("session: take event stream: %w", err)
	}

	s.events = eventsCh
	s.state = Configuring

	if err := launchOrAttach(client); err != nil {
		return fmt.Errorf("session: launch/attach: %w", err)
	}

	if err := client.WaitInitialized(s.timeouts.Initialize); err != nil {
		return fmt.Errorf("session: wait for initialized: %w", err)
	}

	if err := s.resendAllBreakpoints(); err != nil {
		return fmt.Errorf("session: install breakpoints: %w", err)
	}

	if err := client.ConfigurationDone(s.timeouts.General); err != nil {
		return fmt.Errorf("session: configurationDone: %w", err)
	}

	if stopOnEntry {
		s.state = Stopped
		s.stoppedReason = "entry"
	} else {
		s.state = Running
	}

	return nil
}

// Stop tears the session down: disconnect (terminating the debuggee if this
// was a launched session), and move to Terminating. Callers discard the
// Session afterward; per the state table there is no transition back out of
// Terminating.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle || s.state == Terminating {
		return &NotActiveError{}
	}

	s.state = Terminating

	return s.client.Terminate(s.launched, s.timeouts.General)
}

// Detach is Stop without killing a launched debuggee's process tree beyond
// what the adapter itself does on a non-terminating disconnect.
func (s *Session) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle || s.state == Terminating {
		return &NotActiveError{}
	}

	s.state = Terminating

	return s.client.Terminate(false, s.timeouts.General)
}

// Restart sends the DAP restart request if the adapter advertises support,
// per spec.md's Restart section; otherwise it fails with a hint to stop and
// start a new session.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running && s.state != Stopped {
		return &InvalidStateError{Action: "restart", State: s.state}
	}

	if !s.caps.SupportsRestartRequest {
		return &RestartUnsupportedError{}
	}

	if err := s.client.Restart(s.timeouts.General); err != nil {
		return err
	}

	s.clearStoppedFields()
	s.state = Running

	return nil
}

// State returns the current top-level state under lock.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// clearStoppedFields implements invariant I3/I4: stopped-thread, reason,
// hit-ids, and the frame cache are all cleared together whenever the
// session leaves Stopped.
func (s *Session) clearStoppedFields() {
	s.stoppedReason = ""
	s.stoppedThreadID = 0
	s.hitBreakpointIDs = nil
	s.frames = nil
	s.frameIndex = 0
}

// drainEvents implements the "drain-before-send" rule: apply every
// already-queued event to session state before the caller proceeds, so a
// stale Stopped from a prior resumption can never land after a new resume
// command has nominally moved the state to Running.
func (s *Session) drainEvents() {
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				s.state = Exited

				return
			}

			s.applyEvent(ev)
		default:
			return
		}
	}
}

// applyEvent updates session state from one adapter event. Callers hold
// s.mu.
func (s *Session) applyEvent(ev *dapproto.Event) {
	switch ev.Event {
	case "stopped":
		var body dapproto.StoppedBody
		_ = decodeBody(ev.Body, &body)

		s.state = Stopped
		s.stoppedReason = body.Reason
		s.stoppedThreadID = body.ThreadID
		s.hitBreakpointIDs = body.HitBreakpointIDs
		s.frames = nil
		s.frameIndex = 0
		s.selectedTID = body.ThreadID
	case "exited":
		var body dapproto.ExitedBody
		_ = decodeBody(ev.Body, &body)

		s.state = Exited
		s.exitCode = body.ExitCode
	case "terminated":
		s.state = Exited
	case "output":
		var body dapproto.OutputBody
		_ = decodeBody(ev.Body, &body)

		category := body.Category
		if category == "" {
			category = "console"
		}

		s.output.Append(category, body.Output, monotonicNow())
	case "thread":
		var body dapproto.ThreadEventBody
		_ = decodeBody(ev.Body, &body)

		if body.Reason == "exited" {
			for i, th := range s.threads {
				if th.ID == body.ThreadID {
					s.threads = append(s.threads[:i:i], s.threads[i+1:]...)

					break
				}
			}

			if s.selectedTID == body.ThreadID {
				s.selectedTID = 0
			}
		}
	case "breakpoint":
		var body dapproto.BreakpointEventBody
		_ = decodeBody(ev.Body, &body)

		if body.Breakpoint.Source != nil && body.Breakpoint.Source.Path != "" {
			s.breakpoints.updateFromEvent(body.Breakpoint.Source.Path, body.Breakpoint.Line, body.Breakpoint.Verified, body.Breakpoint.Message)
		}
	case "continued":
		// Treated as a hint only; the authoritative Running transition
		// happens at resume-command issue time, not on this event.
	}
}
