// Package dapclient is the DAP request/response multiplexer (spec.md §4.3,
// component C3): sequence numbering, response correlation, event fan-out,
// timeouts, and orderly shutdown over a single adapter byte stream.
package dapclient

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orizon-lang/dap-broker/internal/adaptertransport"
	"github.com/orizon-lang/dap-broker/internal/dapproto"
)

// Client owns the adapter stream: a single background reader task
// demultiplexes responses to their originating caller and fans events out
// to whoever currently holds the event stream.
type Client struct {
	stream *adaptertransport.Stream
	log    *log.Logger

	seq int64 // atomic, monotonic from 1

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int]chan *dapproto.Response

	events   *eventQueue
	taken    bool
	takenMu  sync.Mutex

	shutdown     chan struct{}
	shutdownOnce sync.Once
	readerDone   chan struct{}
}

// New wraps stream in a Client and starts its background reader. logger
// defaults to log.Default() when nil.
func New(stream *adaptertransport.Stream, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		stream:     stream,
		log:        logger,
		pending:    make(map[int]chan *dapproto.Response),
		events:     newEventQueue(),
		shutdown:   make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	go c.readLoop()

	return c
}

func (c *Client) nextSeq() int {
	return int(atomic.AddInt64(&c.seq, 1))
}

// request sends command/args and blocks for a response or timeout. The
// pending slot is registered before the request is written, per the
// mandatory ordering in spec.md §4.3: a response racing ahead of
// registration would otherwise be silently dropped.
func (c *Client) request(command string, args any, timeout time.Duration) (*dapproto.Response, error) {
	select {
	case <-c.shutdown:
		return nil, ErrAdapterCrashed
	default:
	}

	seq := c.nextSeq()

	req, err := dapproto.NewRequest(seq, command, args)
	if err != nil {
		return nil, fmt.Errorf("dapclient: encode %s arguments: %w", command, err)
	}

	replyCh := make(chan *dapproto.Response, 1)

	c.pendingMu.Lock()
	c.pending[seq] = replyCh
	c.pendingMu.Unlock()

	raw, err := json.Marshal(req)
	if err != nil {
		c.forgetPending(seq)

		return nil, fmt.Errorf("dapclient: marshal %s request: %w", command, err)
	}

	c.writeMu.Lock()
	writeErr := dapproto.WriteMessage(c.stream.Writer, raw)
	c.writeMu.Unlock()

	if writeErr != nil {
		c.forgetPending(seq)

		return nil, fmt.Errorf("dapclient: write %s request: %w", command, writeErr)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-replyCh:
		if !resp.Success {
			return nil, &AdapterRequestError{Command: command, Message: resp.Message}
		}

		return resp, nil
	case <-timer.C:
		c.forgetPending(seq)

		return nil, &TimeoutError{Command: command}
	case <-c.shutdown:
		return nil, ErrAdapterCrashed
	}
}

func (c *Client) forgetPending(seq int) {
	c.pendingMu.Lock()
	delete(c.pending, seq)
	c.pendingMu.Unlock()
}

// call is a generic helper: marshal args (may be nil), send command, and if
// out is non-nil, decode the response body into it.
func (c *Client) call(command string, args any, timeout time.Duration, out any) error {
	resp, err := c.request(command, args, timeout)
	if err != nil {
		return err
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("dapclient: decode %s response: %w", command, err)
	}

	return nil
}

func (c *Client) readLoop() {
	defer close(c.readerDone)

	for {
		raw, err := dapproto.ReadMessage(c.stream.Reader)
		if err != nil {
			c.onReaderExit(err)

			return
		}

		resp, ev, err := dapproto.Decode(raw)
		if err != nil {
			c.log.Printf("dapclient: %v", &ProtocolError{Err: err})
			c.onReaderExit(err)

			return
		}

		switch {
		case resp != nil:
			c.pendingMu.Lock()
			ch, ok := c.pending[resp.RequestSeq]

			if ok {
				delete(c.pending, resp.RequestSeq)
			}
			c.pendingMu.Unlock()

			if !ok {
				c.log.Printf("dapclient: response for unknown request_seq=%d (command=%s), dropping", resp.RequestSeq, resp.Command)

				continue
			}

			ch <- resp
		case ev != nil:
			c.events.Push(ev)
		}
	}
}

// onReaderExit runs exactly once (readLoop only ever calls it on its own
// return path): it unblocks every pending request with AdapterCrashed and
// pushes a synthetic "terminated" event so a session blocked in Await also
// unblocks.
func (c *Client) onReaderExit(cause error) {
	c.shutdownOnce.Do(func() {
		close(c.shutdown)
	})

	c.pendingMu.Lock()
	c.pending = make(map[int]chan *dapproto.Response)
	c.pendingMu.Unlock()

	c.events.Push(&dapproto.Event{Type: "event", Event: "terminated"})

	if cause != nil {
		c.log.Printf("dapclient: adapter reader exiting: %v", cause)
	}
}

// TakeEventStream hands off the event channel to its single consumer
// (the session). Calling it twice is a programming error and returns a nil
// channel plus an error.
func (c *Client) TakeEventStream() (<-chan *dapproto.Event, error) {
	c.takenMu.Lock()
	defer c.takenMu.Unlock()

	if c.taken {
		return nil, fmt.Errorf("dapclient: event stream already taken")
	}

	c.taken = true

	return c.events.Out(), nil
}

// Terminate performs an orderly shutdown: best-effort disconnect, then
// forces the stream closed so the blocking reader observes EOF, waits up to
// timeout for it to exit, and finally kills the adapter subprocess.
func (c *Client) Terminate(terminateDebuggee bool, timeout time.Duration) error {
	_, _ = c.request("disconnect", dapproto.DisconnectArguments{TerminateDebuggee: terminateDebuggee}, timeout)

	_ = c.stream.Close()

	select {
	case <-c.readerDone:
	case <-time.After(timeout):
	}

	return c.stream.Kill()
}
