package dapclient

import "github.com/orizon-lang/dap-broker/internal/dapproto"

// eventQueue is an unbounded, order-preserving queue between the reader
// goroutine (the sole producer) and whichever consumer currently owns the
// event stream. It supports Prepend so events observed during
// wait-initialized can be handed back to the front of the queue without
// disturbing the relative order of events that arrived later (spec.md
// §4.3's event re-enqueuing rule).
type eventQueue struct {
	in      chan *dapproto.Event
	prepend chan []*dapproto.Event
	out     chan *dapproto.Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		in:      make(chan *dapproto.Event),
		prepend: make(chan []*dapproto.Event),
		out:     make(chan *dapproto.Event),
	}

	go q.pump()

	return q
}

func (q *eventQueue) pump() {
	var buf []*dapproto.Event

	for {
		if len(buf) == 0 {
			select {
			case ev, ok := <-q.in:
				if !ok {
					close(q.out)

					return
				}

				buf = append(buf, ev)
			case pre := <-q.prepend:
				buf = append(buf, pre...)
			}

			continue
		}

		select {
		case ev, ok := <-q.in:
			if !ok {
				for _, e := range buf {
					q.out <- e
				}

				close(q.out)

				return
			}

			buf = append(buf, ev)
		case pre := <-q.prepend:
			buf = append(append([]*dapproto.Event{}, pre...), buf...)
		case q.out <- buf[0]:
			buf = buf[1:]
		}
	}
}

// Push appends ev to the back of the queue.
func (q *eventQueue) Push(ev *dapproto.Event) {
	q.in <- ev
}

// Prepend reinserts events at the front of the queue, in the given order.
func (q *eventQueue) Prepend(events []*dapproto.Event) {
	if len(events) == 0 {
		return
	}

	q.prepend <- events
}

// Out is the consumer side of the queue; it closes once Close has been
// called and the queue has drained.
func (q *eventQueue) Out() <-chan *dapproto.Event {
	return q.out
}

// Close stops accepting new events; already-buffered events still drain
// through Out before it closes.
func (q *eventQueue) Close() {
	close(q.in)
}
