// Package dispatch carries addressed events from command producers to the single
// routing loop that applies them to live operators.
package dispatch

import (
	"context"
	"sync"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
	"github.com/louisbranch/arkomp/pkg/event"
)

// ErrClosed indicates a send on a queue that no longer accepts events.
var ErrClosed = apperrors.New(apperrors.CodeEventChannelClosed, "event channel is closed")

// Sender accepts events for routing.
type Sender interface {
	Send(ev event.Event) error
}

// Queue is an unbounded FIFO of events with any number of producers and one
// consumer. Send never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []event.Event
	closed bool
	notify chan struct{}
}

// NewQueue returns an open, empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Send appends ev to the queue.
func (q *Queue) Send(ev event.Event) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.wake()
	return nil
}

// Close stops accepting events. Events already queued can still be received.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Receive blocks until an event is available. It returns false once the queue is
// closed and drained, or when ctx is done.
func (q *Queue) Receive(ctx context.Context) (event.Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = event.Event{}
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return ev, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return event.Event{}, false
		}

		select {
		case <-ctx.Done():
			return event.Event{}, false
		case <-q.notify:
		}
	}
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
