package engine

import (
	"sync"

	"github.com/loomkit/loom/internal/dom"
)

// triggerType distinguishes between trigger kinds.
type triggerType int

const (
	// triggerMount carries a new root descriptor from the trigger caller.
	triggerMount triggerType = iota + 1
	// triggerWrite signals that queued state writes exist for a root.
	triggerWrite
)

// trigger is one external update request: a mount with a fresh descriptor,
// or a state write notification. Each trigger carries exactly one lane,
// determined by the context that created it.
type trigger struct {
	typ  triggerType
	root *Root
	lane Lane
	desc dom.Node // set for triggerMount
}

// triggerQueue is a thread-safe, lane-bucketed FIFO queue for triggers.
//
// Dequeue order is strict lane priority, FIFO within a lane. The queue is
// unbounded so cascading writes (e.g. from effect bodies) never block.
//
// Thread-safety is provided for external enqueuing (setters may fire from
// any goroutine) while the engine's work loop dequeues. The signal channel
// enables context-aware waiting in Run (buffered, size 1 - multiple signals
// coalesce).
type triggerQueue struct {
	mu     sync.Mutex
	lanes  [numLanes][]trigger
	closed bool
	signal chan struct{}
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a trigger to the back of its lane bucket.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *triggerQueue) Enqueue(t trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.lanes[t.lane] = append(q.lanes[t.lane], t)

	// Signal availability (non-blocking - buffer of 1 coalesces signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front trigger of the most urgent
// non-empty lane without blocking. Returns (trigger{}, false) when empty.
func (q *triggerQueue) TryDequeue() (trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for lane := range q.lanes {
		bucket := q.lanes[lane]
		if len(bucket) == 0 {
			continue
		}

		t := bucket[0]

		// Nil out the slot so the trigger's root/descriptor references do
		// not outlive the dequeue through the backing array.
		bucket[0] = trigger{}

		if len(bucket) == 1 {
			q.lanes[lane] = bucket[:0]
		} else {
			q.lanes[lane] = bucket[1:]
		}

		return t, true
	}

	return trigger{}, false
}

// Wait returns a channel that signals when triggers may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the total number of pending triggers across all lanes.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for lane := range q.lanes {
		n += len(q.lanes[lane])
	}
	return n
}

// Closed reports whether the queue has been closed.
func (q *triggerQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more triggers will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
