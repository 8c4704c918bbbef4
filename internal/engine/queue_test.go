package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerQueue_StrictLanePriority(t *testing.T) {
	q := newTriggerQueue()
	r := &Root{}

	q.Enqueue(trigger{typ: triggerWrite, root: r, lane: LaneIdle})
	q.Enqueue(trigger{typ: triggerWrite, root: r, lane: LaneImmediate})
	q.Enqueue(trigger{typ: triggerWrite, root: r, lane: LaneBackground})

	first, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, LaneImmediate, first.lane)

	second, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, LaneBackground, second.lane)

	third, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, LaneIdle, third.lane)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestTriggerQueue_FIFOWithinLane(t *testing.T) {
	q := newTriggerQueue()
	a, b := &Root{id: 1}, &Root{id: 2}

	q.Enqueue(trigger{typ: triggerWrite, root: a, lane: LaneUserVisible})
	q.Enqueue(trigger{typ: triggerWrite, root: b, lane: LaneUserVisible})

	first, _ := q.TryDequeue()
	second, _ := q.TryDequeue()
	assert.Same(t, a, first.root)
	assert.Same(t, b, second.root)
}

func TestTriggerQueue_SignalCoalesces(t *testing.T) {
	q := newTriggerQueue()
	r := &Root{}

	for i := 0; i < 5; i++ {
		q.Enqueue(trigger{typ: triggerWrite, root: r, lane: LaneUserVisible})
	}

	// The signal channel has capacity 1; repeated enqueues coalesce.
	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("expected a single coalesced signal")
	default:
	}

	assert.Equal(t, 5, q.Len())
}

func TestTriggerQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newTriggerQueue()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(trigger{typ: triggerWrite, root: &Root{}, lane: LaneIdle}))

	// Closed signal channel wakes every waiter.
	<-q.Wait()
	<-q.Wait()
}
