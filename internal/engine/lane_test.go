package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLane_OrderIsUrgencyOrder(t *testing.T) {
	assert.Less(t, LaneImmediate, LaneUserVisible)
	assert.Less(t, LaneUserVisible, LaneBackground)
	assert.Less(t, LaneBackground, LaneIdle)
}

func TestParseLane_RoundTrip(t *testing.T) {
	for _, lane := range []Lane{LaneImmediate, LaneUserVisible, LaneBackground, LaneIdle} {
		parsed, err := ParseLane(lane.String())
		require.NoError(t, err)
		assert.Equal(t, lane, parsed)
	}
}

func TestParseLane_EmptyDefaultsToUserVisible(t *testing.T) {
	lane, err := ParseLane("")
	require.NoError(t, err)
	assert.Equal(t, LaneUserVisible, lane)
}

func TestParseLane_Unknown(t *testing.T) {
	_, err := ParseLane("turbo")
	require.Error(t, err)
}

func TestLaneSet_HighestPrefersUrgent(t *testing.T) {
	var s laneSet
	_, ok := s.highest()
	assert.False(t, ok)

	s.add(LaneIdle)
	s.add(LaneUserVisible)

	lane, ok := s.highest()
	require.True(t, ok)
	assert.Equal(t, LaneUserVisible, lane)
}

func TestLaneSet_TakeUpTo(t *testing.T) {
	var s laneSet
	s.add(LaneImmediate)
	s.add(LaneBackground)
	s.add(LaneIdle)

	// Taking the background lane also takes everything more urgent.
	taken := s.takeUpTo(LaneBackground)

	assert.False(t, s.has(LaneImmediate))
	assert.False(t, s.has(LaneBackground))
	assert.True(t, s.has(LaneIdle))
	assert.True(t, taken.has(LaneImmediate))
	assert.True(t, taken.has(LaneBackground))
	assert.False(t, taken.has(LaneIdle))

	// Merging restores the taken lanes after an interrupted pass.
	s.merge(taken)
	assert.True(t, s.has(LaneImmediate))
	assert.True(t, s.has(LaneBackground))
	assert.True(t, s.has(LaneIdle))
}
