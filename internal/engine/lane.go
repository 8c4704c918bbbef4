package engine

import "fmt"

// Lane is the priority class of a pending render pass. Lower numeric value
// means more urgent: a trigger on a more urgent lane preempts an in-flight
// pass on a less urgent one.
type Lane int

const (
	// LaneImmediate is for work that must commit before anything else
	// (e.g. text input echo).
	LaneImmediate Lane = iota
	// LaneUserVisible is the default lane for interaction-driven updates.
	LaneUserVisible
	// LaneBackground is for data refreshes the user is not waiting on.
	LaneBackground
	// LaneIdle work is only performed when no other lane is pending.
	LaneIdle

	numLanes int = iota
)

// String returns the lane name for logs and journal rows.
func (l Lane) String() string {
	switch l {
	case LaneImmediate:
		return "immediate"
	case LaneUserVisible:
		return "user-visible"
	case LaneBackground:
		return "background"
	case LaneIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// ParseLane is the inverse of String. An empty name parses as the default
// user-visible lane.
func ParseLane(name string) (Lane, error) {
	switch name {
	case "immediate":
		return LaneImmediate, nil
	case "user-visible", "":
		return LaneUserVisible, nil
	case "background":
		return LaneBackground, nil
	case "idle":
		return LaneIdle, nil
	default:
		return 0, fmt.Errorf("unknown lane %q", name)
	}
}

// Valid reports whether l is one of the defined lanes.
func (l Lane) Valid() bool {
	return l >= LaneImmediate && l < Lane(numLanes)
}

// laneSet is a bitmask of pending lanes for one root.
type laneSet uint8

func (s laneSet) has(l Lane) bool { return s&(1<<uint(l)) != 0 }

func (s *laneSet) add(l Lane) { *s |= 1 << uint(l) }

// takeUpTo removes and returns l and every more urgent lane: a pass at
// lane l consumes all dirt at lanes at least as urgent as l. The returned
// set is merged back if the pass is interrupted.
func (s *laneSet) takeUpTo(l Lane) laneSet {
	var taken laneSet
	for i := LaneImmediate; i <= l; i++ {
		if s.has(i) {
			taken.add(i)
		}
		*s &^= 1 << uint(i)
	}
	return taken
}

// merge adds every lane in other to s.
func (s *laneSet) merge(other laneSet) { *s |= other }

// highest returns the most urgent pending lane, or false when empty.
func (s laneSet) highest() (Lane, bool) {
	for i := LaneImmediate; i < Lane(numLanes); i++ {
		if s.has(i) {
			return i, true
		}
	}
	return 0, false
}
