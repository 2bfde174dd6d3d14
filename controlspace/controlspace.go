// Package controlspace defines the collaborator interfaces a kinodynamic planner
// consumes: the state and control spaces of the system being planned for, control
// samplers, projection evaluators, goals, and termination conditions.
package controlspace

// State is an opaque handle to a point in a state space. It is allocated, copied
// and freed exclusively through the StateSpace that produced it.
type State interface{}

// Control is an opaque handle to a control input, managed by its Space.
type Control interface{}

// StateSpace manages the allocation lifecycle of State handles.
type StateSpace interface {
	AllocState() State
	FreeState(s State)
	CopyState(dst, src State)
	CloneState(src State) State
}

// Space is the full description of a controlled dynamical system: a state space
// plus control allocation, propagation, and sampling. It is the analogue of a
// space-information object; one Space instance is shared by a planner and
// whoever constructed the problem.
type Space interface {
	StateSpace

	AllocControl() Control
	FreeControl(c Control)
	CopyControl(dst, src Control)
	CloneControl(src Control) Control
	// NullControl resets c to the control under which the system does not move.
	NullControl(c Control)

	// MinControlDuration and MaxControlDuration bound, in propagation steps, how
	// long a sampled control may be applied.
	MinControlDuration() int
	MaxControlDuration() int
	// PropagationStepSize is the duration in seconds of one propagation step.
	PropagationStepSize() float64

	// PropagateWhileValid applies ctrl from start for up to steps propagation
	// steps, stopping at the first invalid intermediate state. The states visited
	// are written into result (only the last one if storeLastOnly is set) and the
	// number of valid steps taken is returned. A return of zero means the very
	// first step left the valid region; that is an expected outcome, not an error.
	PropagateWhileValid(start State, ctrl Control, steps int, result []State, storeLastOnly bool) int

	AllocControlSampler() ControlSampler
}

// ControlSampler draws controls and application durations for tree expansion.
type ControlSampler interface {
	// SampleNext writes a control into ctrl, given the control and state the
	// system most recently had. Samplers are free to ignore either.
	SampleNext(ctrl, previous Control, prevState State)
	// SampleStepCount returns a number of propagation steps in [min, max].
	SampleStepCount(min, max int) int
}

// ProjectionEvaluator maps states onto an integer lattice of lower dimension.
// Planners use the projection to estimate coverage of the state space.
type ProjectionEvaluator interface {
	Dimension() int
	// ComputeCoordinates fills coord, which has Dimension() entries, with the
	// projection of s. Equal states must produce equal coordinates.
	ComputeCoordinates(s State, coord []int)
}

// Goal decides whether a state is a goal state and how far from the goal it is.
type Goal interface {
	// IsSatisfied reports whether s is in the goal region, along with the
	// distance from s to the goal. The distance is meaningful even when the
	// state satisfies the goal.
	IsSatisfied(s State) (bool, float64)
}
