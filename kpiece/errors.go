package kpiece

import "github.com/pkg/errors"

// NewNoValidStartStatesError is returned by Solve when the grid is still empty
// after seeding.
func NewNoValidStartStatesError() error {
	return errors.New("there are no valid initial states")
}

// NewPlannerFailedError is returned when planning terminates without finding any
// motion to report.
func NewPlannerFailedError() error {
	return errors.New("kpiece planner failed to find a path")
}
