package kpiece

import (
	"context"

	"go.viam.com/utils"

	"go.viam.com/kpiece/controlspace"
)

type planReturn struct {
	solution *Solution
	err      error
}

// Plan runs Solve until ctx is cancelled or an exact solution is found. The
// solve loop observes ctx through its termination condition, so cancellation is
// cooperative: Plan waits for the loop to wind down and returns whatever it
// produced, which may be an approximate solution.
func (mp *KPIECEPlanner) Plan(ctx context.Context, starts []controlspace.State) (*Solution, error) {
	solutionChan := make(chan *planReturn, 1)
	utils.PanicCapturingGo(func() {
		solution, err := mp.Solve(controlspace.ContextTerminationCondition(ctx), starts)
		solutionChan <- &planReturn{solution: solution, err: err}
	})

	select {
	case <-ctx.Done():
		ret := <-solutionChan
		return ret.solution, ret.err
	case ret := <-solutionChan:
		return ret.solution, ret.err
	}
}
