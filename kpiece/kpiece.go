// Package kpiece implements the KPIECE (Kinematic Planning by Interior-Exterior
// Cell Exploration) algorithm for systems with controls. A tree of
// state-control motions is grown inside a discretization grid over a
// low-dimensional projection of the state space; cells carry scores that bias
// selection toward under-explored and recently productive regions.
package kpiece

import (
	"math"
	"math/rand"

	"github.com/edaniels/golog"

	"go.viam.com/kpiece/controlspace"
)

// motion is one node of the search tree: the state reached by applying control
// for steps propagation steps from the parent's state. Roots have a null
// control and no parent.
type motion struct {
	state   controlspace.State
	control controlspace.Control
	steps   int
	parent  *motion
}

func newMotion(space controlspace.Space) *motion {
	return &motion{
		state:   space.AllocState(),
		control: space.AllocControl(),
	}
}

// tree is the search tree: the projection grid plus aggregate counters.
type tree struct {
	grid      *grid
	size      int
	iteration int
}

// KPIECEPlanner grows a single motion tree, which persists across Solve calls
// until Clear. It is not safe for concurrent use; one Solve owns the tree
// exclusively.
type KPIECEPlanner struct {
	space               controlspace.Space
	goal                controlspace.Goal
	projectionEvaluator controlspace.ProjectionEvaluator
	opt                 *PlannerOptions
	logger              golog.Logger
	randseed            *rand.Rand

	tree           tree
	controlSampler controlspace.ControlSampler
}

// NewKPIECEPlanner creates a planner over the given space with a user specified
// random seed. Passing nil options selects the stock defaults. Out-of-range
// options are a fatal configuration error.
func NewKPIECEPlanner(
	space controlspace.Space,
	goal controlspace.Goal,
	projectionEvaluator controlspace.ProjectionEvaluator,
	seed *rand.Rand,
	logger golog.Logger,
	opt *PlannerOptions,
) (*KPIECEPlanner, error) {
	if opt == nil {
		opt = NewBasicPlannerOptions()
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	mp := &KPIECEPlanner{
		space:               space,
		goal:                goal,
		projectionEvaluator: projectionEvaluator,
		opt:                 opt,
		logger:              logger,
		randseed:            seed,
		tree: tree{
			grid:      newGrid(projectionEvaluator.Dimension()),
			iteration: 1,
		},
	}
	mp.tree.grid.onCellUpdate(mp.computeImportance)
	return mp, nil
}

// computeImportance derives a cell's priority key: higher score and coverage
// raise it, repeated selection and age lower it.
func (mp *KPIECEPlanner) computeImportance(c *cell) {
	cd := c.data
	age := mp.tree.iteration - cd.iteration
	cd.importance = cd.score * float64(cd.coverage) / (float64(cd.selections) * float64(1+age))
}

func (mp *KPIECEPlanner) uniform01() float64 {
	return mp.randseed.Float64()
}

// halfNormalInt draws an integer in [lo, hi] biased toward lo, using the
// magnitude of a normal draw with a third of the range as standard deviation.
func (mp *KPIECEPlanner) halfNormalInt(lo, hi int) int {
	v := lo + int(math.Floor(math.Abs(mp.randseed.NormFloat64())*float64(hi-lo+1)/3.0))
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// Solve grows the tree from the given start states until the termination
// condition fires or an exact solution is found. When the condition fires
// first, the best-known motion is returned as an approximate solution.
func (mp *KPIECEPlanner) Solve(
	ptc controlspace.TerminationCondition,
	starts []controlspace.State,
) (*Solution, error) {
	var solution *motion
	var approxsol *motion
	approxdif := math.Inf(1)

	for _, st := range starts {
		m := newMotion(mp.space)
		mp.space.CopyState(m.state, st)
		mp.space.NullControl(m.control)
		mp.addMotion(m, 1.0)

		solved, dist := mp.goal.IsSatisfied(m.state)
		if solved {
			solution = m
			approxdif = dist
			break
		}
		if dist < approxdif {
			approxdif = dist
			approxsol = m
		}
	}

	if mp.tree.grid.size() == 0 {
		mp.logger.Error("there are no valid initial states")
		return nil, NewNoValidStartStatesError()
	}

	if mp.controlSampler == nil {
		mp.controlSampler = mp.space.AllocControlSampler()
	}

	mp.logger.Infof("starting with %d states", mp.tree.size)

	rctrl := mp.space.AllocControl()
	defer mp.space.FreeControl(rctrl)

	states := make([]controlspace.State, mp.space.MaxControlDuration()+1)
	for i := range states {
		states[i] = mp.space.AllocState()
	}
	defer func() {
		for _, s := range states {
			mp.space.FreeState(s)
		}
	}()

	projDim := mp.projectionEvaluator.Dimension()
	coords := make([][]int, len(states))
	for i := range coords {
		coords[i] = make([]int, projDim)
	}
	cells := make([]*cell, len(states))

	closeSamples := newCloseSamples(mp.opt.NCloseSamples)

	for solution == nil && !ptc() {
		mp.tree.iteration++

		// Decide on a motion to expand from.
		var existing *motion
		var ecell *cell
		var ok bool
		if closeSamples.canSample() && mp.uniform01() < mp.opt.GoalBias {
			existing, ecell, ok = closeSamples.selectMotion()
			if !ok {
				existing, ecell, ok = mp.selectMotion()
			}
		} else {
			existing, ecell, ok = mp.selectMotion()
		}
		if !ok {
			continue
		}

		// Sample a control and how long to apply it, then propagate while the
		// intermediate states stay valid.
		mp.controlSampler.SampleNext(rctrl, existing.control, existing.state)
		cd := mp.controlSampler.SampleStepCount(mp.space.MinControlDuration(), mp.space.MaxControlDuration())
		cd = mp.space.PropagateWhileValid(existing.state, rctrl, cd, states, false)

		if cd >= mp.space.MinControlDuration() {
			avgCovTwoThirds := (2 * mp.tree.size) / (3 * mp.tree.grid.size())
			interestingMotion := false

			// Split the motion into smaller ones so we do not cross cell boundaries.
			for i := 0; i < cd; i++ {
				mp.projectionEvaluator.ComputeCoordinates(states[i], coords[i])
				cells[i] = mp.tree.grid.getCell(coords[i])
				if cells[i] == nil {
					interestingMotion = true
				} else if !interestingMotion && len(cells[i].data.motions) <= avgCovTwoThirds {
					interestingMotion = true
				}
			}

			if interestingMotion || mp.uniform01() < fallbackSplitProbability {
				index := 0
				for index < cd {
					nextIndex := findNextMotion(coords, index, cd)
					m := newMotion(mp.space)
					mp.space.CopyState(m.state, states[nextIndex])
					mp.space.CopyControl(m.control, rctrl)
					m.steps = nextIndex - index + 1
					m.parent = existing

					solved, dist := mp.goal.IsSatisfied(m.state)
					toCell := mp.addMotion(m, dist)

					if solved {
						approxdif = dist
						solution = m
						break
					}
					if dist < approxdif {
						approxdif = dist
						approxsol = m
					}

					closeSamples.consider(toCell, m, dist)

					// The newly created motion is the parent of whatever the rest of
					// the trajectory produces.
					existing = m
					index = nextIndex + 1
				}
			}

			ecell.data.score *= mp.opt.GoodScoreFactor
		} else {
			ecell.data.score *= mp.opt.BadScoreFactor
		}

		mp.tree.grid.update(ecell)
	}

	approximate := false
	if solution == nil {
		solution = approxsol
		approximate = true
	}

	mp.logger.Infof("created %d states in %d cells (%d internal + %d external)",
		mp.tree.size, mp.tree.grid.size(), mp.tree.grid.countInternal(), mp.tree.grid.countExternal())

	if solution == nil {
		return nil, NewPlannerFailedError()
	}
	if approximate {
		mp.logger.Warn("found approximate solution")
	}
	return mp.buildSolution(solution, approxdif, approximate), nil
}

// selectMotion picks a cell from the top of one of the two partitions and a
// motion within it, biased toward motions inserted earlier.
func (mp *KPIECEPlanner) selectMotion() (*motion, *cell, bool) {
	var scell *cell
	if mp.uniform01() < math.Max(mp.opt.BorderFraction, mp.tree.grid.fracExternal()) {
		scell = mp.tree.grid.topExternal()
	} else {
		scell = mp.tree.grid.topInternal()
	}

	// We are running on finite precision, so the multiplicative update scheme can
	// drive scores all the way to zero. This is where we fix the problem.
	if scell != nil && scell.data.score < floatEpsilon {
		mp.logger.Debug("numerical precision limit reached, resetting cell scores")
		for _, cd := range mp.tree.grid.getContent() {
			cd.score += 1.0 + math.Log(float64(cd.iteration))
		}
		mp.tree.grid.updateAll()
	}

	if scell != nil && len(scell.data.motions) > 0 {
		scell.data.selections++
		k := mp.halfNormalInt(0, len(scell.data.motions)-1)
		return scell.data.motions[k], scell, true
	}
	return nil, nil, false
}

// addMotion inserts a motion into the cell its state projects to, creating the
// cell if needed, and returns that cell. dist is the motion's goal distance,
// used to seed a new cell's score.
func (mp *KPIECEPlanner) addMotion(m *motion, dist float64) *cell {
	coord := make([]int, mp.projectionEvaluator.Dimension())
	mp.projectionEvaluator.ComputeCoordinates(m.state, coord)
	c := mp.tree.grid.getCell(coord)
	if c != nil {
		c.data.motions = append(c.data.motions, m)
		c.data.coverage += m.steps
		mp.tree.grid.update(c)
	} else {
		c = mp.tree.grid.createCell(coord)
		c.data = &cellData{
			motions:    []*motion{m},
			coverage:   m.steps,
			iteration:  mp.tree.iteration,
			selections: 1,
			score:      (1.0 + math.Log(float64(mp.tree.iteration))) / (1e-3 + dist),
		}
		mp.tree.grid.add(c)
	}
	mp.tree.size++
	return c
}

// findNextMotion returns the last index in [index, count) whose coordinate still
// matches coords[index].
func findNextMotion(coords [][]int, index, count int) int {
	for i := index + 1; i < count; i++ {
		if !coordsEqual(coords[i], coords[index]) {
			return i - 1
		}
	}
	return count - 1
}

func coordsEqual(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// buildSolution walks parent links back to a root and reverses the chain into a
// states/controls/durations path. The root contributes only a state.
func (mp *KPIECEPlanner) buildSolution(solution *motion, dist float64, approximate bool) *Solution {
	var mpath []*motion
	for m := solution; m != nil; m = m.parent {
		mpath = append(mpath, m)
	}

	sol := &Solution{
		Approximate:  approximate,
		GoalDistance: dist,
	}
	delta := mp.space.PropagationStepSize()
	for i := len(mpath) - 1; i >= 0; i-- {
		sol.States = append(sol.States, mp.space.CloneState(mpath[i].state))
		if mpath[i].parent != nil {
			sol.Controls = append(sol.Controls, mp.space.CloneControl(mpath[i].control))
			sol.Durations = append(sol.Durations, float64(mpath[i].steps)*delta)
		}
	}
	return sol
}

// Clear releases every motion and cell and resets the planner so the next Solve
// starts from an empty tree with a fresh control sampler.
func (mp *KPIECEPlanner) Clear() {
	mp.controlSampler = nil
	mp.freeMemory()
	mp.tree.grid.clear()
	mp.tree.size = 0
	mp.tree.iteration = 1
}

func (mp *KPIECEPlanner) freeMemory() {
	for _, cd := range mp.tree.grid.getContent() {
		for _, m := range cd.motions {
			mp.space.FreeState(m.state)
			mp.space.FreeControl(m.control)
		}
	}
}

// Solution is a sequence of controls and durations driving the system through
// States from one of the start states toward the goal. States and Controls are
// clones owned by the caller; release them with Free.
type Solution struct {
	States    []controlspace.State
	Controls  []controlspace.Control
	Durations []float64

	// Approximate is set when the termination condition fired before an exact
	// solution was found; the path then ends at the best-known motion.
	Approximate bool
	// GoalDistance is the goal distance of the final state.
	GoalDistance float64
}

// Free releases the cloned states and controls held by the solution.
func (sol *Solution) Free(space controlspace.Space) {
	for _, s := range sol.States {
		space.FreeState(s)
	}
	for _, c := range sol.Controls {
		space.FreeControl(c)
	}
	sol.States = nil
	sol.Controls = nil
	sol.Durations = nil
}
