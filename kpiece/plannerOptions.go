package kpiece

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// default values for planner options.
const (
	// Probability of expanding from one of the close-to-goal samples instead of a
	// grid cell.
	defaultGoalBias = 0.05

	// Minimum fraction of selections that prefer border cells.
	defaultBorderFraction = 0.8

	// Score multipliers applied to the selected cell after a productive or an
	// unproductive expansion.
	defaultGoodScoreFactor = 0.9
	defaultBadScoreFactor  = 0.45

	// Capacity of the close-to-goal sample set.
	defaultNCloseSamples = 30

	// Probability of splitting a propagated trajectory even when it looks
	// uninteresting.
	fallbackSplitProbability = 0.05
)

// floatEpsilon is the gap between 1 and the next larger double (2^-52). Cell scores below it
// trigger the additive score rescue.
var floatEpsilon = math.Nextafter(1, 2) - 1

// PlannerOptions are the tunable parameters of a KPIECE planner.
type PlannerOptions struct {
	// Probability of selecting the expansion motion from the close-to-goal
	// samples. Must be in [0, 1].
	GoalBias float64 `json:"goal_bias"`

	// Fraction of selections that prefer border cells over interior ones, unless
	// the grid's own border fraction is already higher. Must be in (0, 1];
	// values below floatEpsilon count as zero and are rejected.
	BorderFraction float64 `json:"border_fraction"`

	// Multiplier applied to a cell's score when expanding from it produced new
	// motions. Must be in (0, 1]; values below floatEpsilon count as zero and
	// are rejected.
	GoodScoreFactor float64 `json:"good_score_factor"`

	// Multiplier applied to a cell's score when expanding from it failed to
	// propagate far enough. Must be in (0, 1]; values below floatEpsilon count
	// as zero and are rejected.
	BadScoreFactor float64 `json:"bad_score_factor"`

	// Capacity of the close-to-goal sample set.
	NCloseSamples int `json:"n_close_samples"`
}

// NewBasicPlannerOptions returns options with the stock KPIECE defaults.
func NewBasicPlannerOptions() *PlannerOptions {
	return &PlannerOptions{
		GoalBias:        defaultGoalBias,
		BorderFraction:  defaultBorderFraction,
		GoodScoreFactor: defaultGoodScoreFactor,
		BadScoreFactor:  defaultBadScoreFactor,
		NCloseSamples:   defaultNCloseSamples,
	}
}

// SetGoalBias sets the probability of goal-biased selection.
func (p *PlannerOptions) SetGoalBias(bias float64) {
	p.GoalBias = bias
}

// SetBorderFraction sets the minimum fraction of border-preferring selections.
func (p *PlannerOptions) SetBorderFraction(fraction float64) {
	p.BorderFraction = fraction
}

// SetGoodScoreFactor sets the score multiplier for productive expansions.
func (p *PlannerOptions) SetGoodScoreFactor(factor float64) {
	p.GoodScoreFactor = factor
}

// SetBadScoreFactor sets the score multiplier for unproductive expansions.
func (p *PlannerOptions) SetBadScoreFactor(factor float64) {
	p.BadScoreFactor = factor
}

// SetNCloseSamples sets the capacity of the close-to-goal sample set.
func (p *PlannerOptions) SetNCloseSamples(n int) {
	p.NCloseSamples = n
}

func (p *PlannerOptions) validate() error {
	var err error
	if p.BadScoreFactor < floatEpsilon || p.BadScoreFactor > 1 {
		err = multierr.Append(err, errors.New("bad cell score factor must be in the range (0,1]"))
	}
	if p.GoodScoreFactor < floatEpsilon || p.GoodScoreFactor > 1 {
		err = multierr.Append(err, errors.New("good cell score factor must be in the range (0,1]"))
	}
	if p.BorderFraction < floatEpsilon || p.BorderFraction > 1 {
		err = multierr.Append(err, errors.New("the fraction of time spent selecting border cells must be in the range (0,1]"))
	}
	if p.GoalBias < 0 || p.GoalBias > 1 {
		err = multierr.Append(err, errors.New("goal bias must be in the range [0,1]"))
	}
	if p.NCloseSamples < 1 {
		err = multierr.Append(err, errors.New("the number of close samples must be positive"))
	}
	return err
}
