package controlspace

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// VectorSpaceConfig describes a bounded n-dimensional Euclidean state space under
// velocity control, integrated at a fixed step size.
type VectorSpaceConfig struct {
	// Lower and Upper bound the valid region of the state space per dimension.
	Lower []float64
	Upper []float64

	// ControlLower and ControlUpper bound the sampled velocity per dimension.
	ControlLower []float64
	ControlUpper []float64

	// Bounds, in steps, on how long one sampled control may be applied.
	MinControlDuration int
	MaxControlDuration int

	// Seconds of integration per propagation step.
	PropagationStepSize float64

	// Source of randomness for control samplers allocated by this space.
	Seed *rand.Rand
}

// VectorSpace is a Space whose states and controls are []float64 vectors.
// Propagation is forward Euler integration of the control as a velocity;
// validity is staying inside the configured bounds.
type VectorSpace struct {
	cfg VectorSpaceConfig
	dim int
}

// NewVectorSpace validates cfg and returns the space it describes.
func NewVectorSpace(cfg VectorSpaceConfig) (*VectorSpace, error) {
	dim := len(cfg.Lower)
	if dim == 0 {
		return nil, errors.New("vector space needs at least one dimension")
	}
	if len(cfg.Upper) != dim || len(cfg.ControlLower) != dim || len(cfg.ControlUpper) != dim {
		return nil, errors.Errorf("bounds must all have dimension %d", dim)
	}
	for i := 0; i < dim; i++ {
		if cfg.Lower[i] > cfg.Upper[i] {
			return nil, errors.Errorf("lower bound exceeds upper bound in dimension %d", i)
		}
	}
	if cfg.MinControlDuration < 1 || cfg.MaxControlDuration < cfg.MinControlDuration {
		return nil, errors.New("control durations must satisfy 1 <= min <= max")
	}
	if cfg.PropagationStepSize <= 0 {
		return nil, errors.New("propagation step size must be positive")
	}
	if cfg.Seed == nil {
		cfg.Seed = rand.New(rand.NewSource(0))
	}
	return &VectorSpace{cfg: cfg, dim: dim}, nil
}

// Dimension returns the number of state-space dimensions.
func (vs *VectorSpace) Dimension() int { return vs.dim }

// AllocState returns a zeroed state vector.
func (vs *VectorSpace) AllocState() State { return make([]float64, vs.dim) }

// FreeState is a no-op; state vectors are garbage collected.
func (vs *VectorSpace) FreeState(State) {}

// CopyState copies src into dst.
func (vs *VectorSpace) CopyState(dst, src State) {
	copy(dst.([]float64), src.([]float64))
}

// CloneState returns a freshly allocated copy of src.
func (vs *VectorSpace) CloneState(src State) State {
	return append([]float64(nil), src.([]float64)...)
}

// AllocControl returns a zeroed control vector.
func (vs *VectorSpace) AllocControl() Control { return make([]float64, vs.dim) }

// FreeControl is a no-op; control vectors are garbage collected.
func (vs *VectorSpace) FreeControl(Control) {}

// CopyControl copies src into dst.
func (vs *VectorSpace) CopyControl(dst, src Control) {
	copy(dst.([]float64), src.([]float64))
}

// CloneControl returns a freshly allocated copy of src.
func (vs *VectorSpace) CloneControl(src Control) Control {
	return append([]float64(nil), src.([]float64)...)
}

// NullControl zeroes c.
func (vs *VectorSpace) NullControl(c Control) {
	u := c.([]float64)
	for i := range u {
		u[i] = 0
	}
}

// MinControlDuration returns the minimum number of steps a control is applied.
func (vs *VectorSpace) MinControlDuration() int { return vs.cfg.MinControlDuration }

// MaxControlDuration returns the maximum number of steps a control is applied.
func (vs *VectorSpace) MaxControlDuration() int { return vs.cfg.MaxControlDuration }

// PropagationStepSize returns the seconds of integration per step.
func (vs *VectorSpace) PropagationStepSize() float64 { return vs.cfg.PropagationStepSize }

func (vs *VectorSpace) valid(x []float64) bool {
	for i, v := range x {
		if v < vs.cfg.Lower[i] || v > vs.cfg.Upper[i] {
			return false
		}
	}
	return true
}

// PropagateWhileValid integrates ctrl from start for up to steps steps, stopping
// before the first state that leaves the bounds. The number of steps actually
// taken is returned.
func (vs *VectorSpace) PropagateWhileValid(start State, ctrl Control, steps int, result []State, storeLastOnly bool) int {
	x := append([]float64(nil), start.([]float64)...)
	u := ctrl.([]float64)
	valid := 0
	for i := 0; i < steps; i++ {
		floats.AddScaled(x, vs.cfg.PropagationStepSize, u)
		if !vs.valid(x) {
			break
		}
		if storeLastOnly {
			copy(result[0].([]float64), x)
		} else {
			copy(result[i].([]float64), x)
		}
		valid++
	}
	return valid
}

// AllocControlSampler returns a sampler drawing controls uniformly from the
// configured control bounds and step counts uniformly from [min, max].
func (vs *VectorSpace) AllocControlSampler() ControlSampler {
	return &uniformControlSampler{space: vs, randseed: vs.cfg.Seed}
}

type uniformControlSampler struct {
	space    *VectorSpace
	randseed *rand.Rand
}

func (cs *uniformControlSampler) SampleNext(ctrl, previous Control, prevState State) {
	u := ctrl.([]float64)
	for i := range u {
		lo, hi := cs.space.cfg.ControlLower[i], cs.space.cfg.ControlUpper[i]
		u[i] = lo + cs.randseed.Float64()*(hi-lo)
	}
}

func (cs *uniformControlSampler) SampleStepCount(min, max int) int {
	return min + cs.randseed.Intn(max-min+1)
}

// GridProjection projects the leading len(CellSizes) components of a vector
// state onto an integer lattice, one cell per CellSizes-sized interval.
type GridProjection struct {
	CellSizes []float64
}

// Dimension returns the projection dimension.
func (p *GridProjection) Dimension() int { return len(p.CellSizes) }

// ComputeCoordinates fills coord with the lattice cell containing s.
func (p *GridProjection) ComputeCoordinates(s State, coord []int) {
	x := s.([]float64)
	for i, size := range p.CellSizes {
		coord[i] = int(math.Floor(x[i] / size))
	}
}

// BallGoal is satisfied by any state within Radius of Center.
type BallGoal struct {
	Center []float64
	Radius float64
}

// IsSatisfied reports whether s lies inside the ball, and its distance to Center.
func (g *BallGoal) IsSatisfied(s State) (bool, float64) {
	dist := floats.Distance(s.([]float64), g.Center, 2)
	return dist <= g.Radius, dist
}
