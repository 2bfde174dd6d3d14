package kpiece

import "sort"

// closeSample pairs a motion with the cell holding it and its goal distance at
// the time it was considered.
type closeSample struct {
	cell     *cell
	motion   *motion
	distance float64
}

// closeSamples is a bounded set of the best goal-approaching motions seen so
// far, ordered by distance with stable ties. It may hold entries whose recorded
// distance has been artificially inflated by selectMotion.
type closeSamples struct {
	maxSize int
	samples []closeSample
}

func newCloseSamples(maxSize int) *closeSamples {
	return &closeSamples{maxSize: maxSize}
}

func (cs *closeSamples) canSample() bool { return len(cs.samples) > 0 }

// consider offers a motion to the set. It is accepted if the set is empty or the
// motion is closer to the goal than the current worst entry, evicting that entry
// when the set is full.
func (cs *closeSamples) consider(c *cell, m *motion, distance float64) bool {
	if len(cs.samples) == 0 {
		cs.samples = append(cs.samples, closeSample{cell: c, motion: m, distance: distance})
		return true
	}
	if cs.samples[len(cs.samples)-1].distance <= distance {
		return false
	}
	if len(cs.samples) >= cs.maxSize {
		cs.samples = cs.samples[:len(cs.samples)-1]
	}
	idx := sort.Search(len(cs.samples), func(i int) bool {
		return cs.samples[i].distance > distance
	})
	cs.samples = append(cs.samples, closeSample{})
	copy(cs.samples[idx+1:], cs.samples[idx:])
	cs.samples[idx] = closeSample{cell: c, motion: m, distance: distance}
	return true
}

// selectMotion pops the entry closest to the goal and re-offers it with an
// inflated distance, the average of the best and worst distances scaled by 1.1.
// That keeps the sample from being reselected immediately while letting it
// compete again later. If the inflated distance exceeds every remaining entry
// the re-offer is rejected and the sample is retired; that is intended.
func (cs *closeSamples) selectMotion() (*motion, *cell, bool) {
	if len(cs.samples) == 0 {
		return nil, nil, false
	}
	best := cs.samples[0]
	inflated := (cs.samples[0].distance + cs.samples[len(cs.samples)-1].distance) * 0.55
	cs.samples = cs.samples[1:]
	cs.consider(best.cell, best.motion, inflated)
	return best.motion, best.cell, true
}
