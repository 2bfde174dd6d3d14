package kpiece

import "go.viam.com/kpiece/controlspace"

// State tags used in exported planner data.
const (
	TagInteriorCell = 1
	TagBorderCell   = 2
)

// PlannerDataEdge is one motion of the exported tree. Parent and Control are nil
// and Duration is zero at tree roots. The states and controls are borrowed from
// the planner's tree; they remain valid until the next Clear.
type PlannerDataEdge struct {
	Parent   controlspace.State
	State    controlspace.State
	Control  controlspace.Control
	Duration float64

	// Tag is TagBorderCell when the motion's cell borders unexplored space,
	// TagInteriorCell otherwise.
	Tag int
}

// PlannerData is a read-only export of the current search tree.
type PlannerData struct {
	Edges []PlannerDataEdge
}

// PlannerData exports every motion of the tree, cell by cell in creation order.
func (mp *KPIECEPlanner) PlannerData() *PlannerData {
	data := &PlannerData{}
	delta := mp.space.PropagationStepSize()
	for _, c := range mp.tree.grid.getCells() {
		tag := TagInteriorCell
		if c.border {
			tag = TagBorderCell
		}
		for _, m := range c.data.motions {
			edge := PlannerDataEdge{State: m.state, Tag: tag}
			if m.parent != nil {
				edge.Parent = m.parent.state
				edge.Control = m.control
				edge.Duration = float64(m.steps) * delta
			}
			data.Edges = append(data.Edges, edge)
		}
	}
	return data
}
