package kpiece

import (
	"container/heap"
	"strconv"
)

// cellData aggregates everything the planner tracks about one projection cell.
type cellData struct {
	motions    []*motion
	coverage   int // sum of steps over motions
	iteration  int // tree iteration at which the cell was created
	selections int
	score      float64
	// importance is the priority key derived from the fields above; it is
	// recomputed by the grid's cell-update hook and only valid inside the heaps.
	importance float64
}

// cell is one occupied coordinate of the projection grid.
type cell struct {
	coord []int
	data  *cellData

	// border is true while the cell has at least one empty orthogonal neighbor.
	// It flips to false exactly once, when the last neighbor fills in.
	border    bool
	neighbors int

	// Bookkeeping for the heap the cell currently lives in.
	heapIndex  int
	inExterior bool
}

// cellHeap is a max-heap over cell importance with a back-index, so a cell whose
// score changed can be re-sifted in place.
type cellHeap []*cell

func (h cellHeap) Len() int { return len(h) }

func (h cellHeap) Less(i, j int) bool { return h[i].data.importance > h[j].data.importance }

func (h cellHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *cellHeap) Push(x any) {
	c := x.(*cell)
	c.heapIndex = len(*h)
	*h = append(*h, c)
}

func (h *cellHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	c.heapIndex = -1
	return c
}

func (h cellHeap) top() *cell {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// cellUpdateFn recomputes a cell's importance from its data. The grid invokes it
// whenever it learns the cell changed.
type cellUpdateFn func(c *cell)

// grid maps projection coordinates to cells and keeps the cells partitioned into
// exterior (border) and interior, each partition ordered by importance.
type grid struct {
	dimension int
	cells     map[string]*cell
	// ordered holds cells in creation order. Iterating the coord map would give a
	// different order every run; keeping this slice yields deterministic results
	// when the grid contents are enumerated.
	ordered []*cell

	exterior cellHeap
	interior cellHeap

	computeImportance cellUpdateFn
}

func newGrid(dimension int) *grid {
	return &grid{
		dimension:         dimension,
		cells:             map[string]*cell{},
		computeImportance: func(c *cell) { c.data.importance = c.data.score },
	}
}

// onCellUpdate replaces the hook used to derive a cell's priority key.
func (g *grid) onCellUpdate(fn cellUpdateFn) {
	g.computeImportance = fn
}

func coordKey(coord []int) string {
	b := make([]byte, 0, len(coord)*4)
	for _, v := range coord {
		b = strconv.AppendInt(b, int64(v), 10)
		b = append(b, ',')
	}
	return string(b)
}

func (g *grid) size() int { return len(g.cells) }

func (g *grid) countExternal() int { return len(g.exterior) }

func (g *grid) countInternal() int { return len(g.interior) }

// fracExternal returns the fraction of cells that are on the border of the
// explored region. An empty grid counts as all-border.
func (g *grid) fracExternal() float64 {
	if len(g.cells) == 0 {
		return 1
	}
	return float64(len(g.exterior)) / float64(len(g.cells))
}

func (g *grid) getCell(coord []int) *cell {
	return g.cells[coordKey(coord)]
}

// createCell inserts an empty cell at coord and updates the neighbor counts and
// border flags of the cells orthogonally adjacent to it. The new cell is not in
// either heap until add is called; callers fill in its data first.
func (g *grid) createCell(coord []int) *cell {
	c := &cell{
		coord:     append([]int(nil), coord...),
		heapIndex: -1,
	}

	scratch := append([]int(nil), coord...)
	for d := 0; d < g.dimension; d++ {
		for _, delta := range [2]int{-1, 1} {
			scratch[d] = coord[d] + delta
			if n := g.cells[coordKey(scratch)]; n != nil {
				c.neighbors++
				n.neighbors++
				if n.border && n.neighbors >= 2*g.dimension {
					n.border = false
					g.migrate(n)
				}
			}
		}
		scratch[d] = coord[d]
	}
	c.border = c.neighbors < 2*g.dimension

	g.cells[coordKey(coord)] = c
	g.ordered = append(g.ordered, c)
	return c
}

// add places a created cell into the partition matching its border flag.
func (g *grid) add(c *cell) {
	g.computeImportance(c)
	c.inExterior = c.border
	if c.border {
		heap.Push(&g.exterior, c)
	} else {
		heap.Push(&g.interior, c)
	}
}

// update re-sifts c after a change to its data, migrating it between partitions
// if its border flag flipped since the last update.
func (g *grid) update(c *cell) {
	g.computeImportance(c)
	if c.border != c.inExterior {
		g.migrate(c)
		return
	}
	if c.inExterior {
		heap.Fix(&g.exterior, c.heapIndex)
	} else {
		heap.Fix(&g.interior, c.heapIndex)
	}
}

// migrate moves c into the partition matching its border flag. Cells not yet
// added to a heap are left alone; add will place them correctly.
func (g *grid) migrate(c *cell) {
	if c.heapIndex < 0 {
		return
	}
	if c.inExterior {
		heap.Remove(&g.exterior, c.heapIndex)
		c.inExterior = false
		heap.Push(&g.interior, c)
	} else {
		heap.Remove(&g.interior, c.heapIndex)
		c.inExterior = true
		heap.Push(&g.exterior, c)
	}
}

// updateAll recomputes every cell's importance and rebuilds both partitions.
// This is the rare bulk path used after a numerical rescue.
func (g *grid) updateAll() {
	for _, c := range g.ordered {
		g.computeImportance(c)
	}
	heap.Init(&g.exterior)
	heap.Init(&g.interior)
}

func (g *grid) topExternal() *cell { return g.exterior.top() }

func (g *grid) topInternal() *cell { return g.interior.top() }

// getCells enumerates all cells in creation order.
func (g *grid) getCells() []*cell { return g.ordered }

// getContent enumerates all cell data in creation order.
func (g *grid) getContent() []*cellData {
	content := make([]*cellData, 0, len(g.ordered))
	for _, c := range g.ordered {
		content = append(content, c.data)
	}
	return content
}

// clear drops every cell. Motion handles are not touched; the planner releases
// those before clearing the grid.
func (g *grid) clear() {
	g.cells = map[string]*cell{}
	g.ordered = nil
	g.exterior = nil
	g.interior = nil
}
