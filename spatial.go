package main

// Entity kinds stored in the occupancy index
const (
	RefTank   byte = 't'
	RefBullet byte = 'b'
	RefLaser  byte = 'l'
	RefMine   byte = 'm'
	RefItem   byte = 'i'
)

// EntityRef identifies an entity in the grid
type EntityRef struct {
	Kind byte
	Idx  int // index into the corresponding grid slice
}

// SpatialGrid indexes dynamic entities by cell for a dim x dim grid
type SpatialGrid struct {
	dim   int
	cells [][]EntityRef
}

// NewSpatialGrid allocates an index for the given dimension
func NewSpatialGrid(dim int) *SpatialGrid {
	return &SpatialGrid{dim: dim, cells: make([][]EntityRef, dim*dim)}
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *SpatialGrid) cellIdx(x, y int) int {
	if x < 0 || y < 0 || x >= g.dim || y >= g.dim {
		return -1
	}
	return y*g.dim + x
}

// Insert adds an entity reference at the given cell; off-grid is ignored
func (g *SpatialGrid) Insert(x, y int, ref EntityRef) {
	idx := g.cellIdx(x, y)
	if idx < 0 {
		return
	}
	g.cells[idx] = append(g.cells[idx], ref)
}

// Query returns the refs in a cell
func (g *SpatialGrid) Query(x, y int) []EntityRef {
	idx := g.cellIdx(x, y)
	if idx < 0 {
		return nil
	}
	return g.cells[idx]
}

// First returns the first ref of a kind in a cell
func (g *SpatialGrid) First(x, y int, kind byte) (EntityRef, bool) {
	for _, ref := range g.Query(x, y) {
		if ref.Kind == kind {
			return ref, true
		}
	}
	return EntityRef{}, false
}

// Occupied reports whether any ref sits in the cell
func (g *SpatialGrid) Occupied(x, y int) bool {
	return len(g.Query(x, y)) > 0
}
