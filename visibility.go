package main

// VisibilityManager computes line-of-sight grids over static walls.
// Results are cached per observer cell since walls never change.
type VisibilityManager struct {
	dim    int
	walls  [][]bool
	radius int
	cache  map[Cell][][]bool
}

// NewVisibilityManager builds a manager for the wall matrix ([x][y]).
// radius limits sight in Chebyshev distance; 0 means unlimited.
func NewVisibilityManager(walls [][]bool, radius int) *VisibilityManager {
	return &VisibilityManager{
		dim:    len(walls),
		walls:  walls,
		radius: radius,
		cache:  make(map[Cell][][]bool),
	}
}

// Compute returns the cells visible from (x, y). The returned grid is
// shared and must not be modified.
func (v *VisibilityManager) Compute(x, y int) [][]bool {
	if x < 0 || y < 0 || x >= v.dim || y >= v.dim {
		return newBoolGrid(v.dim)
	}
	key := Cell{x, y}
	if g, ok := v.cache[key]; ok {
		return g
	}
	g := newBoolGrid(v.dim)
	for tx := 0; tx < v.dim; tx++ {
		for ty := 0; ty < v.dim; ty++ {
			if v.radius > 0 && max(absInt(tx-x), absInt(ty-y)) > v.radius {
				continue
			}
			g[tx][ty] = v.lineOfSight(x, y, tx, ty)
		}
	}
	v.cache[key] = g
	return g
}

// lineOfSight samples the segment between cell centres at half-cell
// steps; any wall strictly between the endpoints blocks it.
func (v *VisibilityManager) lineOfSight(x0, y0, x1, y1 int) bool {
	dx, dy := x1-x0, y1-y0
	steps := 2 * max(absInt(dx), absInt(dy))
	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)
		cx := int(float64(x0) + 0.5 + t*float64(dx))
		cy := int(float64(y0) + 0.5 + t*float64(dy))
		if (cx == x0 && cy == y0) || (cx == x1 && cy == y1) {
			continue
		}
		if v.walls[cx][cy] {
			return false
		}
	}
	return true
}

// unionGrid ORs src into dst
func unionGrid(dst, src [][]bool) {
	for x := range dst {
		for y := range dst[x] {
			if src[x][y] {
				dst[x][y] = true
			}
		}
	}
}

func newBoolGrid(dim int) [][]bool {
	g := make([][]bool, dim)
	for i := range g {
		g[i] = make([]bool, dim)
	}
	return g
}

func fullGrid(dim int) [][]bool {
	g := newBoolGrid(dim)
	for x := range g {
		for y := range g[x] {
			g[x][y] = true
		}
	}
	return g
}
