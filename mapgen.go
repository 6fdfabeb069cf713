package main

import (
	"fmt"
	"math/rand"
)

const (
	wallDensity       = 0.15
	maxWallSegment    = 4
	zonePlaceAttempts = 200
	wallPlaceAttempts = 2000
	zoneMargin        = 1
)

// MapGenerator lays out zones and walls from a seeded RNG
type MapGenerator struct {
	dim       int
	zoneCount int
	rng       *rand.Rand
	Warnings  []string
}

// NewMapGenerator creates a generator sharing the grid's RNG
func NewMapGenerator(dim, zoneCount int, rng *rand.Rand) *MapGenerator {
	return &MapGenerator{dim: dim, zoneCount: zoneCount, rng: rng}
}

func (m *MapGenerator) warn(format string, args ...any) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(format, args...))
}

// GenerateZones places non-overlapping square zones
func (m *MapGenerator) GenerateZones() []*Zone {
	size := max(3, m.dim/6)
	if size+2*zoneMargin > m.dim {
		m.warn("grid too small for zones of size %d", size)
		return nil
	}
	zones := make([]*Zone, 0, m.zoneCount)
	for i := 0; i < m.zoneCount; i++ {
		placed := false
		for attempt := 0; attempt < zonePlaceAttempts && !placed; attempt++ {
			span := m.dim - size - 2*zoneMargin + 1
			z := &Zone{
				X:      zoneMargin + m.rng.Intn(span),
				Y:      zoneMargin + m.rng.Intn(span),
				Width:  size,
				Height: size,
				Index:  rune('A' + len(zones)),
			}
			if overlapsAny(z, zones) {
				continue
			}
			zones = append(zones, z)
			placed = true
		}
		if !placed {
			m.warn("could not place zone %d after %d attempts", i, zonePlaceAttempts)
		}
	}
	return zones
}

func overlapsAny(z *Zone, zones []*Zone) bool {
	for _, o := range zones {
		if z.X-zoneMargin < o.X+o.Width && o.X-zoneMargin < z.X+z.Width &&
			z.Y-zoneMargin < o.Y+o.Height && o.Y-zoneMargin < z.Y+z.Height {
			return true
		}
	}
	return false
}

// GenerateWalls scatters short wall segments outside zones, keeping all
// open cells connected. The result is indexed [x][y].
func (m *MapGenerator) GenerateWalls(zones []*Zone) [][]bool {
	walls := newBoolGrid(m.dim)
	target := int(float64(m.dim*m.dim) * wallDensity)
	count := 0
	for attempt := 0; attempt < wallPlaceAttempts && count < target; attempt++ {
		x, y := m.rng.Intn(m.dim), m.rng.Intn(m.dim)
		dir := Direction(m.rng.Intn(4))
		length := 1 + m.rng.Intn(maxWallSegment)
		nx, ny := dir.Normal()
		for i := 0; i < length && count < target; i++ {
			cx, cy := x+nx*i, y+ny*i
			if !m.canWall(walls, zones, cx, cy) {
				break
			}
			walls[cx][cy] = true
			if !openConnected(walls) {
				walls[cx][cy] = false
				break
			}
			count++
		}
	}
	if count < target {
		m.warn("placed %d of %d walls", count, target)
	}
	return walls
}

func (m *MapGenerator) canWall(walls [][]bool, zones []*Zone, x, y int) bool {
	if x < 0 || y < 0 || x >= m.dim || y >= m.dim || walls[x][y] {
		return false
	}
	for _, z := range zones {
		if z.ManhattanDistanceTo(x, y) <= zoneMargin {
			return false
		}
	}
	return true
}

// openConnected reports whether every open cell is reachable from any other
func openConnected(walls [][]bool) bool {
	dim := len(walls)
	start, open := Cell{-1, -1}, 0
	for x := 0; x < dim; x++ {
		for y := 0; y < dim; y++ {
			if !walls[x][y] {
				open++
				if start.X < 0 {
					start = Cell{x, y}
				}
			}
		}
	}
	if open == 0 {
		return true
	}
	seen := newBoolGrid(dim)
	seen[start.X][start.Y] = true
	queue := []Cell{start}
	reached := 0
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		reached++
		for d := DirectionUp; d <= DirectionLeft; d++ {
			dx, dy := d.Normal()
			nx, ny := c.X+dx, c.Y+dy
			if nx < 0 || ny < 0 || nx >= dim || ny >= dim || walls[nx][ny] || seen[nx][ny] {
				continue
			}
			seen[nx][ny] = true
			queue = append(queue, Cell{nx, ny})
		}
	}
	return reached == open
}
