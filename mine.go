package main

const (
	MineDamage         = 50
	MineExplosionTicks = 10
)

// Mine is an area denial charge. ExplosionTicks is nil while armed.
type Mine struct {
	ID             int
	X, Y           int
	Damage         int
	LayerID        string
	ExplosionTicks *int
}

// NewMine creates an armed mine
func NewMine(id, x, y int, layerID string) *Mine {
	return &Mine{ID: id, X: x, Y: y, Damage: MineDamage, LayerID: layerID}
}

// IsExploded reports whether the mine has been triggered
func (m *Mine) IsExploded() bool {
	return m.ExplosionTicks != nil
}

// IsFullyExploded reports whether the explosion has run its course
func (m *Mine) IsFullyExploded() bool {
	return m.ExplosionTicks != nil && *m.ExplosionTicks <= 0
}

// Explode triggers the mine; the caller applies damage to the victim
func (m *Mine) Explode() {
	if m.IsExploded() {
		return
	}
	t := MineExplosionTicks
	m.ExplosionTicks = &t
}

// Update ticks the explosion down
func (m *Mine) Update() {
	if m.ExplosionTicks == nil {
		return
	}
	t := *m.ExplosionTicks - 1
	m.ExplosionTicks = &t
}
