package main

import "math"

// BulletType distinguishes bullet behaviour on impact
type BulletType int

const (
	BulletBasic   BulletType = 0
	BulletDouble  BulletType = 1
	BulletHealing BulletType = 2
	BulletStun    BulletType = 3
)

var bulletTypeNames = []string{"basic", "double", "healing", "stun"}

func (b BulletType) String() string {
	if b < 0 || int(b) >= len(bulletTypeNames) {
		return "unknown"
	}
	return bulletTypeNames[b]
}

const (
	BulletSpeed        = 1.0 // cells per tick
	BulletDamage       = 20
	DoubleBulletSpeed  = 1.5
	DoubleBulletDamage = 40
	HealingBulletHeal  = 20
	StunBulletTicks    = 10

	LaserTicks  = 10
	LaserDamage = 80
)

// Bullet is a point projectile travelling along one axis
type Bullet struct {
	ID        int
	Type      BulletType
	FX, FY    float64 // exact position, cell centre at +0.5
	Direction Direction
	Speed     float64
	Damage    int
	ShooterID string
}

// NewBullet spawns a bullet in cell (x, y)
func NewBullet(id int, typ BulletType, x, y int, dir Direction, shooterID string) *Bullet {
	b := &Bullet{
		ID:        id,
		Type:      typ,
		FX:        float64(x) + 0.5,
		FY:        float64(y) + 0.5,
		Direction: dir,
		Speed:     BulletSpeed,
		ShooterID: shooterID,
	}
	switch typ {
	case BulletDouble:
		b.Speed = DoubleBulletSpeed
		b.Damage = DoubleBulletDamage
	case BulletBasic:
		b.Damage = BulletDamage
	case BulletHealing:
		b.Damage = HealingBulletHeal
	}
	return b
}

// Cell returns the grid cell the bullet occupies
func (b *Bullet) Cell() (int, int) {
	return int(math.Floor(b.FX)), int(math.Floor(b.FY))
}

// Update moves the bullet and returns the swept cells after its
// previous cell, ending with the new cell.
func (b *Bullet) Update(dt float64) []Cell {
	px, py := b.Cell()
	nx, ny := b.Direction.Normal()
	b.FX += float64(nx) * b.Speed * dt
	b.FY += float64(ny) * b.Speed * dt
	x, y := b.Cell()
	return sweep(px, py, x, y)
}

// Downgrade returns a plain bullet with half the damage at the same spot
func (b *Bullet) Downgrade(id int) *Bullet {
	return &Bullet{
		ID:        id,
		Type:      BulletBasic,
		FX:        b.FX,
		FY:        b.FY,
		Direction: b.Direction,
		Speed:     b.Speed,
		Damage:    b.Damage / 2,
		ShooterID: b.ShooterID,
	}
}

// Cell is a grid coordinate
type Cell struct {
	X, Y int
}

// sweep lists the axis-aligned cells after (x0,y0) up to (x1,y1)
func sweep(x0, y0, x1, y1 int) []Cell {
	if x0 == x1 && y0 == y1 {
		return []Cell{{x1, y1}}
	}
	dx, dy := sign(x1-x0), sign(y1-y0)
	cells := make([]Cell, 0, absInt(x1-x0)+absInt(y1-y0))
	x, y := x0, y0
	for x != x1 || y != y1 {
		if x != x1 {
			x += dx
		} else {
			y += dy
		}
		cells = append(cells, Cell{x, y})
	}
	return cells
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// LaserOrientation is the axis a laser beam spans
type LaserOrientation int

const (
	LaserHorizontal LaserOrientation = 0
	LaserVertical   LaserOrientation = 1
)

// Laser is one cell of a beam
type Laser struct {
	ID             int
	X, Y           int
	Orientation    LaserOrientation
	RemainingTicks int
	Damage         int
	ShooterID      string
}
