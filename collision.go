package main

// CollisionKind classifies what a bullet hit
type CollisionKind int

const (
	CollisionOutOfBounds CollisionKind = iota
	CollisionWall
	CollisionTank
	CollisionMine
	CollisionBullet
)

// Collision is the first obstacle found along a bullet's swept path
type Collision struct {
	Kind   CollisionKind
	X, Y   int
	Tank   *Tank
	Mine   *Mine
	Bullet *Bullet
}

// Trajectory is the path a bullet swept this tick. From is the cell it
// started in; Cells are the cells entered, in order.
type Trajectory struct {
	From  Cell
	Cells []Cell
}

// Contains reports whether the swept part of the path covers the cell
func (t Trajectory) Contains(c Cell) bool {
	for _, p := range t.Cells {
		if p == c {
			return true
		}
	}
	return false
}

// CheckBulletCollision walks the bullet's trajectory and returns the
// first collision, or nil. Bullets missing from trajectories are
// treated as already destroyed.
func CheckBulletCollision(b *Bullet, g *Grid, trajectories map[*Bullet]Trajectory) *Collision {
	path, ok := trajectories[b]
	if !ok {
		return nil
	}
	for _, c := range path.Cells {
		if !g.InBounds(c.X, c.Y) {
			return &Collision{Kind: CollisionOutOfBounds, X: c.X, Y: c.Y}
		}
		if g.IsWall(c.X, c.Y) {
			return &Collision{Kind: CollisionWall, X: c.X, Y: c.Y}
		}
		if t := g.TankAt(c.X, c.Y); t != nil {
			return &Collision{Kind: CollisionTank, X: c.X, Y: c.Y, Tank: t}
		}
		if m := g.MineAt(c.X, c.Y); m != nil && !m.IsExploded() {
			return &Collision{Kind: CollisionMine, X: c.X, Y: c.Y, Mine: m}
		}
		if other := bulletCrossing(b, c, trajectories); other != nil {
			return &Collision{Kind: CollisionBullet, X: c.X, Y: c.Y, Bullet: other}
		}
	}
	return nil
}

// bulletCrossing finds another bullet that entered the same cell this
// tick, or a head-on bullet that started in it.
func bulletCrossing(b *Bullet, c Cell, trajectories map[*Bullet]Trajectory) *Bullet {
	var found *Bullet
	for other, path := range trajectories {
		if other == b {
			continue
		}
		hit := path.Contains(c) ||
			(path.From == c && other.Direction == b.Direction.Opposite())
		if !hit {
			continue
		}
		// map order is random; pick the lowest id for a stable result
		if found == nil || other.ID < found.ID {
			found = other
		}
	}
	return found
}
