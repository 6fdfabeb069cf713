package main

const (
	TankMaxHealth = 100
	KillHealBonus = 40
)

// StunBlock is a bit set of what a stun prevents
type StunBlock int

const (
	StunMovement       StunBlock = 1 << 0
	StunTankRotation   StunBlock = 1 << 1
	StunTurretRotation StunBlock = 1 << 2
	StunAbilityUse     StunBlock = 1 << 3
	StunAll                      = StunMovement | StunTankRotation | StunTurretRotation | StunAbilityUse
)

// StunSource identifies what applied a stun; one active entry per source
type StunSource int

const (
	StunFromBullet StunSource = 0
	StunFromLaser  StunSource = 1
)

// Blocks returns the effects a stun source blocks
func (s StunSource) Blocks() StunBlock {
	return StunAll
}

// Tank is a player's vehicle on the grid
type Tank struct {
	OwnerID         string
	Kind            TankKind
	X, Y            int
	PrevX, PrevY    int
	Direction       Direction
	TurretDirection Direction
	Health          int
	Abilities       AbilitySet
	SecondaryItem   *ItemType
	stuns           map[StunSource]int
}

// NewTank creates a tank at full health
func NewTank(ownerID string, kind TankKind, x, y int, dir, turretDir Direction) *Tank {
	return &Tank{
		OwnerID:         ownerID,
		Kind:            kind,
		X:               x,
		Y:               y,
		PrevX:           x,
		PrevY:           y,
		Direction:       dir,
		TurretDirection: turretDir,
		Health:          TankMaxHealth,
		Abilities:       kind.Abilities(),
		stuns:           make(map[StunSource]int),
	}
}

// IsDead reports whether the tank is waiting to respawn
func (t *Tank) IsDead() bool {
	return t.Health <= 0
}

// SetPosition moves the tank and remembers the previous cell
func (t *Tank) SetPosition(x, y int) {
	t.PrevX, t.PrevY = t.X, t.Y
	t.X, t.Y = x, y
}

// Rotate turns the hull unless stunned
func (t *Tank) Rotate(r Rotation) {
	if t.IsBlockedByStun(StunTankRotation) {
		return
	}
	t.Direction = t.Direction.Rotate(r)
}

// RotateTurret turns the turret unless stunned
func (t *Tank) RotateTurret(r Rotation) {
	if t.IsBlockedByStun(StunTurretRotation) {
		return
	}
	t.TurretDirection = t.TurretDirection.Rotate(r)
}

// TakeDamage lowers health and returns the damage actually taken and
// whether the hit was lethal. A lethal hit moves the tank off the grid.
func (t *Tank) TakeDamage(damage int) (int, bool) {
	if damage < 0 {
		panic("tank: negative damage")
	}
	if t.IsDead() {
		return 0, false
	}
	taken := min(t.Health, damage)
	t.Health -= damage
	if t.Health > 0 {
		return taken, false
	}
	t.Health = 0
	t.SetPosition(-1, -1)
	t.SecondaryItem = nil
	clear(t.stuns)
	return taken, true
}

// Heal restores health up to the maximum
func (t *Tank) Heal(points int) {
	if points < 0 {
		panic("tank: negative heal")
	}
	if t.IsDead() {
		panic("tank: heal on dead tank")
	}
	t.Health = min(TankMaxHealth, t.Health+points)
}

// Respawn restores a dead tank at the given cell
func (t *Tank) Respawn(x, y int) {
	t.Health = TankMaxHealth
	t.SetPosition(x, y)
	clear(t.stuns)
}

// Stun applies or refreshes a stun from the given source
func (t *Tank) Stun(src StunSource, ticks int) {
	if ticks <= 0 {
		return
	}
	t.stuns[src] = ticks
}

// UpdateStunEffects ticks down active stuns
func (t *Tank) UpdateStunEffects() {
	for src, left := range t.stuns {
		if left-1 <= 0 {
			delete(t.stuns, src)
			continue
		}
		t.stuns[src] = left - 1
	}
}

// IsBlockedByStun reports whether any active stun blocks the effect
func (t *Tank) IsBlockedByStun(effect StunBlock) bool {
	for src := range t.stuns {
		if src.Blocks()&effect == effect {
			return true
		}
	}
	return false
}

// StunTicks returns the remaining ticks per stun source
func (t *Tank) StunTicks() map[StunSource]int {
	out := make(map[StunSource]int, len(t.stuns))
	for k, v := range t.stuns {
		out[k] = v
	}
	return out
}
