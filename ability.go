package main

// AbilityType identifies an ability a player can trigger
type AbilityType int

const (
	AbilityFireBullet        AbilityType = 0
	AbilityUseLaser          AbilityType = 1
	AbilityFireDoubleBullet  AbilityType = 2
	AbilityUseRadar          AbilityType = 3
	AbilityDropMine          AbilityType = 4
	AbilityFireHealingBullet AbilityType = 5
	AbilityFireStunBullet    AbilityType = 6
)

var abilityNames = []string{
	"fireBullet", "useLaser", "fireDoubleBullet", "useRadar",
	"dropMine", "fireHealingBullet", "fireStunBullet",
}

func (a AbilityType) String() string {
	if a < 0 || int(a) >= len(abilityNames) {
		return "unknown"
	}
	return abilityNames[a]
}

// Regeneration totals in ticks
const (
	BulletRegenTicks        = 10
	DoubleBulletRegenTicks  = 60
	LaserRegenTicks         = 200
	RadarRegenTicks         = 200
	MineRegenTicks          = 100
	HealingBulletRegenTicks = 150
	StunBulletRegenTicks    = 200
)

// RegenTicksFor returns the total regeneration ticks for an ability type
func RegenTicksFor(t AbilityType) int {
	switch t {
	case AbilityFireBullet:
		return BulletRegenTicks
	case AbilityFireDoubleBullet:
		return DoubleBulletRegenTicks
	case AbilityUseLaser:
		return LaserRegenTicks
	case AbilityUseRadar:
		return RadarRegenTicks
	case AbilityDropMine:
		return MineRegenTicks
	case AbilityFireHealingBullet:
		return HealingBulletRegenTicks
	default:
		return StunBulletRegenTicks
	}
}

// Ability is a regenerating cooldown record. Remaining == nil means ready.
type Ability struct {
	Type      AbilityType
	Total     int
	Remaining *int
}

// NewAbility returns a ready ability of the given type
func NewAbility(t AbilityType) *Ability {
	return &Ability{Type: t, Total: RegenTicksFor(t)}
}

// Ready reports whether the cooldown has elapsed
func (a *Ability) Ready() bool {
	return a.Remaining == nil
}

// CanUse gates use on owner state and cooldown
func (a *Ability) CanUse(owner *Tank) bool {
	if owner == nil || owner.IsDead() {
		return false
	}
	if owner.IsBlockedByStun(StunAbilityUse) {
		return false
	}
	return a.Ready()
}

// Use consumes the ability and starts regeneration
func (a *Ability) Use() {
	r := a.Total
	a.Remaining = &r
}

// Tick advances regeneration by one tick
func (a *Ability) Tick() {
	if a.Remaining == nil {
		return
	}
	r := *a.Remaining - 1
	if r <= 0 {
		a.Remaining = nil
		return
	}
	a.Remaining = &r
}

// ForceReady clears the cooldown
func (a *Ability) ForceReady() {
	a.Remaining = nil
}

// Progress returns 1 - remaining/total, or nil when ready
func (a *Ability) Progress() *float64 {
	if a.Remaining == nil || a.Total <= 0 {
		return nil
	}
	p := 1 - float64(*a.Remaining)/float64(a.Total)
	return &p
}

// AbilitySet holds the abilities available to one tank
type AbilitySet map[AbilityType]*Ability

// NewAbilitySet builds ready abilities for the given types
func NewAbilitySet(types ...AbilityType) AbilitySet {
	s := make(AbilitySet, len(types))
	for _, t := range types {
		s[t] = NewAbility(t)
	}
	return s
}

// Tick advances every ability in the set
func (s AbilitySet) Tick() {
	for _, a := range s {
		a.Tick()
	}
}
