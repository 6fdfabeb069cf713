package main

// TankKind selects the ability bundle of a tank
type TankKind int

const (
	TankStandard TankKind = 0
	TankLight    TankKind = 1
	TankHeavy    TankKind = 2
)

var tankKindNames = []string{"standard", "light", "heavy"}

func (k TankKind) String() string {
	if k < 0 || int(k) >= len(tankKindNames) {
		return "unknown"
	}
	return tankKindNames[k]
}

// TankKindDef lists the abilities a kind carries on the hull and turret
type TankKindDef struct {
	Hull   []AbilityType
	Turret []AbilityType
}

var TankKinds = [3]TankKindDef{
	// Standard: classic mode, secondary abilities come from pickups
	{
		Turret: []AbilityType{AbilityFireBullet},
	},
	// Light: scouting and burst damage
	{
		Hull: []AbilityType{AbilityUseRadar},
		Turret: []AbilityType{
			AbilityFireBullet, AbilityFireDoubleBullet,
			AbilityFireHealingBullet, AbilityFireStunBullet,
		},
	},
	// Heavy: area denial
	{
		Hull: []AbilityType{AbilityDropMine},
		Turret: []AbilityType{
			AbilityFireBullet, AbilityUseLaser,
			AbilityFireHealingBullet, AbilityFireStunBullet,
		},
	},
}

// GetKindDef returns the definition for a tank kind
func GetKindDef(kind TankKind) TankKindDef {
	if kind < 0 || int(kind) >= len(TankKinds) {
		return TankKinds[TankStandard]
	}
	return TankKinds[kind]
}

// Abilities builds a fresh ability set for the kind
func (k TankKind) Abilities() AbilitySet {
	def := GetKindDef(k)
	types := make([]AbilityType, 0, len(def.Hull)+len(def.Turret))
	types = append(types, def.Hull...)
	types = append(types, def.Turret...)
	return NewAbilitySet(types...)
}

// Has reports whether the kind carries the ability
func (k TankKind) Has(t AbilityType) bool {
	def := GetKindDef(k)
	for _, a := range def.Hull {
		if a == t {
			return true
		}
	}
	for _, a := range def.Turret {
		if a == t {
			return true
		}
	}
	return false
}
