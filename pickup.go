package main

// ItemType is a secondary item that can lie on the map or be held
type ItemType int

const (
	ItemUnknown      ItemType = 0
	ItemLaser        ItemType = 1
	ItemDoubleBullet ItemType = 2
	ItemRadar        ItemType = 3
	ItemMine         ItemType = 4
)

var itemTypeNames = []string{"unknown", "laser", "doubleBullet", "radar", "mine"}

func (i ItemType) String() string {
	if i < 0 || int(i) >= len(itemTypeNames) {
		return "unknown"
	}
	return itemTypeNames[i]
}

// ItemAbility maps an item to the ability it grants
func (i ItemType) ItemAbility() (AbilityType, bool) {
	switch i {
	case ItemLaser:
		return AbilityUseLaser, true
	case ItemDoubleBullet:
		return AbilityFireDoubleBullet, true
	case ItemRadar:
		return AbilityUseRadar, true
	case ItemMine:
		return AbilityDropMine, true
	}
	return 0, false
}

const (
	ItemSpawnAttempts = 200
	itemNullWeight    = 99.5
)

// itemWeights is the per-tick spawn weight of each item; the remainder
// up to itemNullWeight means nothing spawns.
var itemWeights = []struct {
	Type   ItemType
	Weight float64
}{
	{ItemLaser, 0.09},
	{ItemDoubleBullet, 0.9},
	{ItemRadar, 0.3},
	{ItemMine, 0.5},
}

// Item is a pickup lying on the map
type Item struct {
	X, Y int
	Type ItemType
}

// pickItemType selects an item type for a roll in [0, total)
func pickItemType(roll float64) (ItemType, bool) {
	cumulative := 0.0
	for _, w := range itemWeights {
		cumulative += w.Weight
		if roll <= cumulative {
			return w.Type, true
		}
	}
	return ItemUnknown, false
}

func itemTotalWeight() float64 {
	total := itemNullWeight
	for _, w := range itemWeights {
		total += w.Weight
	}
	return total
}
