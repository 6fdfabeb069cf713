package main

import (
	"sort"
	"strings"
)

// TileObject is one entity in a player's tile list
type TileObject struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Tile object type tags
const (
	TileWall   = "wall"
	TileTank   = "tank"
	TileBullet = "bullet"
	TileLaser  = "laser"
	TileMine   = "mine"
	TileItem   = "item"
)

// CellPayload is a bare coordinate
type CellPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// AbilityPayload is the cooldown of one ability
type AbilityPayload struct {
	Type           any      `json:"type"`
	RemainingTicks *int     `json:"remainingTicks"`
	Progress       *float64 `json:"progress"`
}

// TurretPayload describes a tank's turret
type TurretPayload struct {
	Direction any `json:"direction"`
}

// TankPayload describes a tank. Private fields are only filled for the
// owner, teammates and spectators.
type TankPayload struct {
	OwnerID       string           `json:"ownerId"`
	X             *int             `json:"x,omitempty"`
	Y             *int             `json:"y,omitempty"`
	Type          any              `json:"type"`
	Direction     any              `json:"direction"`
	Turret        TurretPayload    `json:"turret"`
	Health        *int             `json:"health,omitempty"`
	SecondaryItem any              `json:"secondaryItem,omitempty"`
	Abilities     []AbilityPayload `json:"abilities,omitempty"`
	StunTicks     *int             `json:"stunTicks,omitempty"`
}

// BulletPayload describes a bullet; position, damage and shooter are
// spectator-only.
type BulletPayload struct {
	ID        int      `json:"id"`
	Type      any      `json:"type"`
	Direction any      `json:"direction"`
	Speed     float64  `json:"speed"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Damage    *int     `json:"damage,omitempty"`
	ShooterID string   `json:"shooterId,omitempty"`
}

// LaserPayload describes one beam cell
type LaserPayload struct {
	ID             int    `json:"id"`
	Orientation    any    `json:"orientation"`
	X              *int   `json:"x,omitempty"`
	Y              *int   `json:"y,omitempty"`
	RemainingTicks *int   `json:"remainingTicks,omitempty"`
	Damage         *int   `json:"damage,omitempty"`
	ShooterID      string `json:"shooterId,omitempty"`
}

// MinePayload describes a mine
type MinePayload struct {
	ID             int    `json:"id"`
	ExplosionTicks *int   `json:"explosionRemainingTicks"`
	X              *int   `json:"x,omitempty"`
	Y              *int   `json:"y,omitempty"`
	LayerID        string `json:"layerId,omitempty"`
}

// ItemPayload describes an item on the map
type ItemPayload struct {
	Type any  `json:"type"`
	X    *int `json:"x,omitempty"`
	Y    *int `json:"y,omitempty"`
}

// ZonePayload describes a zone and its capture state
type ZonePayload struct {
	Index          string `json:"index"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Status         any    `json:"status"`
	Party          string `json:"party,omitempty"`
	CapturedBy     string `json:"capturedBy,omitempty"`
	RetakenBy      string `json:"retakenBy,omitempty"`
	RemainingTicks *int   `json:"remainingTicks,omitempty"`
}

// PlayerPayload is a scoreboard line
type PlayerPayload struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	Color      uint32 `json:"color"`
	Team       string `json:"team,omitempty"`
	Ping       int    `json:"ping"`
	Score      *int   `json:"score,omitempty"`
	Kills      *int   `json:"kills,omitempty"`
	RegenTicks *int   `json:"ticksToRegen,omitempty"`
}

// TeamPayload is a team scoreboard line
type TeamPayload struct {
	Name    string   `json:"name"`
	Color   uint32   `json:"color"`
	Score   int      `json:"score"`
	Players []string `json:"players"`
}

// PlayerMap is the redacted world sent to a player
type PlayerMap struct {
	Tiles      [][][]TileObject `json:"tiles"` // [x][y]
	Zones      []ZonePayload    `json:"zones"`
	Visibility []string         `json:"visibility"` // [x] of '0'/'1' per y
}

// SpectatorMap is the full world
type SpectatorMap struct {
	GridDimensions [2]int          `json:"gridDimensions"`
	Walls          []CellPayload   `json:"walls"`
	Zones          []ZonePayload   `json:"zones"`
	Tanks          []TankPayload   `json:"tanks"`
	Bullets        []BulletPayload `json:"bullets"`
	Lasers         []LaserPayload  `json:"lasers"`
	Mines          []MinePayload   `json:"mines"`
	Items          []ItemPayload   `json:"items"`
}

// PlayerGameState is the gameState payload for one player
type PlayerGameState struct {
	ID       string          `json:"id"`
	Tick     int             `json:"tick"`
	PlayerID string          `json:"playerId"`
	Players  []PlayerPayload `json:"players"`
	Teams    []TeamPayload   `json:"teams,omitempty"`
	Map      PlayerMap       `json:"map"`
}

// SpectatorGameState is the gameState payload for spectators
type SpectatorGameState struct {
	ID      string          `json:"id"`
	Tick    int             `json:"tick"`
	Players []PlayerPayload `json:"players"`
	Teams   []TeamPayload   `json:"teams,omitempty"`
	Map     SpectatorMap    `json:"map"`
}

// StateView is a read-only snapshot context used to build payloads
type StateView struct {
	ID      string
	Tick    int
	Grid    *Grid
	Players map[string]*Player
	Teams   []*Team
}

func intPtr(v int) *int { return &v }

// EffectiveVisibility returns the grid a player sees: their own, joined
// with every living teammate's in team mode.
func (v StateView) EffectiveVisibility(p *Player) [][]bool {
	out := newBoolGrid(v.Grid.Dim)
	if p.Visibility != nil {
		unionGrid(out, p.Visibility)
	}
	if p.Team == nil {
		return out
	}
	for _, mate := range p.Team.Players {
		if mate == p || mate.Visibility == nil {
			continue
		}
		if t := v.Grid.TankOf(mate.ID); t != nil && !t.IsDead() {
			unionGrid(out, mate.Visibility)
		}
	}
	return out
}

func (v StateView) canSeePrivate(viewer *Player, owner string) bool {
	if viewer == nil || viewer.ID == owner {
		return true
	}
	return viewer.IsTeammate(v.Players[owner])
}

func (v StateView) tankPayload(t *Tank, viewer *Player, f EnumFormat, withPos bool) TankPayload {
	tp := TankPayload{
		OwnerID:   t.OwnerID,
		Type:      f.encode(int(t.Kind), tankKindNames),
		Direction: f.encode(int(t.Direction), directionNames[:]),
		Turret:    TurretPayload{Direction: f.encode(int(t.TurretDirection), directionNames[:])},
	}
	if withPos {
		tp.X, tp.Y = intPtr(t.X), intPtr(t.Y)
	}
	if !v.canSeePrivate(viewer, t.OwnerID) {
		return tp
	}
	tp.Health = intPtr(t.Health)
	if t.SecondaryItem != nil {
		tp.SecondaryItem = f.encode(int(*t.SecondaryItem), itemTypeNames)
	}
	types := make([]AbilityType, 0, len(t.Abilities))
	for typ := range t.Abilities {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, typ := range types {
		ab := t.Abilities[typ]
		tp.Abilities = append(tp.Abilities, AbilityPayload{
			Type:           f.encode(int(typ), abilityNames),
			RemainingTicks: ab.Remaining,
			Progress:       ab.Progress(),
		})
	}
	stun := 0
	for _, ticks := range t.StunTicks() {
		stun = max(stun, ticks)
	}
	if stun > 0 {
		tp.StunTicks = intPtr(stun)
	}
	return tp
}

func bulletPayload(b *Bullet, f EnumFormat, full bool) BulletPayload {
	bp := BulletPayload{
		ID:        b.ID,
		Type:      f.encode(int(b.Type), bulletTypeNames),
		Direction: f.encode(int(b.Direction), directionNames[:]),
		Speed:     b.Speed,
	}
	if full {
		x, y := b.FX, b.FY
		bp.X, bp.Y = &x, &y
		bp.Damage = intPtr(b.Damage)
		bp.ShooterID = b.ShooterID
	}
	return bp
}

var laserOrientationNames = []string{"horizontal", "vertical"}

func laserPayload(l *Laser, f EnumFormat, full bool) LaserPayload {
	lp := LaserPayload{ID: l.ID, Orientation: f.encode(int(l.Orientation), laserOrientationNames)}
	if full {
		lp.X, lp.Y = intPtr(l.X), intPtr(l.Y)
		lp.RemainingTicks = intPtr(l.RemainingTicks)
		lp.Damage = intPtr(l.Damage)
		lp.ShooterID = l.ShooterID
	}
	return lp
}

func minePayload(m *Mine, full bool) MinePayload {
	mp := MinePayload{ID: m.ID, ExplosionTicks: m.ExplosionTicks}
	if full {
		mp.X, mp.Y = intPtr(m.X), intPtr(m.Y)
		mp.LayerID = m.LayerID
	}
	return mp
}

func zonePayloads(zones []*Zone, f EnumFormat) []ZonePayload {
	out := make([]ZonePayload, 0, len(zones))
	for _, z := range zones {
		zp := ZonePayload{
			Index:      string(z.Index),
			X:          z.X,
			Y:          z.Y,
			Width:      z.Width,
			Height:     z.Height,
			Status:     f.encode(int(z.State.Status), zoneStatusNames),
			Party:      z.State.Party,
			CapturedBy: z.State.CapturedBy,
			RetakenBy:  z.State.RetakenBy,
		}
		if z.State.Status == ZoneBeingCaptured || z.State.Status == ZoneBeingRetaken {
			zp.RemainingTicks = intPtr(z.State.RemainingTicks)
		}
		out = append(out, zp)
	}
	return out
}

func (v StateView) playerPayloads(viewer *Player) []PlayerPayload {
	ids := make([]string, 0, len(v.Players))
	for id := range v.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]PlayerPayload, 0, len(ids))
	for _, id := range ids {
		p := v.Players[id]
		pp := PlayerPayload{ID: p.ID, Nickname: p.Nickname, Color: p.Color, Ping: p.Ping}
		if p.Team != nil {
			pp.Team = p.Team.Name
		} else {
			pp.Score, pp.Kills = intPtr(p.Score), intPtr(p.Kills)
		}
		if v.canSeePrivate(viewer, p.ID) {
			pp.RegenTicks = p.RegenTicks
			pp.Kills = intPtr(p.Kills)
		}
		out = append(out, pp)
	}
	return out
}

func (v StateView) teamPayloads() []TeamPayload {
	if len(v.Teams) == 0 {
		return nil
	}
	out := make([]TeamPayload, 0, len(v.Teams))
	for _, t := range v.Teams {
		tp := TeamPayload{Name: t.Name, Color: t.Color, Score: t.Score, Players: []string{}}
		for _, p := range t.Players {
			tp.Players = append(tp.Players, p.ID)
		}
		out = append(out, tp)
	}
	return out
}

// PlayerState builds the redacted state for one player
func (v StateView) PlayerState(viewer *Player, f EnumFormat) PlayerGameState {
	g := v.Grid
	vis := v.EffectiveVisibility(viewer)
	visible := func(x, y int) bool {
		return g.InBounds(x, y) && vis[x][y]
	}

	tiles := make([][][]TileObject, g.Dim)
	for x := range tiles {
		tiles[x] = make([][]TileObject, g.Dim)
		for y := range tiles[x] {
			tiles[x][y] = []TileObject{}
			if g.Walls[x][y] {
				tiles[x][y] = append(tiles[x][y], TileObject{Type: TileWall})
			}
		}
	}
	add := func(x, y int, typ string, payload any) {
		tiles[x][y] = append(tiles[x][y], TileObject{Type: typ, Payload: payload})
	}

	for _, t := range g.Tanks {
		if !t.IsDead() && visible(t.X, t.Y) {
			add(t.X, t.Y, TileTank, v.tankPayload(t, viewer, f, false))
		}
	}
	for _, b := range g.Bullets {
		if x, y := b.Cell(); visible(x, y) {
			add(x, y, TileBullet, bulletPayload(b, f, false))
		}
	}
	for _, l := range g.Lasers {
		if visible(l.X, l.Y) {
			add(l.X, l.Y, TileLaser, laserPayload(l, f, false))
		}
	}
	for _, m := range g.Mines {
		if visible(m.X, m.Y) {
			add(m.X, m.Y, TileMine, minePayload(m, false))
		}
	}
	for _, it := range g.Items {
		if !visible(it.X, it.Y) {
			continue
		}
		typ := it.Type
		if g.TankAt(it.X, it.Y) != nil || g.MineAt(it.X, it.Y) != nil {
			typ = ItemUnknown
		}
		add(it.X, it.Y, TileItem, ItemPayload{Type: f.encode(int(typ), itemTypeNames)})
	}

	visRows := make([]string, g.Dim)
	var sb strings.Builder
	for x := 0; x < g.Dim; x++ {
		sb.Reset()
		for y := 0; y < g.Dim; y++ {
			if vis[x][y] {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		visRows[x] = sb.String()
	}

	return PlayerGameState{
		ID:       v.ID,
		Tick:     v.Tick,
		PlayerID: viewer.ID,
		Players:  v.playerPayloads(viewer),
		Teams:    v.teamPayloads(),
		Map: PlayerMap{
			Tiles:      tiles,
			Zones:      zonePayloads(g.Zones, f),
			Visibility: visRows,
		},
	}
}

// SpectatorState builds the full, unredacted state
func (v StateView) SpectatorState(f EnumFormat) SpectatorGameState {
	g := v.Grid
	m := SpectatorMap{
		GridDimensions: [2]int{g.Dim, g.Dim},
		Walls:          []CellPayload{},
		Zones:          zonePayloads(g.Zones, f),
		Tanks:          make([]TankPayload, 0, len(g.Tanks)),
		Bullets:        make([]BulletPayload, 0, len(g.Bullets)),
		Lasers:         make([]LaserPayload, 0, len(g.Lasers)),
		Mines:          make([]MinePayload, 0, len(g.Mines)),
		Items:          make([]ItemPayload, 0, len(g.Items)),
	}
	for x := 0; x < g.Dim; x++ {
		for y := 0; y < g.Dim; y++ {
			if g.Walls[x][y] {
				m.Walls = append(m.Walls, CellPayload{X: x, Y: y})
			}
		}
	}
	for _, t := range g.Tanks {
		m.Tanks = append(m.Tanks, v.tankPayload(t, nil, f, true))
	}
	for _, b := range g.Bullets {
		m.Bullets = append(m.Bullets, bulletPayload(b, f, true))
	}
	for _, l := range g.Lasers {
		m.Lasers = append(m.Lasers, laserPayload(l, f, true))
	}
	for _, mi := range g.Mines {
		m.Mines = append(m.Mines, minePayload(mi, true))
	}
	for _, it := range g.Items {
		m.Items = append(m.Items, ItemPayload{
			Type: f.encode(int(it.Type), itemTypeNames),
			X:    intPtr(it.X),
			Y:    intPtr(it.Y),
		})
	}
	return SpectatorGameState{
		ID:      v.ID,
		Tick:    v.Tick,
		Players: v.playerPayloads(nil),
		Teams:   v.teamPayloads(),
		Map:     m,
	}
}
