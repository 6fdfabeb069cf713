package main

import (
	"math/rand"
	"slices"
	"sort"
)

// GridEvents receives notable simulation events; may be nil
type GridEvents interface {
	TankKilled(killerID, victimID string)
	ZoneCaptured(zone rune, party string)
}

// GridConfig holds the parameters fixed at map generation
type GridConfig struct {
	Dim        int
	Seed       int64
	Mode       GameMode
	ZoneCount  int
	ViewRadius int
	Zone       ZoneConfig
}

// Grid is the world: static walls and zones plus every live entity.
// It is not safe for concurrent use; the owning Game serialises access.
type Grid struct {
	Dim     int
	Seed    int64
	Mode    GameMode
	Walls   [][]bool // [x][y]
	Zones   []*Zone
	Tanks   []*Tank
	Bullets []*Bullet
	Lasers  []*Laser
	Mines   []*Mine
	Items   []*Item

	rng           *rand.Rand
	cfg           GridConfig
	fog           *VisibilityManager
	index         *SpatialGrid
	queuedBullets *Queue[*Bullet]
	nextID        int
	players       map[string]*Player
	capturing     map[string]bool
	events        GridEvents
}

// NewGrid creates an empty grid. players is the owner lookup table
// shared with the Game.
func NewGrid(cfg GridConfig, players map[string]*Player) *Grid {
	if cfg.Zone.CaptureTicks <= 0 {
		cfg.Zone = DefaultZoneConfig()
	}
	if players == nil {
		players = make(map[string]*Player)
	}
	return &Grid{
		Dim:           cfg.Dim,
		Seed:          cfg.Seed,
		Mode:          cfg.Mode,
		Walls:         newBoolGrid(cfg.Dim),
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		cfg:           cfg,
		index:         NewSpatialGrid(cfg.Dim),
		queuedBullets: NewQueue[*Bullet](),
		players:       players,
		capturing:     make(map[string]bool),
	}
}

// SetEvents installs the event sink
func (g *Grid) SetEvents(e GridEvents) {
	g.events = e
}

// GenerateMap lays out zones and walls and returns generation warnings
func (g *Grid) GenerateMap() []string {
	gen := NewMapGenerator(g.Dim, g.cfg.ZoneCount, g.rng)
	g.Zones = gen.GenerateZones()
	g.SetWalls(gen.GenerateWalls(g.Zones))
	return gen.Warnings
}

// SetWalls replaces the wall matrix
func (g *Grid) SetWalls(walls [][]bool) {
	g.Walls = walls
	g.fog = NewVisibilityManager(walls, g.cfg.ViewRadius)
}

func (g *Grid) newID() int {
	g.nextID++
	return g.nextID
}

// InBounds reports whether the cell is on the grid
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Dim && y < g.Dim
}

// IsWall reports whether the cell holds a wall
func (g *Grid) IsWall(x, y int) bool {
	return g.InBounds(x, y) && g.Walls[x][y]
}

// TankAt returns the living tank in a cell
func (g *Grid) TankAt(x, y int) *Tank {
	for _, t := range g.Tanks {
		if !t.IsDead() && t.X == x && t.Y == y {
			return t
		}
	}
	return nil
}

// MineAt returns the first mine in a cell
func (g *Grid) MineAt(x, y int) *Mine {
	for _, m := range g.Mines {
		if m.X == x && m.Y == y {
			return m
		}
	}
	return nil
}

// TankOf returns the tank owned by the player
func (g *Grid) TankOf(ownerID string) *Tank {
	for _, t := range g.Tanks {
		if t.OwnerID == ownerID {
			return t
		}
	}
	return nil
}

// ZoneAt returns the zone containing the cell
func (g *Grid) ZoneAt(x, y int) *Zone {
	for _, z := range g.Zones {
		if z.Contains(x, y) {
			return z
		}
	}
	return nil
}

// reindex rebuilds the cell occupancy index from the live entities
func (g *Grid) reindex() *SpatialGrid {
	g.index.Clear()
	for i, t := range g.Tanks {
		if !t.IsDead() {
			g.index.Insert(t.X, t.Y, EntityRef{Kind: RefTank, Idx: i})
		}
	}
	for i, b := range g.Bullets {
		x, y := b.Cell()
		g.index.Insert(x, y, EntityRef{Kind: RefBullet, Idx: i})
	}
	for i, l := range g.Lasers {
		g.index.Insert(l.X, l.Y, EntityRef{Kind: RefLaser, Idx: i})
	}
	for i, m := range g.Mines {
		g.index.Insert(m.X, m.Y, EntityRef{Kind: RefMine, Idx: i})
	}
	for i, it := range g.Items {
		g.index.Insert(it.X, it.Y, EntityRef{Kind: RefItem, Idx: i})
	}
	return g.index
}

// isFree reports a cell with no wall and no entity of any kind
func (g *Grid) isFree(idx *SpatialGrid, x, y int) bool {
	return g.InBounds(x, y) && !g.Walls[x][y] && !idx.Occupied(x, y)
}

// IsVisibleByTank reports whether any tank currently sees the cell
func (g *Grid) IsVisibleByTank(x, y int) bool {
	for _, t := range g.Tanks {
		p := g.players[t.OwnerID]
		if p != nil && p.Visibility != nil && p.Visibility[x][y] {
			return true
		}
	}
	return false
}

// SpawnCell picks a free cell outside zones, preferring cells no tank
// can see. Returns (-1, -1) when the grid is full.
func (g *Grid) SpawnCell() (int, int) {
	idx := g.reindex()
	limit := g.Dim * g.Dim * 4
	for attempt := 0; attempt < limit; attempt++ {
		x, y := g.rng.Intn(g.Dim), g.rng.Intn(g.Dim)
		if !g.isFree(idx, x, y) {
			continue
		}
		if g.ZoneAt(x, y) != nil && attempt < limit/2 {
			continue
		}
		if g.IsVisibleByTank(x, y) && attempt < limit/4 {
			continue
		}
		return x, y
	}
	for x := 0; x < g.Dim; x++ {
		for y := 0; y < g.Dim; y++ {
			if g.isFree(idx, x, y) {
				return x, y
			}
		}
	}
	return -1, -1
}

// AddTank spawns a tank for the player
func (g *Grid) AddTank(p *Player, kind TankKind) *Tank {
	x, y := g.SpawnCell()
	t := NewTank(p.ID, kind, x, y, Direction(g.rng.Intn(4)), Direction(g.rng.Intn(4)))
	if x < 0 {
		// no free cell: wait for regeneration like a destroyed tank
		t.Health = 0
	}
	g.Tanks = append(g.Tanks, t)
	g.players[p.ID] = p
	return t
}

// RemoveTank drops a player's tank and everything they own on the map
func (g *Grid) RemoveTank(ownerID string) *Tank {
	t := g.TankOf(ownerID)
	if t != nil {
		g.Tanks = slices.DeleteFunc(g.Tanks, func(o *Tank) bool { return o == t })
	}
	if p := g.players[ownerID]; p != nil && !g.partyHasOthers(p) {
		for _, z := range g.Zones {
			z.HandlePartyRemoved(p.Party())
		}
	}
	g.Bullets = slices.DeleteFunc(g.Bullets, func(b *Bullet) bool { return b.ShooterID == ownerID })
	g.Lasers = slices.DeleteFunc(g.Lasers, func(l *Laser) bool { return l.ShooterID == ownerID })
	g.Mines = slices.DeleteFunc(g.Mines, func(m *Mine) bool { return m.LayerID == ownerID })
	return t
}

func (g *Grid) partyHasOthers(p *Player) bool {
	for _, t := range g.Tanks {
		if o := g.players[t.OwnerID]; o != nil && o != p && o.Party() == p.Party() {
			return true
		}
	}
	return false
}

// TryMoveTank moves a tank one cell if the target is open
func (g *Grid) TryMoveTank(t *Tank, m MovementDirection) bool {
	if t.IsDead() || t.IsBlockedByStun(StunMovement) {
		return false
	}
	dx, dy := t.Direction.Normal()
	step := 1
	if m == MovementBackward {
		step = -1
	}
	x, y := t.X+dx*step, t.Y+dy*step
	if !g.InBounds(x, y) || g.Walls[x][y] || g.TankAt(x, y) != nil {
		return false
	}
	t.SetPosition(x, y)
	return true
}

// MarkCapturing records that a tank asked to capture its zone this tick
func (g *Grid) MarkCapturing(t *Tank) {
	g.capturing[t.OwnerID] = true
}

// BeginTick clears per-tick flags before actions are applied
func (g *Grid) BeginTick() {
	clear(g.capturing)
	for _, p := range g.players {
		p.IsUsingRadar = false
	}
}

// Tick advances every subsystem once, in a fixed order
func (g *Grid) Tick(dt float64) {
	g.UpdateBullets(dt)
	g.UpdateLasers()
	g.UpdateMines()
	g.UpdateAbilities()
	g.UpdateStunEffects()
	g.UpdateZones()
	g.UpdatePlayersRegeneration()
	g.UpdateVisibility()
	if g.Mode == ModeClassic {
		g.PickUpItems()
		g.SpawnItem()
	}
}

// UpdateBullets moves bullets, resolves collisions along their swept
// paths, then admits queued bullets and checks them in their spawn cell.
func (g *Grid) UpdateBullets(dt float64) {
	trajectories := make(map[*Bullet]Trajectory, len(g.Bullets))
	for _, b := range g.Bullets {
		px, py := b.Cell()
		cells := b.Update(dt)
		trajectories[b] = Trajectory{From: Cell{px, py}, Cells: cells}
	}

	destroyed := make(map[*Bullet]bool)
	for _, b := range slices.Clone(g.Bullets) {
		if destroyed[b] {
			continue
		}
		if c := CheckBulletCollision(b, g, trajectories); c != nil {
			for _, d := range g.handleBulletCollision(b, c, trajectories) {
				destroyed[d] = true
			}
		}
	}

	fresh := g.queuedBullets.GetAndEmpty()
	for _, b := range fresh {
		g.Bullets = append(g.Bullets, b)
		x, y := b.Cell()
		trajectories[b] = Trajectory{From: Cell{x, y}, Cells: []Cell{{x, y}}}
	}
	for _, b := range fresh {
		if destroyed[b] {
			continue
		}
		if c := CheckBulletCollision(b, g, trajectories); c != nil {
			for _, d := range g.handleBulletCollision(b, c, trajectories) {
				destroyed[d] = true
			}
		}
	}
}

func (g *Grid) removeBullet(b *Bullet) {
	g.Bullets = slices.DeleteFunc(g.Bullets, func(o *Bullet) bool { return o == b })
}

func (g *Grid) handleBulletCollision(b *Bullet, c *Collision, trajectories map[*Bullet]Trajectory) []*Bullet {
	g.removeBullet(b)
	delete(trajectories, b)
	destroyed := []*Bullet{b}

	switch c.Kind {
	case CollisionTank:
		g.bulletHitsTank(b, c.Tank)
	case CollisionMine:
		c.Mine.Explode()
	case CollisionBullet:
		o := c.Bullet
		g.removeBullet(o)
		delete(trajectories, o)
		destroyed = append(destroyed, o)
		if (b.Type == BulletDouble) != (o.Type == BulletDouble) {
			src := b
			if o.Type == BulletDouble {
				src = o
			}
			g.Bullets = append(g.Bullets, src.Downgrade(g.newID()))
		}
	}
	return destroyed
}

func (g *Grid) bulletHitsTank(b *Bullet, t *Tank) {
	switch b.Type {
	case BulletHealing:
		if !t.IsDead() {
			t.Heal(b.Damage)
		}
	case BulletStun:
		t.Stun(StunFromBullet, StunBulletTicks)
	default:
		taken := g.ApplyDamage(t, b.Damage, b.ShooterID)
		if p := g.players[b.ShooterID]; p != nil {
			p.AddScore(taken / 2)
		}
	}
}

// UpdateLasers ages beams and damages whatever stands in them
func (g *Grid) UpdateLasers() {
	for _, l := range slices.Clone(g.Lasers) {
		l.RemainingTicks--
		if l.RemainingTicks <= 0 {
			g.Lasers = slices.DeleteFunc(g.Lasers, func(o *Laser) bool { return o == l })
		}
		if t := g.TankAt(l.X, l.Y); t != nil {
			taken := g.ApplyDamage(t, l.Damage, l.ShooterID)
			if p := g.players[l.ShooterID]; p != nil {
				p.AddScore(taken)
			}
		}
		for _, m := range g.Mines {
			if m.X == l.X && m.Y == l.Y {
				m.Explode()
			}
		}
	}
}

// UpdateMines triggers, ages and prunes mines, keeping the newest mine
// when several share a cell.
func (g *Grid) UpdateMines() {
	kept := g.Mines[:0]
	for _, m := range g.Mines {
		if !g.InBounds(m.X, m.Y) || g.Walls[m.X][m.Y] {
			continue
		}
		m.Update()
		if m.IsFullyExploded() {
			continue
		}
		if !m.IsExploded() {
			if t := g.TankAt(m.X, m.Y); t != nil {
				m.Explode()
				g.ApplyDamage(t, m.Damage, m.LayerID)
			}
		}
		kept = append(kept, m)
	}
	clear(g.Mines[len(kept):])
	g.Mines = kept

	newest := make(map[Cell]*Mine, len(g.Mines))
	for _, m := range g.Mines {
		newest[Cell{m.X, m.Y}] = m
	}
	g.Mines = slices.DeleteFunc(g.Mines, func(m *Mine) bool { return newest[Cell{m.X, m.Y}] != m })
}

// UpdateAbilities ticks every ability cooldown
func (g *Grid) UpdateAbilities() {
	for _, t := range g.Tanks {
		t.Abilities.Tick()
	}
}

// UpdateStunEffects ticks every stun
func (g *Grid) UpdateStunEffects() {
	for _, t := range g.Tanks {
		t.UpdateStunEffects()
	}
}

// UpdateZones feeds each zone the parties capturing inside it and pays
// out score for held zones.
func (g *Grid) UpdateZones() {
	for _, z := range g.Zones {
		seen := make(map[string]bool)
		var parties []string
		for _, t := range g.Tanks {
			if t.IsDead() || !z.Contains(t.X, t.Y) {
				continue
			}
			if g.Mode == ModeTeam && !g.capturing[t.OwnerID] {
				continue
			}
			p := g.players[t.OwnerID]
			if p == nil || seen[p.Party()] {
				continue
			}
			seen[p.Party()] = true
			parties = append(parties, p.Party())
		}
		sort.Strings(parties)

		before := z.State.Status
		z.Update(parties, g.cfg.Zone)
		if z.State.Status == ZoneCaptured {
			if before != ZoneCaptured && g.events != nil {
				g.events.ZoneCaptured(z.Index, z.State.Party)
			}
			g.creditParty(z.State.Party, 1)
		}
	}
}

func (g *Grid) creditParty(party string, points int) {
	for _, p := range g.players {
		if p.Party() != party {
			continue
		}
		p.AddScore(points)
		return
	}
}

// UpdatePlayersRegeneration respawns tanks whose timer elapsed
func (g *Grid) UpdatePlayersRegeneration() {
	for _, t := range g.Tanks {
		if !t.IsDead() {
			continue
		}
		p := g.players[t.OwnerID]
		if p == nil {
			continue
		}
		if p.RegenTicks == nil {
			p.StartRegeneration()
		}
		if p.UpdateRegeneration() {
			x, y := g.SpawnCell()
			if x < 0 {
				retry := 1
				p.RegenTicks = &retry
				continue
			}
			t.Respawn(x, y)
		}
	}
}

// UpdateVisibility recomputes each player's own visibility grid
func (g *Grid) UpdateVisibility() {
	if g.fog == nil {
		g.fog = NewVisibilityManager(g.Walls, g.cfg.ViewRadius)
	}
	for _, t := range g.Tanks {
		p := g.players[t.OwnerID]
		if p == nil {
			continue
		}
		switch {
		case t.IsDead():
			p.Visibility = newBoolGrid(g.Dim)
		case p.IsUsingRadar:
			p.Visibility = fullGrid(g.Dim)
		default:
			p.Visibility = g.fog.Compute(t.X, t.Y)
		}
	}
}

// PickUpItems hands items to empty-handed tanks standing on them
func (g *Grid) PickUpItems() {
	for _, t := range g.Tanks {
		if t.IsDead() || t.SecondaryItem != nil {
			continue
		}
		for i, it := range g.Items {
			if it.X != t.X || it.Y != t.Y {
				continue
			}
			typ := it.Type
			t.SecondaryItem = &typ
			g.Items = slices.Delete(g.Items, i, i+1)
			break
		}
	}
}

// SpawnItem may place one weighted-random item on a hidden free cell
func (g *Grid) SpawnItem() *Item {
	if len(g.Items) >= 2*g.Dim {
		return nil
	}
	typ, ok := pickItemType(g.rng.Float64() * itemTotalWeight())
	if !ok {
		return nil
	}
	idx := g.reindex()
	for attempt := 0; attempt < ItemSpawnAttempts; attempt++ {
		x, y := g.rng.Intn(g.Dim), g.rng.Intn(g.Dim)
		if !g.isFree(idx, x, y) || g.IsVisibleByTank(x, y) || g.ZoneAt(x, y) != nil {
			continue
		}
		it := &Item{X: x, Y: y, Type: typ}
		g.Items = append(g.Items, it)
		return it
	}
	return nil
}

// dropCell finds the nearest open cell without an item, breadth first
func (g *Grid) dropCell(x, y int) (Cell, bool) {
	if !g.InBounds(x, y) {
		return Cell{}, false
	}
	visited := newBoolGrid(g.Dim)
	queue := []Cell{{x, y}}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if !g.InBounds(c.X, c.Y) || visited[c.X][c.Y] || g.Walls[c.X][c.Y] {
			continue
		}
		visited[c.X][c.Y] = true
		if !slices.ContainsFunc(g.Items, func(it *Item) bool { return it.X == c.X && it.Y == c.Y }) {
			return c, true
		}
		for d := DirectionUp; d <= DirectionLeft; d++ {
			dx, dy := d.Normal()
			queue = append(queue, Cell{c.X + dx, c.Y + dy})
		}
	}
	return Cell{}, false
}
