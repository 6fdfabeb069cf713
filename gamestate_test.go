package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findTile(tiles [][][]TileObject, x, y int, typ string) (TileObject, bool) {
	for _, obj := range tiles[x][y] {
		if obj.Type == typ {
			return obj, true
		}
	}
	return TileObject{}, false
}

// walledGrid has a full wall column at x=2 splitting a 5x5 map
func walledGrid(mode GameMode, players ...*Player) *Grid {
	g := newTestGrid(5, mode, players...)
	for y := 0; y < 5; y++ {
		g.Walls[2][y] = true
	}
	g.SetWalls(g.Walls)
	return g
}

func TestPlayerStateHidesEntitiesOutOfSight(t *testing.T) {
	a := NewPlayer("a", "A", 0)
	b := NewPlayer("b", "B", 0)
	g := walledGrid(ModeClassic, a, b)
	placeTank(g, a, TankStandard, 0, 2, DirectionUp)
	placeTank(g, b, TankStandard, 4, 2, DirectionUp)
	g.UpdateVisibility()

	view := StateView{ID: "s1", Tick: 3, Grid: g, Players: g.players}
	ps := view.PlayerState(a, EnumString)
	assert.Equal(t, "s1", ps.ID)
	assert.Equal(t, "a", ps.PlayerID)

	own, ok := findTile(ps.Map.Tiles, 0, 2, TileTank)
	require.True(t, ok)
	tp := own.Payload.(TankPayload)
	require.NotNil(t, tp.Health)
	assert.Equal(t, TankMaxHealth, *tp.Health)
	assert.Nil(t, tp.X, "positions are implied by the tile")
	assert.NotEmpty(t, tp.Abilities)

	_, ok = findTile(ps.Map.Tiles, 4, 2, TileTank)
	assert.False(t, ok, "enemy behind the wall is hidden")
	_, ok = findTile(ps.Map.Tiles, 2, 4, TileWall)
	assert.True(t, ok, "walls are always sent")

	require.Len(t, ps.Map.Visibility, 5)
	assert.Equal(t, byte('1'), ps.Map.Visibility[1][2])
	assert.Equal(t, byte('0'), ps.Map.Visibility[4][2])
}

func TestPlayerStateRedactsEnemies(t *testing.T) {
	a := NewPlayer("a", "A", 0)
	b := NewPlayer("b", "B", 0)
	g := newTestGrid(5, ModeClassic, a, b)
	placeTank(g, a, TankStandard, 0, 2, DirectionUp)
	placeTank(g, b, TankStandard, 4, 2, DirectionUp)
	g.Bullets = []*Bullet{NewBullet(1, BulletBasic, 3, 3, DirectionLeft, "b")}
	g.Mines = []*Mine{NewMine(2, 1, 1, "b")}
	g.UpdateVisibility()

	ps := StateView{ID: "s1", Grid: g, Players: g.players}.PlayerState(a, EnumInt)

	enemy, ok := findTile(ps.Map.Tiles, 4, 2, TileTank)
	require.True(t, ok)
	ep := enemy.Payload.(TankPayload)
	assert.Nil(t, ep.Health)
	assert.Empty(t, ep.Abilities)
	assert.Equal(t, "b", ep.OwnerID)
	assert.Equal(t, int(DirectionUp), ep.Direction)

	bullet, ok := findTile(ps.Map.Tiles, 3, 3, TileBullet)
	require.True(t, ok)
	bp := bullet.Payload.(BulletPayload)
	assert.Empty(t, bp.ShooterID)
	assert.Nil(t, bp.Damage)
	assert.Nil(t, bp.X)

	mine, ok := findTile(ps.Map.Tiles, 1, 1, TileMine)
	require.True(t, ok)
	assert.Empty(t, mine.Payload.(MinePayload).LayerID)
}

func TestPlayerStateCoveredItemsAreUnknown(t *testing.T) {
	a := NewPlayer("a", "A", 0)
	g := newTestGrid(5, ModeClassic, a)
	placeTank(g, a, TankStandard, 0, 2, DirectionUp)
	g.Items = []*Item{{X: 0, Y: 2, Type: ItemLaser}, {X: 1, Y: 2, Type: ItemLaser}}
	g.UpdateVisibility()

	ps := StateView{Grid: g, Players: g.players}.PlayerState(a, EnumString)
	covered, ok := findTile(ps.Map.Tiles, 0, 2, TileItem)
	require.True(t, ok)
	assert.Equal(t, "unknown", covered.Payload.(ItemPayload).Type)
	open, ok := findTile(ps.Map.Tiles, 1, 2, TileItem)
	require.True(t, ok)
	assert.Equal(t, "laser", open.Payload.(ItemPayload).Type)
}

func TestTeammatesShareVision(t *testing.T) {
	red := &Team{Name: "red"}
	a := NewPlayer("a", "A", 0)
	c := NewPlayer("c", "C", 0)
	a.Team, c.Team = red, red
	red.Players = []*Player{a, c}
	b := NewPlayer("b", "B", 0)
	b.Team = &Team{Name: "blue", Players: []*Player{b}}

	g := walledGrid(ModeTeam, a, b, c)
	placeTank(g, a, TankLight, 0, 0, DirectionUp)
	placeTank(g, b, TankLight, 4, 0, DirectionUp)
	mate := placeTank(g, c, TankHeavy, 4, 4, DirectionUp)
	g.UpdateVisibility()

	view := StateView{Grid: g, Players: g.players, Teams: []*Team{red, b.Team}}
	ps := view.PlayerState(a, EnumInt)

	enemy, ok := findTile(ps.Map.Tiles, 4, 0, TileTank)
	require.True(t, ok, "a teammate's sight is shared")
	assert.Nil(t, enemy.Payload.(TankPayload).Health)
	friend, ok := findTile(ps.Map.Tiles, 4, 4, TileTank)
	require.True(t, ok)
	assert.NotNil(t, friend.Payload.(TankPayload).Health, "teammates see each other's details")
	assert.Len(t, ps.Teams, 2)

	mate.TakeDamage(TankMaxHealth)
	ps = view.PlayerState(a, EnumInt)
	_, ok = findTile(ps.Map.Tiles, 4, 0, TileTank)
	assert.False(t, ok, "dead teammates share nothing")
}

func TestSpectatorStateIsComplete(t *testing.T) {
	a := NewPlayer("a", "A", 0)
	b := NewPlayer("b", "B", 0)
	g := walledGrid(ModeClassic, a, b)
	placeTank(g, a, TankStandard, 0, 2, DirectionUp)
	dead := placeTank(g, b, TankStandard, 4, 2, DirectionUp)
	dead.TakeDamage(TankMaxHealth)
	g.Bullets = []*Bullet{NewBullet(1, BulletDouble, 3, 3, DirectionLeft, "b")}
	g.Lasers = []*Laser{{ID: 2, X: 1, Y: 1, RemainingTicks: 4, Damage: LaserDamage, ShooterID: "a"}}
	g.Items = []*Item{{X: 4, Y: 4, Type: ItemMine}}

	ss := StateView{ID: "s9", Tick: 7, Grid: g, Players: g.players}.SpectatorState(EnumString)
	assert.Equal(t, 7, ss.Tick)
	assert.Len(t, ss.Map.Walls, 5)
	require.Len(t, ss.Map.Tanks, 2)
	assert.Equal(t, -1, *ss.Map.Tanks[1].X)
	assert.Equal(t, 0, *ss.Map.Tanks[1].Health)

	require.Len(t, ss.Map.Bullets, 1)
	assert.Equal(t, "b", ss.Map.Bullets[0].ShooterID)
	assert.Equal(t, DoubleBulletDamage, *ss.Map.Bullets[0].Damage)
	assert.Equal(t, "double", ss.Map.Bullets[0].Type)

	require.Len(t, ss.Map.Lasers, 1)
	assert.Equal(t, 4, *ss.Map.Lasers[0].RemainingTicks)
	require.Len(t, ss.Map.Items, 1)
	assert.Equal(t, "mine", ss.Map.Items[0].Type)
	assert.Len(t, ss.Players, 2)
}

func TestSpectatorStateSurvivesJSON(t *testing.T) {
	a := NewPlayer("a", "A", 0)
	b := NewPlayer("b", "B", 0)
	g := walledGrid(ModeClassic, a, b)
	placeTank(g, a, TankStandard, 0, 2, DirectionUp)
	placeTank(g, b, TankStandard, 4, 2, DirectionUp)
	g.Bullets = []*Bullet{NewBullet(5, BulletBasic, 0, 4, DirectionRight, "a")}
	g.Lasers = []*Laser{{ID: 6, X: 1, Y: 1, RemainingTicks: 3, Damage: LaserDamage, ShooterID: "b"}}
	g.Mines = []*Mine{NewMine(7, 1, 3, "a")}
	g.UpdateVisibility()

	ss := StateView{ID: "s1", Tick: 2, Grid: g, Players: g.players}.SpectatorState(EnumString)
	data, err := json.Marshal(ss)
	require.NoError(t, err)
	var decoded SpectatorGameState
	require.NoError(t, json.Unmarshal(data, &decoded))
	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))

	require.Len(t, decoded.Map.Tanks, len(g.Tanks))
	for i, tk := range g.Tanks {
		assert.Equal(t, tk.OwnerID, decoded.Map.Tanks[i].OwnerID)
		assert.Equal(t, tk.X, *decoded.Map.Tanks[i].X)
		assert.Equal(t, tk.Y, *decoded.Map.Tanks[i].Y)
	}
	require.Len(t, decoded.Map.Bullets, 1)
	assert.Equal(t, 5, decoded.Map.Bullets[0].ID)
	assert.Equal(t, "a", decoded.Map.Bullets[0].ShooterID)
	require.Len(t, decoded.Map.Lasers, 1)
	assert.Equal(t, 6, decoded.Map.Lasers[0].ID)
	assert.Equal(t, "b", decoded.Map.Lasers[0].ShooterID)
	require.Len(t, decoded.Map.Mines, 1)
	assert.Equal(t, 7, decoded.Map.Mines[0].ID)
	assert.Equal(t, "a", decoded.Map.Mines[0].LayerID)
}

func TestPlayerStateIsSubsetOfSpectatorState(t *testing.T) {
	a := NewPlayer("a", "A", 0)
	b := NewPlayer("b", "B", 0)
	g := walledGrid(ModeClassic, a, b)
	placeTank(g, a, TankStandard, 0, 2, DirectionUp)
	placeTank(g, b, TankStandard, 4, 2, DirectionUp)
	g.Bullets = []*Bullet{
		NewBullet(5, BulletBasic, 0, 4, DirectionRight, "a"),
		NewBullet(8, BulletBasic, 3, 0, DirectionUp, "b"),
	}
	g.Lasers = []*Laser{{ID: 6, X: 1, Y: 1, RemainingTicks: 3, Damage: LaserDamage, ShooterID: "b"}}
	g.Mines = []*Mine{NewMine(7, 1, 3, "a"), NewMine(9, 4, 4, "b")}
	g.UpdateVisibility()

	view := StateView{ID: "s1", Tick: 2, Grid: g, Players: g.players}
	ss := view.SpectatorState(EnumString)
	tanks := make(map[string]Cell)
	for _, tp := range ss.Map.Tanks {
		tanks[tp.OwnerID] = Cell{*tp.X, *tp.Y}
	}
	bullets := make(map[int]bool)
	for _, bp := range ss.Map.Bullets {
		bullets[bp.ID] = true
	}
	lasers := make(map[int]Cell)
	for _, lp := range ss.Map.Lasers {
		lasers[lp.ID] = Cell{*lp.X, *lp.Y}
	}
	mines := make(map[int]Cell)
	for _, mp := range ss.Map.Mines {
		mines[mp.ID] = Cell{*mp.X, *mp.Y}
	}

	for _, p := range []*Player{a, b} {
		ps := view.PlayerState(p, EnumString)
		seen := 0
		for x := range ps.Map.Tiles {
			for y, objs := range ps.Map.Tiles[x] {
				here := Cell{x, y}
				for _, obj := range objs {
					switch pl := obj.Payload.(type) {
					case TankPayload:
						assert.Equal(t, tanks[pl.OwnerID], here, "tank %s", pl.OwnerID)
						seen++
					case BulletPayload:
						assert.True(t, bullets[pl.ID], "bullet %d", pl.ID)
						seen++
					case LaserPayload:
						assert.Equal(t, lasers[pl.ID], here, "laser %d", pl.ID)
						seen++
					case MinePayload:
						assert.Equal(t, mines[pl.ID], here, "mine %d", pl.ID)
						seen++
					}
				}
			}
		}
		assert.Positive(t, seen, "player %s sees at least their own tank", p.ID)
	}
}
