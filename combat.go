package main

// ApplyDamage damages a tank and does the kill bookkeeping. It returns
// the health actually removed; score credit is left to the caller.
func (g *Grid) ApplyDamage(victim *Tank, damage int, attackerID string) int {
	if victim.IsDead() {
		return 0
	}
	x, y, item := victim.X, victim.Y, victim.SecondaryItem
	taken, killed := victim.TakeDamage(damage)
	if !killed {
		return taken
	}

	if item != nil && g.Mode == ModeClassic {
		if c, ok := g.dropCell(x, y); ok {
			g.Items = append(g.Items, &Item{X: c.X, Y: c.Y, Type: *item})
		}
	}
	if p := g.players[victim.OwnerID]; p != nil {
		p.StartRegeneration()
	}
	if attackerID != "" && attackerID != victim.OwnerID {
		if ap := g.players[attackerID]; ap != nil {
			ap.Kills++
		}
		if at := g.TankOf(attackerID); at != nil && !at.IsDead() {
			at.Heal(KillHealBonus)
		}
	}
	if g.events != nil {
		g.events.TankKilled(attackerID, victim.OwnerID)
	}
	return taken
}

// UseAbility triggers an ability for a tank. In classic mode anything
// but the main bullet consumes the held item instead of a cooldown.
func (g *Grid) UseAbility(t *Tank, typ AbilityType) bool {
	if t.IsDead() || t.IsBlockedByStun(StunAbilityUse) {
		return false
	}
	if g.Mode == ModeClassic && typ != AbilityFireBullet {
		if t.SecondaryItem == nil {
			return false
		}
		if want, ok := t.SecondaryItem.ItemAbility(); !ok || want != typ {
			return false
		}
		t.SecondaryItem = nil
	} else {
		ab := t.Abilities[typ]
		if ab == nil || !ab.CanUse(t) {
			return false
		}
		ab.Use()
	}

	switch typ {
	case AbilityFireBullet:
		g.fireBullet(t, BulletBasic)
	case AbilityFireDoubleBullet:
		g.fireBullet(t, BulletDouble)
	case AbilityFireHealingBullet:
		g.fireBullet(t, BulletHealing)
	case AbilityFireStunBullet:
		g.fireBullet(t, BulletStun)
	case AbilityUseLaser:
		g.fireLaser(t)
	case AbilityUseRadar:
		if p := g.players[t.OwnerID]; p != nil {
			p.IsUsingRadar = true
		}
	case AbilityDropMine:
		dx, dy := t.Direction.Normal()
		g.Mines = append(g.Mines, NewMine(g.newID(), t.X-dx, t.Y-dy, t.OwnerID))
	}
	return true
}

// fireBullet queues a bullet in the cell ahead of the turret; it joins
// the world during the next bullet update.
func (g *Grid) fireBullet(t *Tank, typ BulletType) *Bullet {
	dx, dy := t.TurretDirection.Normal()
	b := NewBullet(g.newID(), typ, t.X+dx, t.Y+dy, t.TurretDirection, t.OwnerID)
	g.queuedBullets.Push(b)
	return b
}

// fireLaser lays a beam from the turret up to the first wall or edge
// and stuns the shooter for the beam's lifetime.
func (g *Grid) fireLaser(t *Tank) []*Laser {
	dx, dy := t.TurretDirection.Normal()
	orient := LaserVertical
	if dx != 0 {
		orient = LaserHorizontal
	}
	var beam []*Laser
	for x, y := t.X+dx, t.Y+dy; g.InBounds(x, y) && !g.Walls[x][y]; x, y = x+dx, y+dy {
		l := &Laser{
			ID:             g.newID(),
			X:              x,
			Y:              y,
			Orientation:    orient,
			RemainingTicks: LaserTicks,
			Damage:         LaserDamage,
			ShooterID:      t.OwnerID,
		}
		beam = append(beam, l)
	}
	g.Lasers = append(g.Lasers, beam...)
	t.Stun(StunFromLaser, LaserTicks)
	return beam
}

// NextStep plans one step of a shortest open path from the tank to the
// target: a move when the next cell is ahead or behind, otherwise a turn
// toward it. ok is false when there is nothing to do.
func (g *Grid) NextStep(t *Tank, tx, ty int) (move *MovementDirection, turn *Rotation, ok bool) {
	if t.IsDead() || !g.InBounds(tx, ty) || g.Walls[tx][ty] || (t.X == tx && t.Y == ty) {
		return nil, nil, false
	}
	prev := make(map[Cell]Cell)
	start, goal := Cell{t.X, t.Y}, Cell{tx, ty}
	prev[start] = start
	queue := []Cell{start}
	found := false
	for len(queue) > 0 && !found {
		c := queue[0]
		queue = queue[1:]
		for d := DirectionUp; d <= DirectionLeft; d++ {
			dx, dy := d.Normal()
			n := Cell{c.X + dx, c.Y + dy}
			if _, seen := prev[n]; seen || !g.InBounds(n.X, n.Y) || g.Walls[n.X][n.Y] {
				continue
			}
			if n != goal && g.TankAt(n.X, n.Y) != nil {
				continue
			}
			prev[n] = c
			if n == goal {
				found = true
				break
			}
			queue = append(queue, n)
		}
	}
	if !found {
		return nil, nil, false
	}
	step := goal
	for prev[step] != start {
		step = prev[step]
	}

	dx, dy := t.Direction.Normal()
	switch (Cell{step.X - t.X, step.Y - t.Y}) {
	case Cell{dx, dy}:
		m := MovementForward
		return &m, nil, true
	case Cell{-dx, -dy}:
		m := MovementBackward
		return &m, nil, true
	}
	ldx, ldy := t.Direction.Rotate(RotationLeft).Normal()
	r := RotationRight
	if step.X-t.X == ldx && step.Y-t.Y == ldy {
		r = RotationLeft
	}
	return nil, &r, true
}
