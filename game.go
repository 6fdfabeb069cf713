package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrNotRunning     = errors.New("game is not running")
)

// Broadcaster is anything the game can push packets to
type Broadcaster interface {
	SendJSON(msg any)
	SendRaw(data []byte)
}

// Viewer is what the game knows about a registered connection
type Viewer struct {
	PlayerID  string
	Spectator bool
	Format    EnumFormat
}

// EventSink receives match events for the event log
type EventSink interface {
	Track(evtType, playerID, matchID, data string)
}

// MatchRecorder persists final results
type MatchRecorder interface {
	RecordMatch(res MatchResult) error
}

// MatchResult is what gets stored when a match ends
type MatchResult struct {
	MatchID   string
	Mode      GameMode
	Seed      int64
	Dim       int
	Ticks     int
	StartedAt time.Time
	EndedAt   time.Time
	Players   []ResultPlayer
	Teams     []ResultTeam
}

type queuedAction struct {
	kind      string
	move      MovementDirection
	tankRot   *Rotation
	turretRot *Rotation
	ability   AbilityType
	target    Cell
}

type outgoing struct {
	to   Broadcaster
	data []byte
}

// Game is one match: players, the grid and the connections watching it.
// A single mutex guards all of it; the tick and every action handler run
// under it.
type Game struct {
	mu        sync.Mutex
	cfg       MatchConfig
	log       zerolog.Logger
	matchID   string
	status    GameStatus
	grid      *Grid
	players   map[string]*Player
	teams     []*Team
	viewers   map[Broadcaster]Viewer
	actions   map[string]*queuedAction
	tick      int
	stateID   string
	nextColor int
	startedAt time.Time
	stop      chan struct{}
	stopOnce  sync.Once
	ended     chan struct{}

	recorder MatchRecorder
	replay   *ReplayWriter
	events   EventSink
	metrics  *Metrics
}

// NewGame creates a match in the lobby with its map already generated
func NewGame(cfg MatchConfig, logger zerolog.Logger) *Game {
	g := &Game{
		cfg:     cfg,
		matchID: GenerateUUID(),
		status:  StatusInLobby,
		players: make(map[string]*Player),
		viewers: make(map[Broadcaster]Viewer),
		actions: make(map[string]*queuedAction),
		stop:    make(chan struct{}),
		ended:   make(chan struct{}),
	}
	g.log = logger.With().Str("component", "game").Str("match", g.matchID).Logger()
	g.grid = NewGrid(cfg.GridConfig(), g.players)
	g.grid.SetEvents(g)
	for _, w := range g.grid.GenerateMap() {
		g.log.Warn().Msgf("map generation: %s", w)
	}
	return g
}

// SetRecorder installs the result store
func (g *Game) SetRecorder(r MatchRecorder) { g.recorder = r }

// SetReplay installs the replay writer
func (g *Game) SetReplay(w *ReplayWriter) { g.replay = w }

// SetEventSink installs the event log
func (g *Game) SetEventSink(e EventSink) { g.events = e }

// SetMetrics installs metric instruments
func (g *Game) SetMetrics(m *Metrics) { g.metrics = m }

// MatchID returns the match identifier
func (g *Game) MatchID() string { return g.matchID }

// Run drives the tick loop until the context ends or Stop is called
func (g *Game) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		}
	}
}

// Ended is closed once the match has finished
func (g *Game) Ended() <-chan struct{} { return g.ended }

// Stop terminates the tick loop
func (g *Game) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *Game) track(evtType, playerID, data string) {
	if g.events != nil {
		g.events.Track(evtType, playerID, g.matchID, data)
	}
}

// TankKilled implements GridEvents
func (g *Game) TankKilled(killerID, victimID string) {
	g.log.Debug().Str("killer", killerID).Str("victim", victimID).Int("tick", g.tick).Msg("tank destroyed")
	g.track(EvtKill, killerID, fmt.Sprintf(`{"victim":%q,"tick":%d}`, victimID, g.tick))
	g.track(EvtDeath, victimID, fmt.Sprintf(`{"killer":%q,"tick":%d}`, killerID, g.tick))
}

// ZoneCaptured implements GridEvents
func (g *Game) ZoneCaptured(zone rune, party string) {
	g.log.Info().Str("zone", string(zone)).Str("party", party).Int("tick", g.tick).Msg("zone captured")
	g.track(EvtZoneCapture, "", fmt.Sprintf(`{"zone":%q,"party":%q,"tick":%d}`, string(zone), party, g.tick))
}

func (g *Game) nicknameTaken(nick string) bool {
	for _, p := range g.players {
		if p.Nickname == nick {
			return true
		}
	}
	return false
}

// Join admits a player described by a parsed handshake
func (g *Game) Join(h Handshake) (*Player, RejectReason) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !h.QuickJoin && !g.cfg.Sandbox && g.status != StatusInLobby {
		return nil, RejectGameInProgress
	}
	if !h.QuickJoin && len(g.players) >= g.cfg.MaxPlayers {
		return nil, RejectGameFull
	}

	nick := h.Nickname
	if g.nicknameTaken(nick) {
		if !h.QuickJoin && !g.cfg.Sandbox {
			return nil, RejectNicknameExists
		}
		for i := 1; g.nicknameTaken(nick); i++ {
			nick = h.Nickname + strconv.Itoa(i)
		}
	}

	var team *Team
	if g.cfg.IsTeamMode() {
		var reason RejectReason
		team, g.teams, reason = admitToTeam(g.teams, g.cfg.TeamCount, h.TeamName, h.TankKind)
		if reason != "" {
			return nil, reason
		}
	}

	color := playerColors[g.nextColor%len(playerColors)]
	g.nextColor++
	p := NewPlayer(GenerateID(4), nick, color)
	p.Bot = h.PlayerType == PlayerBot
	if team != nil {
		p.Team = team
		p.Color = team.Color
		p.TankKind = h.TankKind
		team.Players = append(team.Players, p)
	}
	g.players[p.ID] = p
	if g.status == StatusRunning || g.status == StatusStarting {
		g.grid.AddTank(p, p.TankKind)
	}

	g.log.Info().Str("player", p.ID).Str("nickname", p.Nickname).Msg("player joined")
	g.track(EvtConnect, p.ID, fmt.Sprintf(`{"nickname":%q}`, p.Nickname))
	return p, ""
}

// AddViewer registers a connection for broadcasts and sends it the
// lobby data. A player joining the lobby may trigger the match start.
func (g *Game) AddViewer(b Broadcaster, v Viewer, quickJoin bool) {
	g.mu.Lock()
	g.viewers[b] = v
	b.SendJSON(Envelope{Type: PktLobbyData, Payload: g.lobbyData(v.PlayerID)})
	if g.status == StatusRunning {
		b.SendJSON(Envelope{Type: PktGameStarted})
	}

	var out []outgoing
	if !v.Spectator && g.status == StatusInLobby {
		out = g.lobbyBroadcast(b)
	}
	start := !v.Spectator && g.status == StatusInLobby &&
		(quickJoin || g.cfg.Sandbox || g.connectedPlayers() >= g.cfg.MaxPlayers)
	if start {
		out = append(out, g.start()...)
	}
	g.mu.Unlock()

	flush(out)
}

// connectedPlayers counts player viewers; a joined player whose
// connection is not registered yet would miss gameStarting.
func (g *Game) connectedPlayers() int {
	n := 0
	for _, v := range g.viewers {
		if !v.Spectator && v.PlayerID != "" {
			n++
		}
	}
	return n
}

// RemoveViewer drops a connection; a player's tank leaves with it
func (g *Game) RemoveViewer(b Broadcaster) {
	g.mu.Lock()
	v, ok := g.viewers[b]
	if !ok {
		g.mu.Unlock()
		return
	}
	delete(g.viewers, b)

	var out []outgoing
	if !v.Spectator && v.PlayerID != "" {
		g.removePlayer(v.PlayerID)
		if g.status == StatusInLobby {
			out = g.lobbyBroadcast(nil)
		}
	}
	g.mu.Unlock()

	flush(out)
}

func (g *Game) removePlayer(id string) {
	p, ok := g.players[id]
	if !ok {
		return
	}
	g.grid.RemoveTank(id)
	delete(g.actions, id)
	if p.Team != nil {
		for i, m := range p.Team.Players {
			if m == p {
				p.Team.Players = append(p.Team.Players[:i], p.Team.Players[i+1:]...)
				break
			}
		}
		if len(p.Team.Players) == 0 && g.status == StatusInLobby {
			for i, t := range g.teams {
				if t == p.Team {
					g.teams = append(g.teams[:i], g.teams[i+1:]...)
					break
				}
			}
		}
	}
	delete(g.players, id)
	g.log.Info().Str("player", id).Str("nickname", p.Nickname).Msg("player left")
	g.track(EvtDisconnect, id, "")
}

// ViewerCount returns the number of connections receiving broadcasts
func (g *Game) ViewerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.viewers)
}

// HasViewer reports whether a connection is a broadcast recipient
func (g *Game) HasViewer(b Broadcaster) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.viewers[b]
	return ok
}

// PlayerCount returns the number of players
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// Status answers a gameStatusRequest
func (g *Game) Status() GameStatusPayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GameStatusPayload{Status: g.status.String(), Tick: g.tick}
}

// SetPing records the last measured round trip of a player
func (g *Game) SetPing(playerID string, ms int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.players[playerID]; ok {
		p.Ping = ms
	}
}

// Start moves the lobby to Starting; the next tick begins the match
func (g *Game) Start() {
	g.mu.Lock()
	out := g.start()
	g.mu.Unlock()
	flush(out)
}

func (g *Game) start() []outgoing {
	if g.status != StatusInLobby {
		return nil
	}
	g.status = StatusStarting

	ids := make([]string, 0, len(g.players))
	for id := range g.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := g.players[id]
		g.grid.AddTank(p, p.TankKind)
	}
	g.grid.UpdateVisibility()

	if g.replay != nil {
		if err := g.replay.WriteHeader(g.lobbyData("")); err != nil {
			g.log.Error().Err(err).Msg("replay header")
		}
	}
	g.log.Info().Int("players", len(g.players)).Msg("match starting")
	g.track(EvtMatchStart, "", fmt.Sprintf(`{"mode":%q,"seed":%d}`, g.cfg.Mode, g.cfg.Seed))
	return g.broadcastAll(Envelope{Type: PktGameStarting})
}

// parseAction validates an action payload into a queued action
func parseAction(kind string, pl ActionPayload) (*queuedAction, string) {
	a := &queuedAction{kind: kind}
	switch kind {
	case PktMovement:
		v, ok := parseEnum(pl.Direction, movementNames)
		if !ok {
			return nil, "Invalid movement direction"
		}
		a.move = MovementDirection(v)
	case PktRotation:
		if pl.TankRotation != nil {
			v, ok := parseEnum(pl.TankRotation, rotationNames)
			if !ok {
				return nil, "Invalid tank rotation"
			}
			r := Rotation(v)
			a.tankRot = &r
		}
		if pl.TurretRotation != nil {
			v, ok := parseEnum(pl.TurretRotation, rotationNames)
			if !ok {
				return nil, "Invalid turret rotation"
			}
			r := Rotation(v)
			a.turretRot = &r
		}
	case PktAbilityUse:
		v, ok := parseEnum(pl.AbilityType, abilityNames)
		if !ok {
			return nil, "Invalid ability type"
		}
		a.ability = AbilityType(v)
	case PktGoTo:
		if pl.X == nil || pl.Y == nil {
			return nil, "GoTo requires x and y"
		}
		a.target = Cell{*pl.X, *pl.Y}
	case PktCaptureZone, PktPass:
	default:
		return nil, "Unknown action type"
	}
	return a, ""
}

func warning(typ string) *Envelope {
	return &Envelope{Type: typ}
}

func customWarning(msg string) *Envelope {
	return &Envelope{Type: PktCustomWarning, Payload: CustomWarningPayload{Message: msg}}
}

// SubmitAction queues a player's action for the next tick. It returns
// the warning to send back, or nil when the action was queued or
// silently superseded.
func (g *Game) SubmitAction(playerID, kind string, pl ActionPayload) *Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusRunning {
		return customWarning("Game is not running")
	}
	p, ok := g.players[playerID]
	if !ok {
		return customWarning("Player not found")
	}
	if pl.GameStateID != "" && pl.GameStateID != g.stateID {
		g.metrics.ActionDropped("slow")
		return warning(PktSlowResponseWarning)
	}

	if prev, queued := g.actions[playerID]; queued {
		if kind == PktGoTo {
			if prev.kind == PktGoTo {
				if a, msg := parseAction(kind, pl); msg == "" {
					g.actions[playerID] = a
				}
			}
			return nil
		}
		g.metrics.ActionDropped("duplicate")
		return warning(PktPlayerAlreadyMadeActionWarning)
	}

	t := g.grid.TankOf(playerID)
	if t == nil || (t.IsDead() && kind != PktPass) {
		g.metrics.ActionDropped("dead")
		return warning(PktActionIgnoredDueToDeadWarning)
	}

	a, msg := parseAction(kind, pl)
	if msg != "" {
		return customWarning(msg)
	}
	if kind == PktCaptureZone && g.grid.ZoneAt(t.X, t.Y) == nil {
		return customWarning("You are not in a zone that can be captured.")
	}
	g.actions[p.ID] = a
	return nil
}

func (g *Game) applyAction(playerID string, a *queuedAction) {
	t := g.grid.TankOf(playerID)
	if t == nil || (t.IsDead() && a.kind != PktPass) {
		return
	}
	switch a.kind {
	case PktMovement:
		g.grid.TryMoveTank(t, a.move)
	case PktRotation:
		if a.tankRot != nil {
			t.Rotate(*a.tankRot)
		}
		if a.turretRot != nil {
			t.RotateTurret(*a.turretRot)
		}
	case PktAbilityUse:
		if !g.grid.UseAbility(t, a.ability) {
			g.log.Debug().Str("player", playerID).Stringer("ability", a.ability).Msg("ability not available")
		}
	case PktCaptureZone:
		g.grid.MarkCapturing(t)
	case PktGoTo:
		if move, turn, ok := g.grid.NextStep(t, a.target.X, a.target.Y); ok {
			if move != nil {
				g.grid.TryMoveTank(t, *move)
			} else {
				t.Rotate(*turn)
			}
		}
	}
}

// update runs one game tick
func (g *Game) update() {
	g.mu.Lock()

	var out []outgoing
	switch g.status {
	case StatusInLobby, StatusEnded:
		g.mu.Unlock()
		return
	case StatusStarting:
		g.status = StatusRunning
		g.startedAt = time.Now()
		out = g.broadcastAll(Envelope{Type: PktGameStarted})
		g.log.Info().Msg("match started")
	}

	began := time.Now()
	g.grid.BeginTick()
	ids := make([]string, 0, len(g.actions))
	for id := range g.actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		g.applyAction(id, g.actions[id])
	}
	clear(g.actions)

	g.grid.Tick(1)
	g.tick++
	g.stateID = GenerateID(8)
	out = append(out, g.publish()...)

	var result *MatchResult
	if g.cfg.Ticks > 0 && g.tick >= g.cfg.Ticks {
		var ended []outgoing
		result, ended = g.end()
		out = append(out, ended...)
	}
	g.metrics.TickDone(time.Since(began))
	g.mu.Unlock()

	flush(out)
	if result != nil && g.recorder != nil {
		if err := g.recorder.RecordMatch(*result); err != nil {
			g.log.Error().Err(err).Msg("record match")
		}
	}
}

// publish builds every viewer's payload right after the tick
func (g *Game) publish() []outgoing {
	view := StateView{ID: g.stateID, Tick: g.tick, Grid: g.grid, Players: g.players, Teams: g.teams}
	out := make([]outgoing, 0, len(g.viewers))
	spectator := make(map[EnumFormat][]byte)

	for b, v := range g.viewers {
		var data []byte
		var err error
		switch {
		case v.Spectator:
			data = spectator[v.Format]
			if data == nil {
				data, err = json.Marshal(Envelope{Type: PktGameState, Payload: view.SpectatorState(v.Format)})
				spectator[v.Format] = data
			}
		default:
			p, ok := g.players[v.PlayerID]
			if !ok {
				continue
			}
			data, err = json.Marshal(Envelope{Type: PktGameState, Payload: view.PlayerState(p, v.Format)})
		}
		if err != nil {
			g.log.Error().Err(err).Msg("marshal game state")
			continue
		}
		out = append(out, outgoing{to: b, data: data})
	}

	if g.replay != nil {
		if err := g.replay.WriteFrame(g.tick, view.SpectatorState(EnumInt)); err != nil {
			g.log.Error().Err(err).Msg("replay frame")
		}
	}
	return out
}

func (g *Game) end() (*MatchResult, []outgoing) {
	g.status = StatusEnded
	close(g.ended)
	res := g.results()
	g.log.Info().Int("tick", g.tick).Msg("match ended")
	g.track(EvtMatchEnd, "", fmt.Sprintf(`{"mode":%q,"ticks":%d}`, g.cfg.Mode, g.tick))

	if g.replay != nil {
		if err := g.replay.Close(); err != nil {
			g.log.Error().Err(err).Msg("close replay")
		}
	}

	result := &MatchResult{
		MatchID:   g.matchID,
		Mode:      g.cfg.Mode,
		Seed:      g.cfg.Seed,
		Dim:       g.cfg.Dim,
		Ticks:     g.tick,
		StartedAt: g.startedAt,
		EndedAt:   time.Now(),
		Players:   res.Players,
		Teams:     res.Teams,
	}
	return result, g.broadcastAll(Envelope{Type: PktGameEnded, Payload: res})
}

// results orders players (and teams) by score
func (g *Game) results() GameEndedPayload {
	res := GameEndedPayload{MatchID: g.matchID, Players: make([]ResultPlayer, 0, len(g.players))}
	for _, p := range g.players {
		rp := ResultPlayer{ID: p.ID, Nickname: p.Nickname, Score: p.Score, Kills: p.Kills}
		if p.Team != nil {
			rp.Team = p.Team.Name
			rp.Score = p.Team.Score
		}
		res.Players = append(res.Players, rp)
	}
	sort.Slice(res.Players, func(i, j int) bool {
		a, b := res.Players[i], res.Players[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Nickname < b.Nickname
	})
	for _, t := range g.teams {
		res.Teams = append(res.Teams, ResultTeam{Name: t.Name, Color: t.Color, Score: t.Score})
	}
	sort.Slice(res.Teams, func(i, j int) bool { return res.Teams[i].Score > res.Teams[j].Score })
	return res
}

func (g *Game) lobbyData(playerID string) LobbyDataPayload {
	ld := LobbyDataPayload{
		PlayerID:      playerID,
		MatchID:       g.matchID,
		Status:        g.status.String(),
		Mode:          g.cfg.Mode.String(),
		GridDimension: g.cfg.Dim,
		Seed:          g.cfg.Seed,
		TicksPerMatch: g.cfg.Ticks,
		MaxPlayers:    g.cfg.MaxPlayers,
		BroadcastMs:   int(g.cfg.TickInterval / time.Millisecond),
		Players:       make([]LobbyPlayer, 0, len(g.players)),
		Sandbox:       g.cfg.Sandbox,
	}
	for _, p := range g.players {
		lp := LobbyPlayer{ID: p.ID, Nickname: p.Nickname, Color: p.Color}
		if p.Team != nil {
			lp.Team = p.Team.Name
			lp.TankType = p.TankKind.String()
		}
		ld.Players = append(ld.Players, lp)
	}
	sort.Slice(ld.Players, func(i, j int) bool { return ld.Players[i].Nickname < ld.Players[j].Nickname })
	for _, t := range g.teams {
		ld.Teams = append(ld.Teams, TeamSettings{Name: t.Name, Color: t.Color})
	}
	return ld
}

// lobbyBroadcast sends fresh lobby data to everyone except skip
func (g *Game) lobbyBroadcast(skip Broadcaster) []outgoing {
	out := make([]outgoing, 0, len(g.viewers))
	for b, v := range g.viewers {
		if b == skip {
			continue
		}
		data, err := json.Marshal(Envelope{Type: PktLobbyData, Payload: g.lobbyData(v.PlayerID)})
		if err != nil {
			continue
		}
		out = append(out, outgoing{to: b, data: data})
	}
	return out
}

func (g *Game) broadcastAll(env Envelope) []outgoing {
	data, err := json.Marshal(env)
	if err != nil {
		g.log.Error().Err(err).Str("type", env.Type).Msg("marshal broadcast")
		return nil
	}
	out := make([]outgoing, 0, len(g.viewers))
	for b := range g.viewers {
		out = append(out, outgoing{to: b, data: data})
	}
	return out
}

// flush hands prepared packets to their connections outside the lock
func flush(out []outgoing) {
	for _, o := range out {
		o.to.SendRaw(o.data)
	}
}

// ForceAbilitiesReady clears every cooldown of a player's tank
func (g *Game) ForceAbilitiesReady(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.grid.TankOf(playerID)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	for _, ab := range t.Abilities {
		ab.ForceReady()
	}
	return nil
}

// SetScore overwrites the score of a player or, in team mode, a team
func (g *Game) SetScore(target string, score int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t := findTeam(g.teams, target); t != nil {
		t.Score = score
		return nil
	}
	p, ok := g.players[target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, target)
	}
	if p.Team != nil {
		p.Team.Score = score
	} else {
		p.Score = score
	}
	return nil
}

// AdminStatus is the snapshot served on the admin API
type AdminStatus struct {
	MatchID string         `json:"matchId"`
	Status  string         `json:"status"`
	Tick    int            `json:"tick"`
	Viewers int            `json:"viewers"`
	Players []ResultPlayer `json:"players"`
	Teams   []ResultTeam   `json:"teams,omitempty"`
}

// Snapshot returns the current standings
func (g *Game) Snapshot() AdminStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	res := g.results()
	return AdminStatus{
		MatchID: g.matchID,
		Status:  g.status.String(),
		Tick:    g.tick,
		Viewers: len(g.viewers),
		Players: res.Players,
		Teams:   res.Teams,
	}
}
