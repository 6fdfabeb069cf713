package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GameStatus is the lifecycle of a match
type GameStatus int

const (
	StatusInLobby  GameStatus = 0
	StatusStarting GameStatus = 1
	StatusRunning  GameStatus = 2
	StatusEnded    GameStatus = 3
)

var gameStatusNames = []string{"inLobby", "starting", "running", "ended"}

func (s GameStatus) String() string {
	if s < 0 || int(s) >= len(gameStatusNames) {
		return "unknown"
	}
	return gameStatusNames[s]
}

// GameMode defines the type of match
type GameMode int

const (
	ModeClassic GameMode = 0 // free for all, items from pickups
	ModeTeam    GameMode = 1 // two teams, light and heavy tanks, zone capture
)

var gameModeNames = []string{"classic", "team"}

func (m GameMode) String() string {
	if m < 0 || int(m) >= len(gameModeNames) {
		return "unknown"
	}
	return gameModeNames[m]
}

// ParseGameMode resolves a mode name
func ParseGameMode(s string) (GameMode, error) {
	for i, n := range gameModeNames {
		if strings.EqualFold(n, s) {
			return GameMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown game mode %q", s)
}

var teamColors = []uint32{0xFFE74C3C, 0xFF3498DB, 0xFF2ECC71, 0xFFF1C40F}

var playerColors = []uint32{
	0xFFE74C3C, 0xFF3498DB, 0xFF2ECC71, 0xFFF1C40F,
	0xFF9B59B6, 0xFF1ABC9C, 0xFFE67E22, 0xFFECF0F1,
}

// MatchConfig holds settings for a match
type MatchConfig struct {
	Mode         GameMode
	Dim          int
	Seed         int64
	ZoneCount    int
	ViewRadius   int
	Zone         ZoneConfig
	TickInterval time.Duration
	Ticks        int // 0 = unlimited
	MaxPlayers   int
	TeamCount    int
	Sandbox      bool
	QuickJoin    bool
	JoinCode     string

	PingInterval  time.Duration
	PingDelay     time.Duration
	NoPongTimeout time.Duration
	SendTimeout   time.Duration
}

// DefaultMatchConfig returns default config for the given mode
func DefaultMatchConfig(mode GameMode) MatchConfig {
	c := MatchConfig{
		Mode:          mode,
		Dim:           24,
		ZoneCount:     2,
		Zone:          DefaultZoneConfig(),
		TickInterval:  100 * time.Millisecond,
		Ticks:         3000,
		MaxPlayers:    4,
		PingInterval:  time.Second,
		PingDelay:     500 * time.Millisecond,
		NoPongTimeout: time.Second,
		SendTimeout:   time.Second,
	}
	if mode == ModeTeam {
		c.ZoneCount = 1
		c.TeamCount = 2
	}
	return c
}

var errInvalidMatchConfig = errors.New("invalid match config")

// Validate rejects configs the simulation cannot run
func (c MatchConfig) Validate() error {
	switch {
	case c.Dim < 4:
		return fmt.Errorf("%w: dimension %d is below 4", errInvalidMatchConfig, c.Dim)
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval must be positive", errInvalidMatchConfig)
	case c.MaxPlayers < 1:
		return fmt.Errorf("%w: player cap must be at least 1", errInvalidMatchConfig)
	case c.Mode == ModeTeam && c.TeamCount < 1:
		return fmt.Errorf("%w: team mode needs at least one team", errInvalidMatchConfig)
	case c.Zone.CaptureTicks < 1 || c.Zone.GraceTicks < 0:
		return fmt.Errorf("%w: zone timings", errInvalidMatchConfig)
	}
	return nil
}

// IsTeamMode returns whether the game mode uses teams
func (c MatchConfig) IsTeamMode() bool {
	return c.Mode == ModeTeam
}

// TeamSize is the number of players a team holds: one per tank kind
func (c MatchConfig) TeamSize() int {
	return len(TankKinds) - 1
}

// GridConfig derives the simulation parameters
func (c MatchConfig) GridConfig() GridConfig {
	return GridConfig{
		Dim:        c.Dim,
		Seed:       c.Seed,
		Mode:       c.Mode,
		ZoneCount:  c.ZoneCount,
		ViewRadius: c.ViewRadius,
		Zone:       c.Zone,
	}
}

// findTeam returns the team with the given name
func findTeam(teams []*Team, name string) *Team {
	for _, t := range teams {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// admitToTeam checks team capacity and tank kind uniqueness, creating
// the team if a slot is free.
func admitToTeam(teams []*Team, maxTeams int, name string, kind TankKind) (*Team, []*Team, RejectReason) {
	t := findTeam(teams, name)
	if t == nil {
		if len(teams) >= maxTeams {
			return nil, teams, RejectTeamsFull
		}
		t = &Team{Name: name, Color: teamColors[len(teams)%len(teamColors)]}
		teams = append(teams, t)
	}
	for _, p := range t.Players {
		if p.TankKind == kind {
			return nil, teams, RejectTankTypeTaken
		}
	}
	return t, teams, ""
}
