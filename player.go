package main

const (
	PlayerRegenTicks = 50 // ticks a dead tank waits before respawning
	maxNicknameLen   = 16
)

// Team groups players in team mode
type Team struct {
	Name    string
	Color   uint32
	Score   int
	Players []*Player
}

// Player is a participant's identity and match record. The tank lives
// in the grid and is looked up by the player's ID.
type Player struct {
	ID           string
	Nickname     string
	Color        uint32
	Team         *Team
	TankKind     TankKind
	Score        int
	Kills        int
	Ping         int
	Bot          bool
	IsUsingRadar bool
	RegenTicks   *int
	Visibility   [][]bool
}

// NewPlayer creates a player record
func NewPlayer(id, nickname string, color uint32) *Player {
	return &Player{
		ID:       id,
		Nickname: nickname,
		Color:    color,
	}
}

// Party returns the capture party the player belongs to
func (p *Player) Party() string {
	if p.Team != nil {
		return p.Team.Name
	}
	return p.ID
}

// AddScore credits points to the player or their team
func (p *Player) AddScore(points int) {
	if p.Team != nil {
		p.Team.Score += points
		return
	}
	p.Score += points
}

// IsTeammate reports whether other shares p's team (and is not p)
func (p *Player) IsTeammate(other *Player) bool {
	return other != nil && p != other && p.Team != nil && p.Team == other.Team
}

// StartRegeneration begins the respawn countdown
func (p *Player) StartRegeneration() {
	t := PlayerRegenTicks
	p.RegenTicks = &t
}

// UpdateRegeneration ticks the countdown and reports whether it elapsed
func (p *Player) UpdateRegeneration() bool {
	if p.RegenTicks == nil {
		return false
	}
	t := *p.RegenTicks - 1
	if t <= 0 {
		p.RegenTicks = nil
		return true
	}
	p.RegenTicks = &t
	return false
}
