package main

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EnumFormat selects how enumerated values are written to a connection
type EnumFormat int

const (
	EnumInt    EnumFormat = 0
	EnumString EnumFormat = 1
)

var enumFormatNames = []string{"Int", "String"}

func (f EnumFormat) String() string {
	if f == EnumString {
		return "String"
	}
	return "Int"
}

// encode renders an enum value in the selected format
func (f EnumFormat) encode(v int, names []string) any {
	if f == EnumString && v >= 0 && v < len(names) {
		return names[v]
	}
	return v
}

// PlayerType distinguishes human players from bots
type PlayerType int

const (
	PlayerHuman PlayerType = 0
	PlayerBot   PlayerType = 1
)

var playerTypeNames = []string{"human", "bot"}

// Handshake holds the parsed connection parameters
type Handshake struct {
	Spectator  bool
	Format     EnumFormat
	JoinCode   string
	Nickname   string
	PlayerType PlayerType
	TeamName   string
	TankKind   TankKind
	QuickJoin  bool
}

// parseEnumFormat reads enumSerializationFormat, defaulting to Int
func parseEnumFormat(q url.Values) (EnumFormat, bool) {
	raw := q.Get("enumSerializationFormat")
	if raw == "" {
		return EnumInt, true
	}
	f, ok := parseEnum(raw, enumFormatNames)
	return EnumFormat(f), ok
}

// ParseHandshake validates the request path and query in the order the
// rejections are reported. Join-code and IP blocking checks are done by
// the caller because they need the remote address.
func ParseHandshake(path string, q url.Values, cfg MatchConfig) (Handshake, RejectReason) {
	var h Handshake

	f, ok := parseEnumFormat(q)
	if !ok {
		return h, RejectInvalidEnumFormat
	}
	h.Format = f
	h.JoinCode = q.Get("joinCode")
	if cfg.QuickJoin {
		h.QuickJoin, _ = strconv.ParseBool(q.Get("quickJoin"))
	}

	switch {
	case strings.EqualFold(path, "/spectator"):
		h.Spectator = true
		return h, ""
	case path == "/" || path == "":
	default:
		return h, RejectInvalidURLPath
	}

	h.Nickname = strings.ToUpper(strings.TrimSpace(q.Get("nickname")))
	if r := []rune(h.Nickname); len(r) > maxNicknameLen {
		h.Nickname = string(r[:maxNicknameLen])
	}
	if h.Nickname == "" && !cfg.IsTeamMode() {
		return h, RejectMissingNickname
	}

	pt := q.Get("playerType")
	if pt == "" {
		return h, RejectMissingPlayerType
	}
	t, ok := parseEnum(pt, playerTypeNames)
	if !ok {
		return h, RejectInvalidPlayerType
	}
	h.PlayerType = PlayerType(t)

	if cfg.IsTeamMode() {
		h.TeamName = strings.TrimSpace(q.Get("teamName"))
		if h.TeamName == "" {
			return h, RejectMissingTeamName
		}
		k, ok := parseEnum(q.Get("tankType"), tankKindNames)
		if !ok || TankKind(k) == TankStandard {
			return h, RejectInvalidTankType
		}
		h.TankKind = TankKind(k)
		if h.Nickname == "" {
			h.Nickname = strings.ToUpper(h.TeamName + "-" + h.TankKind.String())
		}
	}
	return h, ""
}

const (
	maxFailedAttempts  = 5
	failedAttemptReset = 15 * time.Minute
)

type attemptInfo struct {
	count int
	last  time.Time
}

// AttemptTracker blocks remote addresses after repeated bad join codes
type AttemptTracker struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo
	now      func() time.Time
}

// NewAttemptTracker creates an empty tracker
func NewAttemptTracker() *AttemptTracker {
	return &AttemptTracker{attempts: make(map[string]*attemptInfo), now: time.Now}
}

// IsBlocked reports whether the address used up its attempts recently
func (a *AttemptTracker) IsBlocked(ip string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	info, ok := a.attempts[ip]
	if !ok {
		return false
	}
	if a.now().Sub(info.last) >= failedAttemptReset {
		delete(a.attempts, ip)
		return false
	}
	return info.count >= maxFailedAttempts
}

// Fail records a failed attempt and returns the running count
func (a *AttemptTracker) Fail(ip string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	info, ok := a.attempts[ip]
	if !ok {
		info = &attemptInfo{}
		a.attempts[ip] = info
	}
	info.count++
	info.last = a.now()
	return info.count
}
