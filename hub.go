package main

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub tracks live connections, per-address limits and failed join
// attempts, and hands accepted connections to the current match.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Connection]bool

	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	attempts  *AttemptTracker
	sessions  *SessionManager
	cfg       *Config
	log       zerolog.Logger
	metrics   *Metrics
	db        *DB
	auth      *Auth
	analytics *Analytics
}

// NewHub creates a hub serving the session manager's matches
func NewHub(cfg *Config, sessions *SessionManager, logger zerolog.Logger) *Hub {
	return &Hub{
		conns:    make(map[*Connection]bool),
		ipConns:  make(map[string]int),
		attempts: NewAttemptTracker(),
		sessions: sessions,
		cfg:      cfg,
		log:      logger.With().Str("component", "hub").Logger(),
	}
}

// SetMetrics installs metric instruments
func (h *Hub) SetMetrics(m *Metrics) { h.metrics = m }

// SetStore installs the database, the admin authenticator and the
// event log used by the admin API
func (h *Hub) SetStore(db *DB, auth *Auth, analytics *Analytics) {
	h.db = db
	h.auth = auth
	h.analytics = analytics
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Register adds an accepted connection
func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
	h.metrics.ConnectionAccepted(c.viewer.Spectator)
}

// Unregister removes a connection
func (h *Hub) Unregister(c *Connection) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// ConnCount returns the number of accepted connections
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// TotalConns returns the tracked socket count, including sockets still
// in the handshake
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}

// CloseGame closes every connection attached to the given game
func (h *Hub) CloseGame(g *Game, reason string) {
	for _, c := range h.snapshot() {
		if g == nil || c.game == g {
			c.Close(reason)
		}
	}
}

// CloseAll closes every connection
func (h *Hub) CloseAll(reason string) {
	h.CloseGame(nil, reason)
}

func (h *Hub) snapshot() []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Connection, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

// checkJoinCode validates the join code for a remote address. It
// returns the rejection to send, if any.
func (h *Hub) checkJoinCode(ip, code string) RejectReason {
	if h.attempts.IsBlocked(ip) {
		return RejectTooManyAttempts
	}
	if h.cfg.JoinCode != "" && !strings.EqualFold(code, h.cfg.JoinCode) {
		n := h.attempts.Fail(ip)
		h.log.Warn().Str("remote", ip).Int("attempts", n).Msg("invalid join code")
		return RejectInvalidJoinCode
	}
	return ""
}
