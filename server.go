package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes. ctx bounds the lifetime of the
// connections accepted through them.
func SetupRoutes(ctx context.Context, hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(ctx, w, r)
	})
	mux.HandleFunc("GET /join.png", hub.serveJoinQR)

	mux.HandleFunc("POST /admin/login", hub.handleAdminLogin)
	mux.HandleFunc("GET /admin/status", hub.requireAdmin(hub.handleAdminStatus))
	mux.HandleFunc("POST /admin/abilities/ready", hub.requireAdmin(hub.handleForceReady))
	mux.HandleFunc("POST /admin/score", hub.requireAdmin(hub.handleSetScore))

	return mux
}

// ServeWS runs the connection handshake. Rejected sockets are answered
// with connectionRejected and closed before reaching a game.
func (h *Hub) ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "WebSocket connection required", http.StatusBadRequest)
		return
	}
	ip := extractIP(r)
	if !h.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", ip).Msg("upgrade failed")
		return
	}
	h.TrackConnect(ip)

	game := h.sessions.Current()
	cfg := game.cfg
	c := NewConnection(h, ws, ip, cfg.SendTimeout)
	reject := func(reason RejectReason) {
		h.metrics.ConnectionRejected(reason)
		c.Reject(reason)
	}

	q := r.URL.Query()
	if _, ok := parseEnumFormat(q); !ok {
		reject(RejectInvalidEnumFormat)
		return
	}
	if reason := h.checkJoinCode(ip, q.Get("joinCode")); reason != "" {
		reject(reason)
		return
	}
	hs, reason := ParseHandshake(r.URL.Path, q, cfg)
	if reason != "" {
		reject(reason)
		return
	}

	v := Viewer{Spectator: hs.Spectator, Format: hs.Format}
	if !hs.Spectator {
		p, reason := game.Join(hs)
		if reason != "" {
			reject(reason)
			return
		}
		v.PlayerID = p.ID
		c.log = c.log.With().Str("nickname", p.Nickname).Logger()
	}
	c.Accept(ctx, game, v, hs.QuickJoin)
}

func (h *Hub) serveJoinQR(w http.ResponseWriter, r *http.Request) {
	u, err := url.Parse(h.cfg.PublicURL)
	if err != nil {
		http.Error(w, "bad public URL", http.StatusInternalServerError)
		return
	}
	if h.cfg.JoinCode != "" {
		q := u.Query()
		q.Set("joinCode", h.cfg.JoinCode)
		u.RawQuery = q.Encode()
	}
	png, err := qrcode.Encode(u.String(), qrcode.Medium, qrSize)
	if err != nil {
		h.log.Error().Err(err).Msg("encode QR")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Hub) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil {
			writeError(w, http.StatusNotFound, ErrAdminDisabled.Error())
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := h.auth.ValidateToken(token); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r)
	}
}

func (h *Hub) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeError(w, http.StatusNotFound, ErrAdminDisabled.Error())
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.auth.Login(req.Password, extractIP(r))
	switch {
	case errors.Is(err, ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrAdminDisabled):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

type adminStatusResponse struct {
	Game        AdminStatus    `json:"game"`
	Connections int            `json:"connections"`
	Sessions    []SessionInfo  `json:"sessions"`
	Recent      []MatchRow     `json:"recentMatches,omitempty"`
	Events      map[string]int `json:"events,omitempty"`
}

func (h *Hub) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	resp := adminStatusResponse{
		Game:        h.sessions.Current().Snapshot(),
		Connections: h.ConnCount(),
		Sessions:    h.sessions.ListSessions(),
	}
	if h.db != nil {
		recent, err := h.db.RecentMatches(10)
		if err != nil {
			h.log.Error().Err(err).Msg("recent matches")
		}
		resp.Recent = recent
	}
	if h.analytics != nil {
		counts, err := h.analytics.EventCounts(1)
		if err != nil {
			h.log.Error().Err(err).Msg("event counts")
		}
		resp.Events = counts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Hub) handleForceReady(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.sessions.Current().ForceAbilitiesReady(req.PlayerID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Hub) handleSetScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
		Score  int    `json:"score"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.sessions.Current().SetScore(req.Target, req.Score); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
