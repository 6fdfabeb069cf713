package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	srv      *httptest.Server
	hub      *Hub
	sessions *SessionManager
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	cfg := &Config{PublicURL: "ws://tanks.example/", Match: DefaultMatchConfig(ModeClassic)}
	cfg.Match.Dim = 10
	cfg.Match.Seed = 1
	cfg.Match.MaxPlayers = 2
	cfg.Match.PingDelay = 20 * time.Millisecond
	cfg.Match.PingInterval = 20 * time.Millisecond
	cfg.Match.NoPongTimeout = 50 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	sm := NewSessionManager(cfg.Match, "", zerolog.Nop())
	_, err := sm.CreateSession()
	require.NoError(t, err)
	hub := NewHub(cfg, sm, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRoutes(ctx, hub))
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)
	t.Cleanup(func() { hub.CloseAll(closeShutdown) })
	return &testServer{srv: srv, hub: hub, sessions: sm}
}

func (ts *testServer) dial(t *testing.T, pathAndQuery string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + pathAndQuery
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) InEnvelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var env InEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// readType skips packets until one of the given type arrives, answering
// pings along the way
func readType(t *testing.T, ws *websocket.Conn, typ string) InEnvelope {
	t.Helper()
	for {
		env := readEnvelope(t, ws)
		if env.Type == typ {
			return env
		}
		if env.Type == PktPing {
			sendPacket(t, ws, PktPong, nil)
		}
	}
}

func sendPacket(t *testing.T, ws *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(Envelope{Type: typ, Payload: payload}))
}

// readClose reads until the socket fails and returns the close frame
func readClose(t *testing.T, ws *websocket.Conn) *websocket.CloseError {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			require.True(t, errors.As(err, &ce), "expected a close frame, got %v", err)
			return ce
		}
	}
}

func expectRejected(t *testing.T, ws *websocket.Conn, reason RejectReason) {
	t.Helper()
	env := readEnvelope(t, ws)
	require.Equal(t, PktConnectionRejected, env.Type)
	var pl ConnectionRejectedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &pl))
	assert.Equal(t, reason, pl.Reason)
	ce := readClose(t, ws)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
}

func warningMessage(t *testing.T, env InEnvelope) string {
	t.Helper()
	var pl CustomWarningPayload
	require.NoError(t, json.Unmarshal(env.Payload, &pl))
	return pl.Message
}

func TestRejectInvalidPath(t *testing.T) {
	ts := newTestServer(t, nil)
	ws := ts.dial(t, "/lobby?nickname=alice&playerType=human")
	expectRejected(t, ws, RejectInvalidURLPath)
	assert.Eventually(t, func() bool { return ts.hub.TotalConns() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRejectInvalidEnumFormat(t *testing.T) {
	ts := newTestServer(t, nil)
	ws := ts.dial(t, "/?nickname=alice&playerType=human&enumSerializationFormat=hex")
	expectRejected(t, ws, RejectInvalidEnumFormat)
}

func TestJoinCodeAttemptsBlock(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.JoinCode = "secret" })

	for i := 0; i < maxFailedAttempts; i++ {
		ws := ts.dial(t, "/?nickname=alice&playerType=human&joinCode=wrong")
		expectRejected(t, ws, RejectInvalidJoinCode)
		assert.Eventually(t, func() bool { return ts.hub.TotalConns() == 0 }, time.Second, 5*time.Millisecond)
	}
	ws := ts.dial(t, "/?nickname=alice&playerType=human&joinCode=secret")
	expectRejected(t, ws, RejectTooManyAttempts)
}

func TestJoinCodeAccepted(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.JoinCode = "secret" })
	ws := ts.dial(t, "/?nickname=alice&playerType=human&joinCode=SECRET")
	env := readEnvelope(t, ws)
	assert.Equal(t, PktConnectionAccepted, env.Type)
}

func TestPlayerSession(t *testing.T) {
	ts := newTestServer(t, nil)
	ws := ts.dial(t, "/?nickname=alice&playerType=human&enumSerializationFormat=string")

	env := readEnvelope(t, ws)
	require.Equal(t, PktConnectionAccepted, env.Type)
	var accepted ConnectionAcceptedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &accepted))
	assert.NotEmpty(t, accepted.PlayerID)
	assert.False(t, accepted.Spectator)
	assert.Equal(t, "String", accepted.EnumFormat)

	env = readType(t, ws, PktLobbyData)
	var lobby LobbyDataPayload
	require.NoError(t, json.Unmarshal(env.Payload, &lobby))
	assert.Equal(t, accepted.PlayerID, lobby.PlayerID)
	require.Len(t, lobby.Players, 1)
	assert.Equal(t, "ALICE", lobby.Players[0].Nickname)
	assert.Equal(t, 1, ts.hub.ConnCount())

	sendPacket(t, ws, PktGameStatusRequest, nil)
	env = readType(t, ws, PktGameStatus)
	var status GameStatusPayload
	require.NoError(t, json.Unmarshal(env.Payload, &status))
	assert.Equal(t, "inLobby", status.Status)

	sendPacket(t, ws, "bogus", nil)
	env = readType(t, ws, PktCustomWarning)
	assert.Equal(t, "Unknown packet type: bogus", warningMessage(t, env))

	sendPacket(t, ws, PktMovement, map[string]any{"direction": "forward"})
	env = readType(t, ws, PktCustomWarning)
	assert.Equal(t, "Game is not running", warningMessage(t, env))
}

func TestSpectatorCannotAct(t *testing.T) {
	ts := newTestServer(t, nil)
	ws := ts.dial(t, "/spectator")

	env := readEnvelope(t, ws)
	require.Equal(t, PktConnectionAccepted, env.Type)
	var accepted ConnectionAcceptedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &accepted))
	assert.True(t, accepted.Spectator)

	sendPacket(t, ws, PktPass, nil)
	env = readType(t, ws, PktCustomWarning)
	assert.Equal(t, "Spectators cannot perform actions", warningMessage(t, env))
	assert.Equal(t, 0, ts.sessions.Current().PlayerCount())
}

func TestGameInProgressRejectsLateJoin(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.Match.MaxPlayers = 1 })
	first := ts.dial(t, "/?nickname=alice&playerType=human")
	readType(t, first, PktGameStarting)

	second := ts.dial(t, "/?nickname=bob&playerType=human")
	expectRejected(t, second, RejectGameInProgress)
}

func TestNoPongClosesConnection(t *testing.T) {
	ts := newTestServer(t, nil)
	ws := ts.dial(t, "/?nickname=alice&playerType=human")
	require.Equal(t, PktConnectionAccepted, readEnvelope(t, ws).Type)
	require.Equal(t, 1, ts.sessions.Current().PlayerCount())

	ce := readClose(t, ws)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
	assert.Equal(t, closeNoPong, ce.Text)

	game := ts.sessions.Current()
	assert.Eventually(t, func() bool {
		return game.PlayerCount() == 0 && ts.hub.ConnCount() == 0 && ts.hub.TotalConns() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPongKeepsConnectionAlive(t *testing.T) {
	ts := newTestServer(t, nil)
	ws := ts.dial(t, "/?nickname=alice&playerType=human")

	pings := 0
	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		env := readType(t, ws, PktPing)
		var pl PingPayload
		require.NoError(t, json.Unmarshal(env.Payload, &pl))
		pings++
		assert.Positive(t, pl.ID)
		sendPacket(t, ws, PktPong, nil)
	}
	assert.Greater(t, pings, 3)
	assert.Equal(t, 1, ts.hub.ConnCount())
	assert.Equal(t, 1, ts.sessions.Current().PlayerCount())
}

func TestCloseAllSendsReason(t *testing.T) {
	ts := newTestServer(t, nil)
	ws := ts.dial(t, "/?nickname=alice&playerType=human")
	require.Equal(t, PktConnectionAccepted, readEnvelope(t, ws).Type)
	require.Eventually(t, func() bool { return ts.hub.ConnCount() == 1 }, time.Second, 5*time.Millisecond)

	ts.hub.CloseAll(closeShutdown)
	ce := readClose(t, ws)
	assert.Equal(t, closeShutdown, ce.Text)
	assert.Equal(t, 0, ts.hub.ConnCount())
}

func TestPlainHTTPRequestToSocketEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJoinQRCode(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.JoinCode = "abc" })
	resp, err := http.Get(ts.srv.URL + "/join.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestAdminAPI(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	ts := newTestServer(t, nil)
	ts.hub.SetStore(nil, NewAuth(nil, string(hash), zerolog.Nop()), nil)

	post := func(path, token string, body any) *http.Response {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPost, ts.srv.URL+path, bytes.NewReader(b))
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := post("/admin/login", "", map[string]string{"password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post("/admin/login", "", map[string]string{"password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/admin/status", nil)
	require.NoError(t, err)
	unauth, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	unauth.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, unauth.StatusCode)

	req.Header.Set("Authorization", "Bearer "+login.Token)
	statusResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)
	var status adminStatusResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	assert.Equal(t, ts.sessions.Current().MatchID(), status.Game.MatchID)
	assert.Len(t, status.Sessions, 1)

	resp = post("/admin/abilities/ready", login.Token, map[string]string{"playerId": "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = post("/admin/score", login.Token, map[string]any{"target": "ghost", "score": 5})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminAPIDisabled(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.srv.URL + "/admin/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.srv.URL+"/admin/login", "application/json", strings.NewReader(`{"password":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
