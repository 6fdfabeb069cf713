package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait         = 10 * time.Second
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50

	closeNoPong      = "NoPongResponse"
	closeSendFailed  = "SendFailed"
	closeRateLimited = "RateLimited"
	closeShutdown    = "ServerShutdown"
	closeMatchEnded  = "MatchEnded"
)

// Connection is one accepted WebSocket peer bound to a game
type Connection struct {
	hub    *Hub
	game   *Game
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	log    zerolog.Logger
	remote string
	viewer Viewer

	sendTimeout time.Duration
	closeOnce   sync.Once

	msgCount   int
	msgResetAt time.Time

	pingMu        sync.Mutex
	pingID        int64
	lastPing      time.Time
	hasPong       bool
	secondAttempt bool
}

// NewConnection wraps an upgraded socket
func NewConnection(hub *Hub, conn *websocket.Conn, remote string, sendTimeout time.Duration) *Connection {
	return &Connection{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufSize),
		closed:      make(chan struct{}),
		log:         hub.log.With().Str("remote", remote).Logger(),
		remote:      remote,
		sendTimeout: sendTimeout,
	}
}

// Reject answers the handshake with a rejection and closes the socket.
// The connection never reaches a game.
func (c *Connection) Reject(reason RejectReason) {
	c.log.Info().Str("reason", string(reason)).Msg("connection rejected")
	data, err := json.Marshal(Envelope{Type: PktConnectionRejected, Payload: ConnectionRejectedPayload{Reason: reason}})
	if err == nil {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.TextMessage, data)
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(reason)),
		time.Now().Add(writeWait))
	c.conn.Close()
	c.hub.TrackDisconnect(c.remote)
}

// Accept binds the connection to its game and starts its goroutines
func (c *Connection) Accept(ctx context.Context, game *Game, v Viewer, quickJoin bool) {
	c.game = game
	c.viewer = v
	if v.PlayerID != "" {
		c.log = c.log.With().Str("player", v.PlayerID).Logger()
	}
	c.hub.Register(c)

	go c.WritePump()
	c.SendJSON(Envelope{Type: PktConnectionAccepted, Payload: ConnectionAcceptedPayload{
		PlayerID:   v.PlayerID,
		Spectator:  v.Spectator,
		EnumFormat: v.Format.String(),
	}})
	game.AddViewer(c, v, quickJoin)

	go c.ReadPump()
	go c.PingLoop(ctx)
	c.log.Info().Bool("spectator", v.Spectator).Msg("connection accepted")
}

// Close sends a close frame with the reason and removes the connection
// from its game and the hub. Safe to call more than once.
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(writeWait))
		c.conn.Close()
		if c.game != nil {
			c.game.RemoveViewer(c)
		}
		c.hub.Unregister(c)
		c.hub.TrackDisconnect(c.remote)
		c.log.Info().Str("reason", reason).Msg("connection closed")
	})
}

// ReadPump reads packets until the socket fails
func (c *Connection) ReadPump() {
	defer c.Close("ReadFailed")

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read failed")
			}
			return
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn().Msg("rate limit exceeded, disconnecting")
			c.Close(closeRateLimited)
			return
		}

		c.handlePacket(message)
	}
}

// WritePump is the only writer of data frames. Each write is bounded by
// the send timeout; a failed write ends the connection.
func (c *Connection) WritePump() {
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn().Err(err).Msg("send failed")
				c.Close(closeSendFailed)
				return
			}
		case <-c.closed:
			return
		}
	}
}

// SendJSON sends a JSON message to the peer
func (c *Connection) SendJSON(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal")
		return
	}
	c.SendRaw(data)
}

// SendRaw queues pre-marshaled bytes; packets are dropped while the
// peer is too slow to drain its buffer.
func (c *Connection) SendRaw(data []byte) {
	select {
	case <-c.closed:
	case c.send <- data:
	default:
		c.log.Debug().Msg("send buffer full, dropping packet")
	}
}

func (c *Connection) handlePacket(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.SendJSON(customWarning("Invalid packet"))
		return
	}

	switch env.Type {
	case PktPong:
		c.handlePong()
	case PktGameStatusRequest:
		c.SendJSON(Envelope{Type: PktGameStatus, Payload: c.game.Status()})
	case PktMovement, PktRotation, PktAbilityUse, PktCaptureZone, PktGoTo, PktPass:
		c.handleAction(env)
	default:
		c.SendJSON(customWarning("Unknown packet type: " + env.Type))
	}
}

func (c *Connection) handleAction(env InEnvelope) {
	if c.viewer.Spectator {
		c.SendJSON(customWarning("Spectators cannot perform actions"))
		return
	}
	var pl ActionPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &pl); err != nil {
			c.SendJSON(customWarning("Invalid action payload"))
			return
		}
	}
	if warn := c.game.SubmitAction(c.viewer.PlayerID, env.Type, pl); warn != nil {
		c.SendJSON(warn)
	}
}

func (c *Connection) handlePong() {
	c.pingMu.Lock()
	rtt := time.Since(c.lastPing)
	c.hasPong = true
	c.secondAttempt = false
	c.pingMu.Unlock()

	if c.viewer.PlayerID != "" {
		c.game.SetPing(c.viewer.PlayerID, int(rtt/time.Millisecond))
	}
}

func (c *Connection) sendPing() {
	c.pingMu.Lock()
	c.pingID++
	id := c.pingID
	c.hasPong = false
	c.lastPing = time.Now()
	c.pingMu.Unlock()

	c.SendJSON(Envelope{Type: PktPing, Payload: PingPayload{ID: id}})
}

// PingLoop keeps the peer honest: a ping every interval once the last
// one was answered, one retry after the timeout, and a NoPongResponse
// close once the retry also goes unanswered for twice the timeout.
func (c *Connection) PingLoop(ctx context.Context) {
	cfg := c.game.cfg
	select {
	case <-time.After(cfg.PingDelay):
	case <-ctx.Done():
		return
	case <-c.closed:
		return
	}
	c.sendPing()

	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}

		c.pingMu.Lock()
		hasPong, second := c.hasPong, c.secondAttempt
		elapsed := time.Since(c.lastPing)
		c.pingMu.Unlock()

		timeout := cfg.NoPongTimeout
		if second {
			timeout *= 2
		}
		switch {
		case hasPong:
			c.sendPing()
		case elapsed <= timeout:
		case !second:
			c.log.Debug().Msg("no pong, retrying ping")
			c.pingMu.Lock()
			c.secondAttempt = true
			c.pingMu.Unlock()
			c.sendPing()
		default:
			c.log.Warn().Dur("elapsed", elapsed).Msg("no pong response")
			c.hub.metrics.ConnectionDropped(closeNoPong)
			c.Close(closeNoPong)
			return
		}
	}
}
