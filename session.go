package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	rematchDelay = 5 * time.Second
	maxHistory   = 20
)

// Session is one match with its replay file
type Session struct {
	ID     string
	Seed   int64
	Game   *Game
	Replay *ReplayWriter
}

// SessionInfo summarises a session for the admin API
type SessionInfo struct {
	ID      string `json:"id"`
	Seed    int64  `json:"seed"`
	Status  string `json:"status"`
	Players int    `json:"players"`
}

// SessionManager runs matches back to back. Exactly one session is
// current; new connections join it.
type SessionManager struct {
	mu      sync.RWMutex
	current *Session
	history []SessionInfo
	created int

	cfg       MatchConfig
	replayDir string
	log       zerolog.Logger
	recorder  MatchRecorder
	events    EventSink
	metrics   *Metrics
	onEnd     func(*Game)
	delay     time.Duration
}

// NewSessionManager creates a manager; call CreateSession before use
func NewSessionManager(cfg MatchConfig, replayDir string, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		cfg:       cfg,
		replayDir: replayDir,
		log:       logger.With().Str("component", "sessions").Logger(),
		delay:     rematchDelay,
	}
}

// SetStore installs the result store and event log
func (sm *SessionManager) SetStore(rec MatchRecorder, events EventSink) {
	sm.recorder = rec
	sm.events = events
}

// SetMetrics installs metric instruments
func (sm *SessionManager) SetMetrics(m *Metrics) { sm.metrics = m }

// OnEnd registers a callback run once a finished match is retired
func (sm *SessionManager) OnEnd(fn func(*Game)) { sm.onEnd = fn }

// CreateSession builds the next match and makes it current. Each match
// after the first shifts the configured seed so maps differ.
func (sm *SessionManager) CreateSession() (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cfg := sm.cfg
	cfg.Seed += int64(sm.created)
	game := NewGame(cfg, sm.log)
	if sm.recorder != nil {
		game.SetRecorder(sm.recorder)
	}
	if sm.events != nil {
		game.SetEventSink(sm.events)
	}
	game.SetMetrics(sm.metrics)

	sess := &Session{ID: game.MatchID(), Seed: cfg.Seed, Game: game}
	if sm.replayDir != "" {
		w, err := NewReplayWriter(sm.replayDir, game.MatchID())
		if err != nil {
			return nil, fmt.Errorf("creating replay for %s: %w", game.MatchID(), err)
		}
		sess.Replay = w
		game.SetReplay(w)
	}

	if sm.current != nil {
		sm.history = append(sm.history, sm.current.info())
		if len(sm.history) > maxHistory {
			sm.history = sm.history[len(sm.history)-maxHistory:]
		}
	}
	sm.current = sess
	sm.created++
	sm.log.Info().Str("match", sess.ID).Int64("seed", cfg.Seed).Msg("session created")
	return sess, nil
}

// Current returns the match new connections join
func (sm *SessionManager) Current() *Game {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.current == nil {
		return nil
	}
	return sm.current.Game
}

func (s *Session) info() SessionInfo {
	st := s.Game.Status()
	return SessionInfo{ID: s.ID, Seed: s.Seed, Status: st.Status, Players: s.Game.PlayerCount()}
}

// ListSessions returns the current session followed by recent ones
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	list := make([]SessionInfo, 0, len(sm.history)+1)
	if sm.current != nil {
		list = append(list, sm.current.info())
	}
	for i := len(sm.history) - 1; i >= 0; i-- {
		list = append(list, sm.history[i])
	}
	return list
}

// Run drives the current match and replaces it a short while after it
// ends, until the context is cancelled.
func (sm *SessionManager) Run(ctx context.Context) error {
	for {
		sm.mu.RLock()
		sess := sm.current
		sm.mu.RUnlock()
		if sess == nil {
			return fmt.Errorf("no session to run")
		}

		go sess.Game.Run(ctx)

		select {
		case <-ctx.Done():
			sess.Game.Stop()
			sess.closeReplay(sm.log)
			return nil
		case <-sess.Game.Ended():
		}

		select {
		case <-ctx.Done():
		case <-time.After(sm.delay):
		}
		sess.Game.Stop()
		sess.closeReplay(sm.log)
		if sm.onEnd != nil {
			sm.onEnd(sess.Game)
		}
		if ctx.Err() != nil {
			return nil
		}
		if _, err := sm.CreateSession(); err != nil {
			return err
		}
	}
}

func (s *Session) closeReplay(log zerolog.Logger) {
	if s.Replay == nil {
		return
	}
	if err := s.Replay.Close(); err != nil {
		log.Error().Err(err).Str("match", s.ID).Msg("close replay")
	}
}
