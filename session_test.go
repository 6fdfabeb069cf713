package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionShiftsSeed(t *testing.T) {
	cfg := DefaultMatchConfig(ModeClassic)
	cfg.Dim = 10
	cfg.Seed = 100
	sm := NewSessionManager(cfg, "", zerolog.Nop())

	first, err := sm.CreateSession()
	require.NoError(t, err)
	assert.Nil(t, first.Replay)
	second, err := sm.CreateSession()
	require.NoError(t, err)

	assert.Equal(t, int64(100), first.Seed)
	assert.Equal(t, int64(101), second.Seed)
	assert.Same(t, second.Game, sm.Current())

	list := sm.ListSessions()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, "inLobby", list[1].Status)
}

func TestSessionHistoryIsBounded(t *testing.T) {
	cfg := DefaultMatchConfig(ModeClassic)
	cfg.Dim = 6
	sm := NewSessionManager(cfg, "", zerolog.Nop())
	for i := 0; i < maxHistory+5; i++ {
		_, err := sm.CreateSession()
		require.NoError(t, err)
	}
	assert.Len(t, sm.ListSessions(), maxHistory+1)
}

func TestSessionRunRotatesMatches(t *testing.T) {
	cfg := DefaultMatchConfig(ModeClassic)
	cfg.Dim = 8
	cfg.Seed = 1
	cfg.MaxPlayers = 1
	cfg.Ticks = 2
	cfg.TickInterval = 5 * time.Millisecond
	dir := t.TempDir()

	sm := NewSessionManager(cfg, dir, zerolog.Nop())
	sm.delay = 10 * time.Millisecond
	ended := make(chan *Game, 4)
	sm.OnEnd(func(g *Game) { ended <- g })

	sess, err := sm.CreateSession()
	require.NoError(t, err)
	first := sess.Game
	p, reason := first.Join(Handshake{Nickname: "SOLO"})
	require.Empty(t, reason)
	first.AddViewer(&mockBroadcaster{}, Viewer{PlayerID: p.ID}, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.Run(ctx) }()

	select {
	case g := <-ended:
		assert.Same(t, first, g)
	case <-time.After(2 * time.Second):
		t.Fatal("match never ended")
	}
	assert.Eventually(t, func() bool { return sm.Current() != first }, time.Second, 5*time.Millisecond)

	_, frames, err := ReadReplay(filepath.Join(dir, first.MatchID()+".replay"))
	require.NoError(t, err)
	assert.Len(t, frames, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
