package main

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "replays")
	w, err := NewReplayWriter(dir, "m1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "m1.replay"), w.Path())

	require.NoError(t, w.WriteHeader(LobbyDataPayload{MatchID: "m1", Mode: "classic", GridDimension: 8, Players: []LobbyPlayer{}}))
	for tick := 1; tick <= 3; tick++ {
		state := SpectatorGameState{ID: "s", Tick: tick, Map: SpectatorMap{GridDimensions: [2]int{8, 8}}}
		require.NoError(t, w.WriteFrame(tick, state))
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "closing twice is harmless")
	assert.ErrorIs(t, w.WriteFrame(4, SpectatorGameState{}), ErrReplayClosed)

	hdr, frames, err := ReadReplay(w.Path())
	require.NoError(t, err)
	assert.Equal(t, replayVersion, hdr.Version)
	assert.Equal(t, "m1", hdr.Lobby.MatchID)
	assert.Equal(t, 8, hdr.Lobby.GridDimension)
	require.Len(t, frames, 3)
	assert.EqualValues(t, 3, frames[2]["tick"])

	state, ok := frames[0]["state"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, state["tick"])
}

func TestReplayFromGame(t *testing.T) {
	cfg := DefaultMatchConfig(ModeClassic)
	cfg.Dim = 10
	cfg.MaxPlayers = 1
	cfg.Ticks = 3
	g := NewGame(cfg, zerolog.Nop())
	w, err := NewReplayWriter(t.TempDir(), g.MatchID())
	require.NoError(t, err)
	g.SetReplay(w)

	p, _ := g.Join(Handshake{Nickname: "SOLO"})
	g.AddViewer(&mockBroadcaster{}, Viewer{PlayerID: p.ID}, false)
	for i := 0; i < 3; i++ {
		g.update()
	}

	hdr, frames, err := ReadReplay(w.Path())
	require.NoError(t, err, "the match end closes the replay")
	require.Len(t, hdr.Lobby.Players, 1)
	assert.Equal(t, "SOLO", hdr.Lobby.Players[0].Nickname)
	assert.Len(t, frames, 3)
}

func TestReadReplayMissingFile(t *testing.T) {
	_, _, err := ReadReplay(filepath.Join(t.TempDir(), "nope.replay"))
	assert.Error(t, err)
}
