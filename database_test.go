package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordMatch(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := MatchResult{
		MatchID: "m1", Mode: ModeClassic, Seed: 7, Dim: 24, Ticks: 3000,
		StartedAt: start, EndedAt: start.Add(5 * time.Minute),
		Players: []ResultPlayer{
			{ID: "p2", Nickname: "BOB", Score: 40, Kills: 3},
			{ID: "p1", Nickname: "ALICE", Score: 10, Kills: 1},
		},
	}
	second := MatchResult{
		MatchID: "m2", Mode: ModeTeam, Seed: 8, Dim: 20, Ticks: 100,
		StartedAt: start.Add(time.Hour), EndedAt: start.Add(time.Hour + time.Minute),
		Players: []ResultPlayer{{ID: "p3", Nickname: "R1", Team: "red", Score: 5}},
		Teams:   []ResultTeam{{Name: "red", Score: 5}, {Name: "blue", Score: 2}},
	}
	require.NoError(t, db.RecordMatch(first))
	require.NoError(t, db.RecordMatch(second))
	assert.Error(t, db.RecordMatch(first), "match ids are unique")

	recent, err := db.RecentMatches(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m2", recent[0].ID)
	assert.Equal(t, "red", recent[0].Winner)
	assert.Equal(t, "team", recent[0].Mode)
	assert.Equal(t, "BOB", recent[1].Winner)
	assert.Equal(t, int64(7), recent[1].Seed)
	assert.Equal(t, first.EndedAt.Unix(), recent[1].EndedAt.Unix())

	players, err := db.MatchPlayers("m1")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, 1, players[0].Place)
	assert.Equal(t, "BOB", players[0].Nickname)
	assert.Equal(t, 3, players[0].Kills)
	assert.Equal(t, 2, players[1].Place)

	limited, err := db.RecentMatches(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	assert.Empty(t, db.GetSetting("missing"))
	require.NoError(t, db.SetSetting("k", "v1"))
	require.NoError(t, db.SetSetting("k", "v2"))
	assert.Equal(t, "v2", db.GetSetting("k"))
}

func TestAnalyticsFlushesOnStop(t *testing.T) {
	db := openTestDB(t)
	a := NewAnalytics(db, zerolog.Nop())
	a.Track(EvtMatchStart, "", "m1", `{"seed":1}`)
	a.Track(EvtKill, "p1", "m1", "")
	a.Track(EvtKill, "p2", "m2", "")
	a.Stop()
	a.Stop()

	events, err := a.MatchEvents("m1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EvtMatchStart, events[0].Type)
	assert.Equal(t, `{"seed":1}`, events[0].Data)
	assert.Equal(t, "p1", events[1].PlayerID)
	assert.False(t, events[1].Timestamp.IsZero())

	counts, err := a.EventCounts(1)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[EvtKill])
	assert.Equal(t, 1, counts[EvtMatchStart])
}

func TestAnalyticsWithoutDB(t *testing.T) {
	a := NewAnalytics(nil, zerolog.Nop())
	a.Track(EvtConnect, "p1", "m1", "")
	a.Stop()
	events, err := a.MatchEvents("m1")
	assert.NoError(t, err)
	assert.Empty(t, events)
}
