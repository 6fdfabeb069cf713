package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	log  zerolog.Logger
}

// MatchRow is a stored match summary
type MatchRow struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Seed      int64     `json:"seed"`
	Dim       int       `json:"dimension"`
	Ticks     int       `json:"ticks"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Winner    string    `json:"winner"`
}

// MatchPlayerRow is one player's line in a stored match
type MatchPlayerRow struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Team     string `json:"team,omitempty"`
	Place    int    `json:"place"`
	Score    int    `json:"score"`
	Kills    int    `json:"kills"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string, logger zerolog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, log: logger.With().Str("component", "db").Logger()}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		seed INTEGER NOT NULL,
		dimension INTEGER NOT NULL,
		ticks INTEGER NOT NULL DEFAULT 0,
		winner TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id TEXT NOT NULL REFERENCES matches(id),
		player_id TEXT NOT NULL,
		nickname TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		place INTEGER NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, player_id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id TEXT NOT NULL DEFAULT '',
		match_id TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_nickname ON match_players(nickname);
	CREATE INDEX IF NOT EXISTS idx_events_type_time ON analytics_events(event_type, created_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		db.log.Error().Err(err).Msg("migration failed")
	}
	return err
}

// RecordMatch stores a finished match and its standings in one
// transaction. It implements MatchRecorder.
func (db *DB) RecordMatch(res MatchResult) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	winner := ""
	switch {
	case len(res.Teams) > 0:
		winner = res.Teams[0].Name
	case len(res.Players) > 0:
		winner = res.Players[0].Nickname
	}

	_, err = tx.Exec(
		`INSERT INTO matches (id, mode, seed, dimension, ticks, winner, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.MatchID, res.Mode.String(), res.Seed, res.Dim, res.Ticks, winner,
		res.StartedAt.UTC(), res.EndedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting match %s: %w", res.MatchID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO match_players (match_id, player_id, nickname, team, place, score, kills)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range res.Players {
		if _, err := stmt.Exec(res.MatchID, p.ID, p.Nickname, p.Team, i+1, p.Score, p.Kills); err != nil {
			return fmt.Errorf("inserting player %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// RecentMatches returns the newest stored matches first
func (db *DB) RecentMatches(limit int) ([]MatchRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, mode, seed, dimension, ticks, winner, started_at, ended_at
		 FROM matches ORDER BY ended_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var m MatchRow
		if err := rows.Scan(&m.ID, &m.Mode, &m.Seed, &m.Dim, &m.Ticks, &m.Winner, &m.StartedAt, &m.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MatchPlayers returns the standings of a stored match
func (db *DB) MatchPlayers(matchID string) ([]MatchPlayerRow, error) {
	rows, err := db.conn.Query(
		`SELECT match_id, player_id, nickname, team, place, score, kills
		 FROM match_players WHERE match_id = ? ORDER BY place`, matchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchPlayerRow
	for rows.Next() {
		var p MatchPlayerRow
		if err := rows.Scan(&p.MatchID, &p.PlayerID, &p.Nickname, &p.Team, &p.Place, &p.Score, &p.Kills); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetSetting returns a stored setting or "" when absent
func (db *DB) GetSetting(key string) string {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.log.Error().Err(err).Str("key", key).Msg("read setting")
	}
	return v
}

// SetSetting stores a setting, replacing any previous value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
