package main

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types stored in the event log
const (
	EvtMatchStart  = "match_start"
	EvtMatchEnd    = "match_end"
	EvtKill        = "kill"
	EvtDeath       = "death"
	EvtZoneCapture = "zone_capture"
	EvtConnect     = "connect"
	EvtDisconnect  = "disconnect"
)

const (
	analyticsBuffer     = 1024
	analyticsBatchSize  = 50
	analyticsFlushEvery = 5 * time.Second
)

// AnalyticsEvent is a single logged event
type AnalyticsEvent struct {
	Type      string
	PlayerID  string
	MatchID   string
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// Analytics is the event log: events are queued without blocking the
// tick and written in batches by a background goroutine.
type Analytics struct {
	db     *DB
	log    zerolog.Logger
	events chan AnalyticsEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewAnalytics creates and starts the background writer
func NewAnalytics(db *DB, logger zerolog.Logger) *Analytics {
	a := &Analytics{
		db:     db,
		log:    logger.With().Str("component", "analytics").Logger(),
		events: make(chan AnalyticsEvent, analyticsBuffer),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event. It implements EventSink.
func (a *Analytics) Track(evtType, playerID, matchID, data string) {
	select {
	case a.events <- AnalyticsEvent{
		Type:      evtType,
		PlayerID:  playerID,
		MatchID:   matchID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// full: drop rather than stall the tick
	}
}

// Stop flushes what is queued and stops the writer
func (a *Analytics) Stop() {
	a.once.Do(func() {
		close(a.stop)
		a.wg.Wait()
	})
}

func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, 64)
	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			for len(a.events) > 0 {
				batch = append(batch, <-a.events)
			}
			a.flush(batch)
			return
		}
	}
}

func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		a.log.Error().Err(err).Msg("begin tx")
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, player_id, match_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		a.log.Error().Err(err).Msg("prepare insert")
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		if _, err := stmt.Exec(evt.Type, evt.PlayerID, evt.MatchID, evt.Data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			a.log.Error().Err(err).Str("type", evt.Type).Msg("insert event")
		}
	}
	if err := tx.Commit(); err != nil {
		a.log.Error().Err(err).Int("events", len(events)).Msg("commit events")
	}
}

// EventCounts returns counts of each event type for the last N days
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	if a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// MatchEvents returns the logged events of one match in order
func (a *Analytics) MatchEvents(matchID string) ([]AnalyticsEvent, error) {
	if a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT event_type, player_id, match_id, data, created_at FROM analytics_events
		WHERE match_id = ? ORDER BY id
	`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalyticsEvent
	for rows.Next() {
		var e AnalyticsEvent
		var ts string
		if err := rows.Scan(&e.Type, &e.PlayerID, &e.MatchID, &e.Data, &ts); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
