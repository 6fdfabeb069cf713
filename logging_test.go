package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "test", line["component"])
	assert.Contains(t, line, "time")
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "debug", "console")
	log.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TickDone(0)
		m.ConnectionAccepted(true)
		m.ConnectionRejected(RejectGameFull)
		m.ConnectionDropped(closeNoPong)
		assert.NoError(t, m.ObserveConnections(func() int { return 0 }))
	})

	live, err := NewMetrics()
	require.NoError(t, err)
	assert.NotPanics(t, func() { live.TickDone(0) })
	assert.NoError(t, live.ObserveConnections(func() int { return 1 }))
}
