package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "stereotanks-server"

// Metrics holds the server's instruments. The global meter is a no-op
// unless a provider is installed. A nil *Metrics records nothing.
type Metrics struct {
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	accepted     metric.Int64Counter
	rejected     metric.Int64Counter
	dropped      metric.Int64Counter
	droppedConns metric.Int64Counter
	connections  metric.Int64ObservableGauge
}

// NewMetrics creates instruments on the global meter
func NewMetrics() (*Metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &Metrics{}

	var err error
	out.ticks, err = m.Int64Counter(
		"game.ticks",
		metric.WithDescription("Simulation ticks processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.tickDuration, err = m.Float64Histogram(
		"game.tick.duration",
		metric.WithDescription("Time spent simulating and serializing one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	out.accepted, err = m.Int64Counter(
		"net.connections.accepted",
		metric.WithDescription("Handshakes that were accepted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating accepted counter: %w", err)
	}

	out.rejected, err = m.Int64Counter(
		"net.connections.rejected",
		metric.WithDescription("Handshakes that were rejected, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	out.dropped, err = m.Int64Counter(
		"game.actions.dropped",
		metric.WithDescription("Player actions answered with a warning instead of being queued"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped actions counter: %w", err)
	}

	out.droppedConns, err = m.Int64Counter(
		"net.connections.dropped",
		metric.WithDescription("Connections closed by the server, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped connections counter: %w", err)
	}

	out.connections, err = m.Int64ObservableGauge(
		"net.connections.open",
		metric.WithDescription("Currently accepted connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating connections gauge: %w", err)
	}
	return out, nil
}

// ObserveConnections reports the open connection count on every
// collection
func (m *Metrics) ObserveConnections(count func() int) error {
	if m == nil {
		return nil
	}
	_, err := otel.Meter(instrumentationName).RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.connections, int64(count()))
			return nil
		},
		m.connections,
	)
	return err
}

func (m *Metrics) TickDone(d time.Duration) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.ticks.Add(ctx, 1)
	m.tickDuration.Record(ctx, float64(d)/float64(time.Millisecond))
}

func (m *Metrics) ConnectionAccepted(spectator bool) {
	if m == nil {
		return
	}
	m.accepted.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("spectator", spectator)))
}

func (m *Metrics) ConnectionRejected(reason RejectReason) {
	if m == nil {
		return
	}
	m.rejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", string(reason))))
}

func (m *Metrics) ConnectionDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedConns.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) ActionDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}
