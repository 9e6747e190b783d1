// Package observe provides OpenTelemetry metrics for the bot. Metrics are
// exported through a Prometheus bridge installed by InitProvider; tests use
// NewMetrics with their own MeterProvider.
package observe

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/osa030/tunebox/internal/app/resolver"
)

const meterName = "github.com/osa030/tunebox"

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// Metrics holds the metric instruments of the bot.
type Metrics struct {
	meter metric.Meter

	// PlaybackEvents counts playback events by attribute "event".
	PlaybackEvents metric.Int64Counter

	// Commands counts slash command invocations by attribute "command".
	Commands metric.Int64Counter

	// ResolveDuration tracks query resolution latency by attributes
	// "provider" and "status".
	ResolveDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.PlaybackEvents, err = m.Int64Counter("tunebox.playback.events",
		metric.WithDescription("Playback events by type."),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create playback events counter")
	}
	if met.Commands, err = m.Int64Counter("tunebox.commands",
		metric.WithDescription("Slash command invocations by command."),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create commands counter")
	}
	if met.ResolveDuration, err = m.Float64Histogram("tunebox.resolve.duration",
		metric.WithDescription("Latency of resolving a query into tracks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create resolve histogram")
	}

	return met, nil
}

// RegisterGauges reports the number of active players and queued tracks on
// every collection.
func (m *Metrics) RegisterGauges(activePlayers, queuedTracks func() int) error {
	players, err := m.meter.Int64ObservableGauge("tunebox.active_players",
		metric.WithDescription("Guilds with a running audio session."),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create active players gauge")
	}
	queued, err := m.meter.Int64ObservableGauge("tunebox.queued_tracks",
		metric.WithDescription("Tracks waiting in guild queues."),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create queued tracks gauge")
	}

	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(players, int64(activePlayers()))
		o.ObserveInt64(queued, int64(queuedTracks()))
		return nil
	}, players, queued)
	if err != nil {
		return errors.Wrap(err, "failed to register gauge callback")
	}
	return nil
}

// RecordPlaybackEvent counts one playback event.
func (m *Metrics) RecordPlaybackEvent(ctx context.Context, event string) {
	m.PlaybackEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordCommand counts one command invocation.
func (m *Metrics) RecordCommand(ctx context.Context, command string) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command)))
}

// ObserveResolve records one resolve outcome. It matches resolver.ObserveFunc.
func (m *Metrics) ObserveResolve(provider string, elapsed time.Duration, err error) {
	m.ResolveDuration.Record(context.Background(), elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", resolveStatus(err)),
		),
	)
}

func resolveStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resolver.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
