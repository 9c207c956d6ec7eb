package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/streamkit/logger"
)

// InitMeter installs a global meter provider exporting over OTLP HTTP.
func InitMeter(ctx context.Context, config *Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.WithComponent("observability").Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names.
const (
	MetricEvents          = "stream.events"
	MetricParseErrors     = "stream.parse_errors"
	MetricReconnects      = "stream.reconnects"
	MetricTransitions     = "stream.transitions"
	MetricConnectDuration = "stream.connect.duration"
)

// StreamMetrics holds the instruments recorded by stream clients.
// A nil *StreamMetrics records nothing.
type StreamMetrics struct {
	events          metric.Int64Counter
	parseErrors     metric.Int64Counter
	reconnects      metric.Int64Counter
	transitions     metric.Int64Counter
	connectDuration metric.Float64Histogram
}

// NewStreamMetrics creates stream instruments on the given meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	events, err := meter.Int64Counter(MetricEvents,
		metric.WithDescription("Events dispatched to listeners"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricEvents, err)
	}

	parseErrors, err := meter.Int64Counter(MetricParseErrors,
		metric.WithDescription("Frames that failed to decode"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricParseErrors, err)
	}

	reconnects, err := meter.Int64Counter(MetricReconnects,
		metric.WithDescription("Scheduled reconnect attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricReconnects, err)
	}

	transitions, err := meter.Int64Counter(MetricTransitions,
		metric.WithDescription("Connection status transitions by target status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTransitions, err)
	}

	connectDuration, err := meter.Float64Histogram(MetricConnectDuration,
		metric.WithDescription("Time from connect to open or failure"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricConnectDuration, err)
	}

	return &StreamMetrics{
		events:          events,
		parseErrors:     parseErrors,
		reconnects:      reconnects,
		transitions:     transitions,
		connectDuration: connectDuration,
	}, nil
}

// RecordEvent counts one dispatched event.
func (m *StreamMetrics) RecordEvent(ctx context.Context, client, eventType string) {
	if m == nil {
		return
	}
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClient, client),
		attribute.String(AttrEventType, eventType),
	))
}

// RecordParseError counts one undecodable frame.
func (m *StreamMetrics) RecordParseError(ctx context.Context, client, dialect string) {
	if m == nil {
		return
	}
	m.parseErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClient, client),
		attribute.String(AttrDialect, dialect),
	))
}

// RecordReconnect counts one scheduled reconnect.
func (m *StreamMetrics) RecordReconnect(ctx context.Context, client string, attempt int) {
	if m == nil {
		return
	}
	m.reconnects.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClient, client),
		attribute.Int(AttrAttempt, attempt),
	))
}

// RecordTransition counts a move into status.
func (m *StreamMetrics) RecordTransition(ctx context.Context, client, status string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClient, client),
		attribute.String(AttrStatus, status),
	))
}

// RecordConnect records how long a connection attempt took and how it ended.
func (m *StreamMetrics) RecordConnect(ctx context.Context, client, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.connectDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(AttrClient, client),
		attribute.String(AttrOutcome, outcome),
	))
}
