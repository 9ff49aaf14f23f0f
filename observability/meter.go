package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/changefeed/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
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

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
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

	logger.Info("meter initialized", logger.Fields(
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

// FeedMetrics holds the instruments recorded by feed cursors.
type FeedMetrics struct {
	opened       metric.Int64Counter
	active       metric.Int64UpDownCounter
	deliveries   metric.Int64Counter
	pollDuration metric.Float64Histogram
}

// NewFeedMetrics creates feed instruments on the given meter.
func NewFeedMetrics(meter metric.Meter) (*FeedMetrics, error) {
	opened, err := meter.Int64Counter("feed.opened",
		metric.WithDescription("Total number of feeds opened"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feed.opened counter: %w", err)
	}

	active, err := meter.Int64UpDownCounter("feed.active",
		metric.WithDescription("Number of currently open feeds"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feed.active gauge: %w", err)
	}

	deliveries, err := meter.Int64Counter("feed.deliveries",
		metric.WithDescription("Items delivered to feed consumers by kind and error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feed.deliveries counter: %w", err)
	}

	pollDuration, err := meter.Float64Histogram("feed.poll.duration",
		metric.WithDescription("Time spent waiting for the next item from a source"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feed.poll.duration histogram: %w", err)
	}

	return &FeedMetrics{
		opened:       opened,
		active:       active,
		deliveries:   deliveries,
		pollDuration: pollDuration,
	}, nil
}

var (
	defaultFeedMetrics     *FeedMetrics
	defaultFeedMetricsOnce sync.Once
)

// DefaultFeedMetrics returns feed instruments bound to the global meter
// provider. They are no-ops until InitMeter (or otel.SetMeterProvider) runs.
func DefaultFeedMetrics() *FeedMetrics {
	defaultFeedMetricsOnce.Do(func() {
		m, err := NewFeedMetrics(Meter(defaultTracerName))
		if err != nil {
			logger.Warn("feed metrics unavailable", logger.Fields(logger.FieldError, err.Error()))
			return
		}
		defaultFeedMetrics = m
	})
	return defaultFeedMetrics
}

// RecordOpen counts a newly opened feed.
func (m *FeedMetrics) RecordOpen(ctx context.Context, table string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrTable, table))
	m.opened.Add(ctx, 1, attrs)
	m.active.Add(ctx, 1, attrs)
}

// RecordClose decrements the open feed count.
func (m *FeedMetrics) RecordClose(ctx context.Context, table string) {
	if m == nil {
		return
	}
	m.active.Add(ctx, -1, metric.WithAttributes(attribute.String(AttrTable, table)))
}

// RecordDelivery counts one item handed to a consumer. code is empty for changes.
func (m *FeedMetrics) RecordDelivery(ctx context.Context, table, kind, code string) {
	if m == nil {
		return
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTable, table),
		attribute.String(AttrKind, kind),
		attribute.String(AttrCode, code),
	))
}

// RecordPoll records how long a single poll waited.
func (m *FeedMetrics) RecordPoll(ctx context.Context, table string, d time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrTable, table)))
}
