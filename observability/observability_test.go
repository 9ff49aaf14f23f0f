package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewFeedMetricsNoop(t *testing.T) {
	m, err := NewFeedMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordOpen(ctx, "users")
	m.RecordDelivery(ctx, "users", "insert", "")
	m.RecordPoll(ctx, "users", 10*time.Millisecond)
	m.RecordClose(ctx, "users")
}

func TestNilFeedMetrics(t *testing.T) {
	var m *FeedMetrics
	ctx := context.Background()
	m.RecordOpen(ctx, "users")
	m.RecordDelivery(ctx, "users", "error", "FEED_ABORTED")
	m.RecordPoll(ctx, "users", time.Millisecond)
	m.RecordClose(ctx, "users")
}

func TestFeedMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewFeedMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.RecordOpen(ctx, "users")
	m.RecordOpen(ctx, "users")
	m.RecordClose(ctx, "users")
	m.RecordDelivery(ctx, "users", "insert", "")
	m.RecordDelivery(ctx, "users", "error", "FEED_ABORTED")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
	}

	if sums["feed.opened"] != 2 {
		t.Errorf("expected feed.opened=2, got %d", sums["feed.opened"])
	}
	if sums["feed.active"] != 1 {
		t.Errorf("expected feed.active=1, got %d", sums["feed.active"])
	}
	if sums["feed.deliveries"] != 2 {
		t.Errorf("expected feed.deliveries=2, got %d", sums["feed.deliveries"])
	}
}

func TestStartSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), SpanFeedOpen)
	EndSpan(span, errors.New("boom"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != SpanFeedOpen {
		t.Errorf("expected span name %q, got %q", SpanFeedOpen, spans[0].Name())
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
