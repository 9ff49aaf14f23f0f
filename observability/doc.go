// Package observability provides OpenTelemetry tracing and metrics integration.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("feedserver"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanFeedOpen)
//	defer span.End()
//
// Metrics:
//
//	cfg := observability.DefaultMeterConfig("feedserver")
//	mp, err := observability.InitMeter(ctx, &cfg)
//	defer mp.Shutdown(ctx)
//
//	m := observability.DefaultFeedMetrics()
//	m.RecordOpen(ctx, "users")
//
// Without InitTracer/InitMeter the global providers are no-ops.
package observability
