// Package observability wires OpenTelemetry tracing and metrics into
// training runs.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, cfg)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanEvaluate)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, cfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewTrainingMetrics(observability.Meter("ctckit"))
//	metrics.RecordStep(ctx, "train", duration)
//
// Setup does both and returns a single shutdown function; when the
// configuration is disabled it installs nothing and the global no-op
// providers stay in place.
package observability
