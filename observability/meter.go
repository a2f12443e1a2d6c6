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

	"github.com/kbukum/ctckit/logger"
)

// InitMeter initializes the global OpenTelemetry meter provider.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// TrainingMetrics holds the instruments recorded by the training loop.
type TrainingMetrics struct {
	stepsTotal   metric.Int64Counter
	stepDuration metric.Float64Histogram
	evalDuration metric.Float64Histogram
	errorTotal   metric.Int64Counter
}

// NewTrainingMetrics creates the training instruments on the given meter.
func NewTrainingMetrics(meter metric.Meter) (*TrainingMetrics, error) {
	stepsTotal, err := meter.Int64Counter("ctc.steps.total",
		metric.WithDescription("Total number of forward passes by split"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ctc.steps.total counter: %w", err)
	}

	stepDuration, err := meter.Float64Histogram("ctc.step.duration",
		metric.WithDescription("Duration of one batch step in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ctc.step.duration histogram: %w", err)
	}

	evalDuration, err := meter.Float64Histogram("ctc.evaluation.duration",
		metric.WithDescription("Duration of a full evaluation pass in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ctc.evaluation.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("ctc.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ctc.errors.total counter: %w", err)
	}

	return &TrainingMetrics{
		stepsTotal:   stepsTotal,
		stepDuration: stepDuration,
		evalDuration: evalDuration,
		errorTotal:   errorTotal,
	}, nil
}

// RecordStep records one batch step on split.
func (m *TrainingMetrics) RecordStep(ctx context.Context, split string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrSplit, split))
	m.stepsTotal.Add(ctx, 1, attrs)
	m.stepDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordEvaluation records a completed evaluation pass over split.
func (m *TrainingMetrics) RecordEvaluation(ctx context.Context, split string, duration time.Duration) {
	m.evalDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrSplit, split),
	))
}

// RecordError records an error by code and component.
func (m *TrainingMetrics) RecordError(ctx context.Context, code, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}
