package tracker

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/ctckit/errors"
)

// AttrTag is the attribute carrying a scalar's tag.
const AttrTag = "ctc.tag"

// Meter exports scalars as an OpenTelemetry gauge. Text is not exported.
type Meter struct {
	gauge metric.Float64Gauge
	step  metric.Int64Gauge
}

// NewMeter creates the gauges on meter.
func NewMeter(meter metric.Meter) (*Meter, error) {
	gauge, err := meter.Float64Gauge("ctc.scalar",
		metric.WithDescription("Last logged value of each tracker tag"),
	)
	if err != nil {
		return nil, errors.Internal(err)
	}
	step, err := meter.Int64Gauge("ctc.global_step",
		metric.WithDescription("Global step of the last logged scalar"),
	)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &Meter{gauge: gauge, step: step}, nil
}

// AddScalar implements Writer.
func (m *Meter) AddScalar(ctx context.Context, tag string, value float64, step int) error {
	m.gauge.Record(ctx, value, metric.WithAttributes(attribute.String(AttrTag, tag)))
	m.step.Record(ctx, int64(step))
	return nil
}

// AddText implements Writer.
func (m *Meter) AddText(context.Context, string, string, int) error { return nil }
