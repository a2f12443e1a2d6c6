// Package tracker records experiment scalars and text samples.
//
// Writer is the logging contract used by the expert and the runner.
// Backends: Console (structured log lines), Store (SQLite through gorm),
// Meter (OpenTelemetry gauges) and Multi (fan-out). Board serves a Store
// over HTTP.
package tracker

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/ctckit/logger"
)

// Writer receives scalar and text logs keyed by tag and global step.
type Writer interface {
	AddScalar(ctx context.Context, tag string, value float64, step int) error
	AddText(ctx context.Context, tag, text string, step int) error
}

// Console writes every entry as a log line.
type Console struct {
	log *logger.Logger
}

// NewConsole creates a Console writer.
func NewConsole(log *logger.Logger) *Console {
	return &Console{log: log.WithComponent("tracker")}
}

// AddScalar implements Writer.
func (c *Console) AddScalar(_ context.Context, tag string, value float64, step int) error {
	c.log.Info("scalar", logger.Fields("tag", tag, "value", value, "step", step))
	return nil
}

// AddText implements Writer.
func (c *Console) AddText(_ context.Context, tag, text string, step int) error {
	c.log.Debug("text", logger.Fields("tag", tag, "text", text, "step", step))
	return nil
}

type multi []Writer

// Multi fans every call out to all writers and joins their errors.
func Multi(writers ...Writer) Writer {
	return multi(writers)
}

func (m multi) AddScalar(ctx context.Context, tag string, value float64, step int) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.AddScalar(ctx, tag, value, step))
	}
	return stderrors.Join(errs...)
}

func (m multi) AddText(ctx context.Context, tag, text string, step int) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.AddText(ctx, tag, text, step))
	}
	return stderrors.Join(errs...)
}
