package storage

import (
	"context"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/registry"
)

// Factory creates a Storage backend from configuration.
type Factory func(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error)

var factories = registry.New[Factory]()

// RegisterFactory registers a backend factory for the given provider name.
// Backend packages call this from an init function.
func RegisterFactory(name string, f Factory) {
	factories.Register(name, f)
}

// New creates the Storage backend selected by cfg.Provider.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.InvalidConfig("storage", err.Error()).WithCause(err)
	}
	if log == nil {
		log = logger.Nop()
	}
	l := log.WithComponent("storage")

	f, ok := factories.Lookup(cfg.Provider)
	if !ok {
		return nil, errors.InvalidConfig("storage.provider", "provider "+cfg.Provider+" is not registered")
	}

	l.Info("initializing storage", logger.Fields("provider", cfg.Provider))
	return f(ctx, cfg, l)
}
