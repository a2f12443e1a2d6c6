package bootstrap

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
)

// App runs one command with a typed config.
type App[C Config] struct {
	Name   string
	Cfg    C
	Logger *logger.Logger

	gracefulTimeout time.Duration
	onStart         []Hook
	onStop          []Hook
}

// NewApp applies defaults, validates cfg and initializes the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		if _, ok := errors.AsAppError(err); ok {
			return nil, err
		}
		return nil, errors.InvalidConfig("", err.Error()).WithCause(err)
	}
	base := cfg.GetRunConfig()

	app := &App[C]{
		Name:            base.Name,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}
	return app, nil
}

// RunTask runs start hooks, then task with a context canceled on
// SIGINT/SIGTERM, then the stop hooks. The task error takes precedence over
// stop errors.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	a.Logger.Info("starting", logger.Fields("name", a.Name))
	if err := runHooks(ctx, a.onStart); err != nil {
		return stderrors.Join(err, a.stop())
	}

	taskCtx, cancel := a.signalContext(ctx)
	defer cancel()

	taskErr := task(taskCtx)
	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

// Run runs start hooks, blocks until a signal or ctx is canceled, then runs
// the stop hooks. Use it for long-running commands such as the board.
func (a *App[C]) Run(ctx context.Context) error {
	return a.RunTask(ctx, func(ctx context.Context) error {
		a.Logger.Info("ready, waiting for shutdown signal")
		<-ctx.Done()
		return nil
	})
}

// signalContext derives a context canceled on SIGINT/SIGTERM.
func (a *App[C]) signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	taskCtx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, canceling", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()
	return taskCtx, cancel
}

// stop runs the stop hooks in reverse order within the graceful timeout.
// Every hook runs even if an earlier one fails.
func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error
	for i := len(a.onStop) - 1; i >= 0; i-- {
		if err := a.onStop[i](ctx); err != nil {
			a.Logger.Error("stop hook failed", logger.ErrorFields("stop", err))
			errs = append(errs, err)
		}
	}
	a.Logger.Info("shutdown complete")
	return stderrors.Join(errs...)
}
