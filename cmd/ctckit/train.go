package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/ctckit/bootstrap"
	"github.com/kbukum/ctckit/database"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/observability"
	"github.com/kbukum/ctckit/runner"
	"github.com/kbukum/ctckit/tracker"
)

func newTrainCmd() *cobra.Command {
	var (
		flags  configFlags
		resume string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the downstream on the corpus train split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg runner.Config
			if err := flags.load(&cfg); err != nil {
				return err
			}
			app, err := bootstrap.NewApp(&cfg)
			if err != nil {
				return err
			}
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				r, err := newRunner(ctx, app, "train")
				if err != nil {
					return err
				}
				if resume != "" {
					if err := r.Resume(ctx, resume); err != nil {
						return err
					}
				}
				return r.Train(ctx)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&resume, "resume", "", "checkpoint name to resume from, e.g. states-2000.ckpt")
	return cmd
}

// newRunner installs telemetry, opens the run store when enabled and builds
// the runner with console, OpenTelemetry and store writers. Cleanup is
// registered as stop hooks on app.
func newRunner(ctx context.Context, app *bootstrap.App[*runner.Config], command string) (*runner.Runner, error) {
	cfg := app.Cfg
	log := app.Logger

	shutdown, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, err
	}
	app.OnStop(bootstrap.Hook(shutdown))

	meter, err := tracker.NewMeter(observability.Meter("github.com/kbukum/ctckit/tracker"))
	if err != nil {
		return nil, err
	}
	writers := []tracker.Writer{tracker.NewConsole(log), meter}

	var opts []runner.Option
	if cfg.Database.Enabled {
		db, err := database.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		app.OnStop(func(context.Context) error { return db.Close() })

		store, err := tracker.NewStore(db)
		if err != nil {
			return nil, err
		}
		run, err := store.StartRun(ctx, cfg.Name, command)
		if err != nil {
			return nil, err
		}
		app.OnStop(run.Finish)
		writers = append(writers, run)
		opts = append(opts, runner.WithRunID(run.RunID().String()))
		log.Info("recording run", logger.Fields("run_id", run.RunID().String(), "database", cfg.Database.Path))
	}

	opts = append(opts, runner.WithLogger(log), runner.WithWriter(tracker.Multi(writers...)))
	return runner.New(ctx, *cfg, opts...)
}
