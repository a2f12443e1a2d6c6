package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/ctckit/bootstrap"
	"github.com/kbukum/ctckit/config"
	"github.com/kbukum/ctckit/database"
	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/server"
	"github.com/kbukum/ctckit/tracker"
)

// boardConfig is the subset of the experiment config the board reads.
type boardConfig struct {
	config.RunConfig `yaml:",inline" mapstructure:",squash"`
	Board            server.Config   `mapstructure:"board"`
	Database         database.Config `mapstructure:"database"`
}

func (c *boardConfig) ApplyDefaults() {
	c.RunConfig.ApplyDefaults()
	c.Board.ApplyDefaults()
	c.Database.ApplyDefaults()
}

func (c *boardConfig) Validate() error {
	if err := c.RunConfig.Validate(); err != nil {
		return errors.InvalidConfig("", err.Error()).WithCause(err)
	}
	if err := c.Board.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return errors.InvalidConfig("database", err.Error()).WithCause(err)
	}
	return nil
}

func newBoardCmd() *cobra.Command {
	var (
		flags configFlags
		port  int
	)
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Serve recorded runs, scalars and text samples over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg boardConfig
			if err := flags.load(&cfg); err != nil {
				return err
			}
			if port != 0 {
				cfg.Board.Port = port
			}
			app, err := bootstrap.NewApp(&cfg)
			if err != nil {
				return err
			}

			app.OnStart(func(ctx context.Context) error {
				db, err := database.Open(ctx, cfg.Database, app.Logger)
				if err != nil {
					return err
				}
				app.OnStop(func(context.Context) error { return db.Close() })
				store, err := tracker.NewStore(db)
				if err != nil {
					return err
				}
				srv := server.New(cfg.Board, app.Logger)
				srv.ApplyDefaults(cfg.Name, tracker.HealthChecker(store))
				tracker.RegisterBoard(srv.GinEngine(), store)
				if err := srv.Start(ctx); err != nil {
					return err
				}
				app.OnStop(srv.Stop)
				return nil
			})
			return app.Run(cmd.Context())
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides board.port)")
	return cmd
}
