// Package bootstrap runs ctckit commands with a uniform lifecycle: typed
// configuration defaults and validation, logger setup, start and stop hooks,
// and cancellation on SIGINT/SIGTERM.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnStop(func(ctx context.Context) error { return db.Close() })
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return r.Train(ctx)
//	})
package bootstrap
