package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/ctckit/bootstrap"
	"github.com/kbukum/ctckit/runner"
)

func newEvaluateCmd() *cobra.Command {
	var (
		flags      configFlags
		checkpoint string
		splits     []string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a checkpoint on one or more splits",
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
				r, err := newRunner(ctx, app, "evaluate")
				if err != nil {
					return err
				}
				if err := r.Resume(ctx, checkpoint); err != nil {
					return err
				}
				targets := splits
				if len(targets) == 0 {
					targets = cfg.Runner.EvalDataloaders
				}
				for _, split := range targets {
					if _, err := r.Evaluate(ctx, split); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint name to evaluate")
	cmd.Flags().StringSliceVar(&splits, "split", nil, "splits to evaluate (default: runner.eval_dataloaders)")
	_ = cmd.MarkFlagRequired("checkpoint")
	return cmd
}
