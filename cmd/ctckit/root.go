package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/ctckit/config"
	"github.com/kbukum/ctckit/version"
)

const configName = "ctckit"

// configFlags are shared by every command that loads a configuration.
type configFlags struct {
	configFile string
	envFile    string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "experiment config file (default: ./config.yml or ./config/config.yml)")
	cmd.Flags().StringVar(&f.envFile, "env-file", "", ".env file loaded before environment overrides")
}

func (f *configFlags) load(cfg any) error {
	var opts []config.LoaderOption
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	if f.envFile != "" {
		opts = append(opts, config.WithEnvFile(f.envFile))
	}
	return config.LoadConfig(configName, cfg, opts...)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ctckit",
		Short:        "CTC speech recognition downstream training",
		Version:      version.Get().Short(),
		SilenceUsage: true,
	}
	root.AddCommand(newTrainCmd(), newEvaluateCmd(), newBoardCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
