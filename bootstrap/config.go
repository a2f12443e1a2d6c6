package bootstrap

import (
	"github.com/kbukum/ctckit/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.RunConfig (value embedding) and provides
// ApplyDefaults and Validate satisfies it.
//
//	type TrainConfig struct {
//	    config.RunConfig `yaml:",inline" mapstructure:",squash"`
//	    Runner runner.Settings `mapstructure:"runner"`
//	}
type Config interface {
	GetRunConfig() *config.RunConfig
	ApplyDefaults()
	Validate() error
}
