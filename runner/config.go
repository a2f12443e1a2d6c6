package runner

import (
	"github.com/kbukum/ctckit/config"
	"github.com/kbukum/ctckit/database"
	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/expert"
	"github.com/kbukum/ctckit/nn"
	"github.com/kbukum/ctckit/observability"
	"github.com/kbukum/ctckit/storage"
	"github.com/kbukum/ctckit/upstream"
	"github.com/kbukum/ctckit/validation"
	"github.com/kbukum/ctckit/version"
)

// Config is a complete experiment configuration.
type Config struct {
	config.RunConfig `yaml:",inline" mapstructure:",squash"`

	// ExpDir is the experiment directory handed to the expert.
	ExpDir        string               `mapstructure:"expdir"`
	Runner        Settings             `mapstructure:"runner"`
	Optimizer     nn.OptimizerConfig   `mapstructure:"optimizer"`
	Upstream      upstream.Config      `mapstructure:"upstream"`
	Downstream    expert.Config        `mapstructure:"downstream_expert"`
	Storage       storage.Config       `mapstructure:"storage"`
	Database      database.Config      `mapstructure:"database"`
	Observability observability.Config `mapstructure:"observability"`
}

// Settings controls the optimisation loop.
type Settings struct {
	TotalSteps              int     `mapstructure:"total_steps" validate:"gt=0"`
	GradientClipping        float64 `mapstructure:"gradient_clipping" validate:"gte=0"`
	GradientAccumulateSteps int     `mapstructure:"gradient_accumulate_steps" validate:"gt=0"`
	LogStep                 int     `mapstructure:"log_step" validate:"gt=0"`
	EvalStep                int     `mapstructure:"eval_step" validate:"gt=0"`
	SaveStep                int     `mapstructure:"save_step" validate:"gt=0"`
	// MaxKeep bounds the periodic checkpoints kept; 0 keeps all.
	MaxKeep int `mapstructure:"max_keep" validate:"gte=0"`
	// EvalDataloaders are evaluated every EvalStep steps, in order.
	EvalDataloaders []string `mapstructure:"eval_dataloaders" validate:"dive,required"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	c.RunConfig.ApplyDefaults()
	if c.ExpDir == "" {
		c.ExpDir = "result/downstream/" + c.Name
	}
	c.Runner.ApplyDefaults()
	c.Optimizer.ApplyDefaults()
	c.Upstream.ApplyDefaults()
	c.Downstream.Corpus.ApplyDefaults()
	if c.Downstream.Corpus.Seed == 0 {
		c.Downstream.Corpus.Seed = c.Seed
	}
	c.Storage.ApplyDefaults()
	c.Database.ApplyDefaults()
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = version.Get().Short()
	}
}

// ApplyDefaults fills the loop defaults.
func (s *Settings) ApplyDefaults() {
	if s.TotalSteps == 0 {
		s.TotalSteps = 200000
	}
	if s.GradientAccumulateSteps == 0 {
		s.GradientAccumulateSteps = 1
	}
	if s.GradientClipping == 0 {
		s.GradientClipping = 1
	}
	if s.LogStep == 0 {
		s.LogStep = 100
	}
	if s.EvalStep == 0 {
		s.EvalStep = 2000
	}
	if s.SaveStep == 0 {
		s.SaveStep = 500
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.RunConfig.Validate(); err != nil {
		return errors.InvalidConfig("", err.Error()).WithCause(err)
	}
	if err := validation.Validate(&c.Runner); err != nil {
		return err
	}
	if err := validation.Validate(&c.Optimizer); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return errors.InvalidConfig("storage", err.Error()).WithCause(err)
	}
	if err := c.Database.Validate(); err != nil {
		return errors.InvalidConfig("database", err.Error()).WithCause(err)
	}
	return nil
}

// ExpertConfig is the part of Settings the expert reads.
func (s Settings) ExpertConfig() expert.RunnerConfig {
	return expert.RunnerConfig{EvalDataloaders: s.EvalDataloaders}
}
