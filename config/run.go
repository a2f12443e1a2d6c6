package config

import (
	"fmt"

	"github.com/kbukum/ctckit/logger"
)

// RunConfig contains the fields every experiment needs.
// Experiment configs embed it:
//
//	type Config struct {
//	    config.RunConfig `yaml:",inline" mapstructure:",squash"`
//	    Runner runner.Settings `mapstructure:"runner"`
//	}
type RunConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Seed        uint64        `yaml:"seed" mapstructure:"seed"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetRunConfig returns the base RunConfig. Promoted through embedding.
func (c *RunConfig) GetRunConfig() *RunConfig {
	return c
}

// ApplyDefaults applies default values to the base configuration.
func (c *RunConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "ctckit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Seed == 0 {
		c.Seed = 1337
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the base configuration fields.
func (c *RunConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", validEnvs, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
