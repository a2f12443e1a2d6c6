package expert

import (
	"strings"

	"github.com/kbukum/ctckit/dataset"
	"github.com/kbukum/ctckit/text"
)

// Config is the downstream expert configuration.
type Config struct {
	Corpus dataset.Config `mapstructure:"corpus"`
	Text   text.Config    `mapstructure:"text"`
	Model  ModelConfig    `mapstructure:"model"`
	// Metric lists the metric names computed per batch. The first one
	// selects the best checkpoint.
	Metric             []string `mapstructure:"metric" validate:"min=1"`
	MetricHigherBetter bool     `mapstructure:"metric_higher_better"`
}

// ModelConfig selects the projector width, the sequence model and the loss
// options. Options collects the model.<select> subtrees.
type ModelConfig struct {
	ProjectDim   int            `mapstructure:"project_dim" validate:"gt=0"`
	Select       string         `mapstructure:"select" validate:"required"`
	ZeroInfinity bool           `mapstructure:"zero_infinity"`
	Options      map[string]any `mapstructure:",remain"`
}

// SelectedOptions returns the option subtree of the selected model. Keys
// are matched case-insensitively because viper lower-cases them.
func (m ModelConfig) SelectedOptions() map[string]any {
	for k, v := range m.Options {
		if !strings.EqualFold(k, m.Select) {
			continue
		}
		if opts, ok := v.(map[string]any); ok {
			return opts
		}
	}
	return nil
}

// RunnerConfig is the part of the runner configuration the expert reads.
type RunnerConfig struct {
	// EvalDataloaders lists the evaluation splits; the first one drives
	// best-checkpoint selection.
	EvalDataloaders []string `mapstructure:"eval_dataloaders"`
}
