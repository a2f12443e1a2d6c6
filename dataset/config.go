package dataset

// Config is the corpus section of the downstream configuration.
type Config struct {
	// Name identifies the corpus in logged tags.
	Name string `mapstructure:"name" validate:"required"`
	// Path is the root that manifest and audio paths are relative to.
	Path string `mapstructure:"path" validate:"required"`
	// Splits maps a split name to its manifest files.
	Splits map[string][]string `mapstructure:"splits" validate:"min=1,dive,min=1"`
	// SampleRate is the expected WAV sample rate; 0 accepts any.
	SampleRate int `mapstructure:"sample_rate" validate:"gte=0"`
	// BatchSize is the number of utterances per training batch.
	BatchSize int `mapstructure:"batch_size" validate:"gt=0"`
	// EvalBatchSize is the number of utterances per batch on other splits.
	EvalBatchSize int `mapstructure:"eval_batch_size" validate:"gt=0"`
	// Bucketing halves batches whose longest utterance exceeds
	// HalfBatchLength samples.
	Bucketing       bool `mapstructure:"bucketing"`
	HalfBatchLength int  `mapstructure:"half_batch_length" validate:"gte=0"`
	// MaxLength drops training utterances longer than this many samples;
	// 0 keeps everything.
	MaxLength int `mapstructure:"max_length" validate:"gte=0"`
	// NumWorkers is the number of batches decoded concurrently.
	NumWorkers int `mapstructure:"num_workers" validate:"gt=0"`
	// Prefetch is the number of decoded batches buffered ahead.
	Prefetch int    `mapstructure:"prefetch" validate:"gte=0"`
	Seed     uint64 `mapstructure:"seed"`
}

// ApplyDefaults sets batch sizes, workers and bucketing thresholds.
func (c *Config) ApplyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 8
	}
	if c.EvalBatchSize == 0 {
		c.EvalBatchSize = c.BatchSize
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = 4
	}
	if c.Prefetch == 0 {
		c.Prefetch = 2
	}
	if c.Bucketing && c.HalfBatchLength == 0 {
		c.HalfBatchLength = 16000 * 15
	}
}
