// Package upstream provides frozen feature extractors that turn a waveform
// into a T×Dim feature matrix, one row every Rate() samples.
package upstream

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/registry"
	"github.com/kbukum/ctckit/validation"
)

// Extractor maps a mono waveform in [-1, 1] to frame features.
type Extractor interface {
	// Dim is the width of every feature row.
	Dim() int
	// Rate is the number of waveform samples between consecutive rows.
	Rate() int
	// Extract computes the features of one utterance.
	Extract(wav []float64) (*mat.Dense, error)
}

// Config selects and parameterises an extractor.
type Config struct {
	Name       string `mapstructure:"name" validate:"required"`
	SampleRate int    `mapstructure:"sample_rate" validate:"gt=0"`
	WinLength  int    `mapstructure:"win_length" validate:"gt=0"`
	HopLength  int    `mapstructure:"hop_length" validate:"gt=0"`
	NFFT       int    `mapstructure:"n_fft" validate:"gte=0"`
	// Normalize applies per-utterance mean and variance normalisation.
	Normalize bool `mapstructure:"normalize"`
}

// ApplyDefaults fills a 25 ms window and 10 ms hop at 16 kHz.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = NameSpectrogram
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.WinLength == 0 {
		c.WinLength = c.SampleRate / 40
	}
	if c.HopLength == 0 {
		c.HopLength = c.SampleRate / 100
	}
	if c.NFFT == 0 {
		c.NFFT = nextPow2(c.WinLength)
	}
}

// Factory builds an Extractor from a defaulted Config.
type Factory func(cfg Config) (Extractor, error)

// Built-in extractor names.
const (
	NameSpectrogram = "spectrogram"
	NameFrames      = "frames"
)

// Defaults returns a registry with the built-in extractors.
func Defaults() *registry.Registry[Factory] {
	r := registry.New[Factory]()
	r.Register(NameSpectrogram, NewSpectrogram)
	r.Register(NameFrames, NewFrames)
	return r
}

// New builds the extractor named by cfg.Name.
func New(r *registry.Registry[Factory], cfg Config) (Extractor, error) {
	cfg.ApplyDefaults()
	if err := validation.Validate(&cfg); err != nil {
		return nil, err
	}
	if cfg.NFFT < cfg.WinLength {
		return nil, errors.InvalidConfig("upstream.n_fft", fmt.Sprintf("%d is shorter than the window %d", cfg.NFFT, cfg.WinLength))
	}
	factory, ok := r.Lookup(cfg.Name)
	if !ok {
		return nil, errors.UnknownUpstream(cfg.Name, r.List())
	}
	return factory(cfg)
}

// numFrames is the number of windows over n samples; a waveform shorter
// than one window still yields one zero-padded frame.
func numFrames(n, win, hop int) int {
	if n <= win {
		return 1
	}
	return 1 + (n-win)/hop
}

// frame copies window i of wav into dst, zero-padding past the end.
func frame(dst, wav []float64, i, hop int) {
	start := i * hop
	for j := range dst {
		if k := start + j; k < len(wav) {
			dst[j] = wav[k]
		} else {
			dst[j] = 0
		}
	}
}

// normalize scales every column to zero mean and unit variance.
func normalize(x *mat.Dense) {
	r, c := x.Dims()
	if r < 2 {
		return
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		var mean, variance float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(r)
		for _, v := range col {
			variance += (v - mean) * (v - mean)
		}
		std := 1.0
		if variance > 0 {
			std = math.Sqrt(variance / float64(r))
		}
		for i := range col {
			col[i] = (col[i] - mean) / std
		}
		x.SetCol(j, col)
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func checkWave(wav []float64) error {
	if len(wav) == 0 {
		return errors.InvalidInput("wav", "empty waveform")
	}
	return nil
}
