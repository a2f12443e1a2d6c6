package upstream

import (
	"gonum.org/v1/gonum/mat"
)

// Frames slices the raw waveform into overlapping windows.
type Frames struct {
	cfg Config
}

// NewFrames is the frames factory.
func NewFrames(cfg Config) (Extractor, error) {
	return &Frames{cfg: cfg}, nil
}

// Dim implements Extractor.
func (f *Frames) Dim() int { return f.cfg.WinLength }

// Rate implements Extractor.
func (f *Frames) Rate() int { return f.cfg.HopLength }

// Extract implements Extractor.
func (f *Frames) Extract(wav []float64) (*mat.Dense, error) {
	if err := checkWave(wav); err != nil {
		return nil, err
	}
	n := numFrames(len(wav), f.cfg.WinLength, f.cfg.HopLength)
	out := mat.NewDense(n, f.Dim(), nil)
	for i := 0; i < n; i++ {
		frame(out.RawRowView(i), wav, i, f.cfg.HopLength)
	}
	if f.cfg.Normalize {
		normalize(out)
	}
	return out, nil
}
