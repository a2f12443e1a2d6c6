package upstream

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

const logFloor = 1e-10

// Spectrogram computes Hann-windowed log power spectra.
type Spectrogram struct {
	cfg    Config
	window []float64
	fft    *fourier.FFT
}

// NewSpectrogram is the spectrogram factory.
func NewSpectrogram(cfg Config) (Extractor, error) {
	return &Spectrogram{cfg: cfg, window: hann(cfg.WinLength), fft: fourier.NewFFT(cfg.NFFT)}, nil
}

// Dim implements Extractor.
func (s *Spectrogram) Dim() int { return s.cfg.NFFT/2 + 1 }

// Rate implements Extractor.
func (s *Spectrogram) Rate() int { return s.cfg.HopLength }

// Extract implements Extractor.
func (s *Spectrogram) Extract(wav []float64) (*mat.Dense, error) {
	if err := checkWave(wav); err != nil {
		return nil, err
	}
	n := numFrames(len(wav), s.cfg.WinLength, s.cfg.HopLength)
	out := mat.NewDense(n, s.Dim(), nil)
	buf := make([]float64, s.cfg.NFFT)
	win := buf[:s.cfg.WinLength]
	coeff := make([]complex128, s.Dim())
	for i := 0; i < n; i++ {
		frame(win, wav, i, s.cfg.HopLength)
		for j := range win {
			win[j] *= s.window[j]
		}
		for j := s.cfg.WinLength; j < len(buf); j++ {
			buf[j] = 0
		}
		coeff = s.fft.Coefficients(coeff, buf)
		row := out.RawRowView(i)
		for k, c := range coeff {
			re, im := real(c), imag(c)
			row[k] = math.Log(re*re + im*im + logFloor)
		}
	}
	if s.cfg.Normalize {
		normalize(out)
	}
	return out, nil
}

// hann returns a periodic Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
