package dataset

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/kbukum/ctckit/errors"
)

// ReadWAV decodes the first channel of a PCM WAV file into samples scaled
// to [-1, 1]. A positive sampleRate must match the file's rate.
func ReadWAV(path string, sampleRate int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("audio", path)
		}
		return nil, errors.IOError("open audio", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.InvalidInput("audio", fmt.Sprintf("%s is not a valid WAV file", path))
	}
	if sampleRate > 0 && int(dec.SampleRate) != sampleRate {
		return nil, errors.InvalidInput("audio", fmt.Sprintf("%s: sample rate %d, want %d", path, dec.SampleRate, sampleRate))
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.IOError("decode audio", err).WithDetail("file", path)
	}

	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		channels = buf.Format.NumChannels
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 {
		depth = 16
	}
	scale := float64(int64(1) << (depth - 1))
	out := make([]float64, len(buf.Data)/channels)
	for i := range out {
		out[i] = float64(buf.Data[i*channels]) / scale
	}
	return out, nil
}
