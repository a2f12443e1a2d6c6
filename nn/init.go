package nn

import (
	"math"
	"math/rand/v2"
)

// NewRand returns a deterministic generator for weight init and dropout.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// UniformInit fills p with values drawn from U(-bound, bound).
func UniformInit(p *Param, bound float64, rng *rand.Rand) {
	raw := p.Value.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j := range row {
			row[j] = (2*rng.Float64() - 1) * bound
		}
	}
}

// FanInBound is the default init bound 1/sqrt(fanIn) for linear and
// recurrent weights.
func FanInBound(fanIn int) float64 {
	if fanIn <= 0 {
		return 0
	}
	return 1 / math.Sqrt(float64(fanIn))
}
