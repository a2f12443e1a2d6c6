package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const layerNormEps = 1e-5

// LayerNorm normalises each row to zero mean and unit variance, then scales
// and shifts it.
type LayerNorm struct {
	Dim   int
	Gamma *Param // 1×Dim
	Beta  *Param // 1×Dim
}

// LayerNormCache keeps what Backward needs.
type LayerNormCache struct {
	xhat   *mat.Dense
	invStd []float64
}

// NewLayerNorm creates a LayerNorm with gamma=1 and beta=0.
func NewLayerNorm(name string, dim int) *LayerNorm {
	ln := &LayerNorm{
		Dim:   dim,
		Gamma: NewParam(name+".weight", 1, dim),
		Beta:  NewParam(name+".bias", 1, dim),
	}
	g := ln.Gamma.Value.RawRowView(0)
	for i := range g {
		g[i] = 1
	}
	return ln
}

// Parameters implements Module.
func (ln *LayerNorm) Parameters() []*Param { return []*Param{ln.Gamma, ln.Beta} }

// Forward normalises x row-wise.
func (ln *LayerNorm) Forward(x *mat.Dense) (*mat.Dense, *LayerNormCache) {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	cache := &LayerNormCache{xhat: mat.NewDense(r, c, nil), invStd: make([]float64, r)}
	g, b := ln.Gamma.Value.RawRowView(0), ln.Beta.Value.RawRowView(0)
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		var mean, variance float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(c)
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float64(c)
		inv := 1 / math.Sqrt(variance+layerNormEps)
		cache.invStd[i] = inv
		xh, out := cache.xhat.RawRowView(i), y.RawRowView(i)
		for j, v := range row {
			xh[j] = (v - mean) * inv
			out[j] = xh[j]*g[j] + b[j]
		}
	}
	return y, cache
}

// Backward accumulates dGamma and dBeta and returns dx.
func (ln *LayerNorm) Backward(cache *LayerNormCache, dy *mat.Dense) *mat.Dense {
	r, c := dy.Dims()
	dx := mat.NewDense(r, c, nil)
	g := ln.Gamma.Value.RawRowView(0)
	dg, db := ln.Gamma.Grad.RawRowView(0), ln.Beta.Grad.RawRowView(0)
	n := float64(c)
	dxh := make([]float64, c)
	for i := 0; i < r; i++ {
		dyr, xh := dy.RawRowView(i), cache.xhat.RawRowView(i)
		var sumD, sumDX float64
		for j := range dyr {
			dg[j] += dyr[j] * xh[j]
			db[j] += dyr[j]
			dxh[j] = dyr[j] * g[j]
			sumD += dxh[j]
			sumDX += dxh[j] * xh[j]
		}
		out := dx.RawRowView(i)
		for j := range out {
			out[j] = cache.invStd[i] / n * (n*dxh[j] - sumD - xh[j]*sumDX)
		}
	}
	return dx
}
