package asr

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/nn"
)

// Recurrent cell types.
const (
	ModuleLSTM = "LSTM"
	ModuleRNN  = "RNN"
)

// recurrent is a single-direction LSTM or tanh RNN over one sequence.
// LSTM gates are laid out as [input | forget | cell | output].
type recurrent struct {
	kind   string
	hidden int
	gates  int
	Wx     *nn.Param // in×gates·H
	Wh     *nn.Param // H×gates·H
	B      *nn.Param // 1×gates·H
}

type recurrentCache struct {
	x   *mat.Dense
	h   *mat.Dense // T×H hidden states
	c   *mat.Dense // T×H cell states, LSTM only
	act *mat.Dense // T×gates·H activated gates, LSTM only
}

func newRecurrent(name, kind string, in, hidden int, rng *rand.Rand) *recurrent {
	g := 1
	if kind == ModuleLSTM {
		g = 4
	}
	r := &recurrent{
		kind:   kind,
		hidden: hidden,
		gates:  g,
		Wx:     nn.NewParam(name+".weight_ih", in, g*hidden),
		Wh:     nn.NewParam(name+".weight_hh", hidden, g*hidden),
		B:      nn.NewParam(name+".bias", 1, g*hidden),
	}
	bound := nn.FanInBound(hidden)
	for _, p := range r.Parameters() {
		nn.UniformInit(p, bound, rng)
	}
	return r
}

func (r *recurrent) Parameters() []*nn.Param { return []*nn.Param{r.Wx, r.Wh, r.B} }

func (r *recurrent) forward(x *mat.Dense) (*mat.Dense, *recurrentCache) {
	T, _ := x.Dims()
	H, G := r.hidden, r.gates*r.hidden

	pre := mat.NewDense(T, G, nil)
	pre.Mul(x, r.Wx.Value)
	b := r.B.Value.RawRowView(0)

	h := mat.NewDense(T, H, nil)
	cache := &recurrentCache{x: x, h: h}
	if r.kind == ModuleLSTM {
		cache.c = mat.NewDense(T, H, nil)
		cache.act = pre
	}

	hPrev := make([]float64, H)
	cPrev := make([]float64, H)
	rec := mat.NewVecDense(G, nil)
	for t := 0; t < T; t++ {
		z := pre.RawRowView(t)
		rec.MulVec(r.Wh.Value.T(), mat.NewVecDense(H, hPrev))
		floats.Add(z, rec.RawVector().Data)
		floats.Add(z, b)

		ht := h.RawRowView(t)
		if r.kind == ModuleLSTM {
			ct := cache.c.RawRowView(t)
			for j := 0; j < H; j++ {
				i := nn.Sigmoid(z[j])
				f := nn.Sigmoid(z[H+j])
				g := math.Tanh(z[2*H+j])
				o := nn.Sigmoid(z[3*H+j])
				z[j], z[H+j], z[2*H+j], z[3*H+j] = i, f, g, o
				ct[j] = f*cPrev[j] + i*g
				ht[j] = o * math.Tanh(ct[j])
			}
			cPrev = ct
		} else {
			for j := 0; j < H; j++ {
				ht[j] = math.Tanh(z[j])
			}
		}
		hPrev = ht
	}
	return h, cache
}

// backward runs backpropagation through time and returns dx.
func (r *recurrent) backward(cache *recurrentCache, dh *mat.Dense) *mat.Dense {
	T, H := dh.Dims()
	G := r.gates * H

	dz := mat.NewDense(T, G, nil)
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	tmp := mat.NewVecDense(H, nil)
	for t := T - 1; t >= 0; t-- {
		dzt, dht := dz.RawRowView(t), dh.RawRowView(t)
		if r.kind == ModuleLSTM {
			a, ct := cache.act.RawRowView(t), cache.c.RawRowView(t)
			for j := 0; j < H; j++ {
				i, f, g, o := a[j], a[H+j], a[2*H+j], a[3*H+j]
				d := dht[j] + dhNext[j]
				tc := math.Tanh(ct[j])
				dc := d*o*(1-tc*tc) + dcNext[j]
				var cp float64
				if t > 0 {
					cp = cache.c.At(t-1, j)
				}
				dzt[j] = dc * g * i * (1 - i)
				dzt[H+j] = dc * cp * f * (1 - f)
				dzt[2*H+j] = dc * i * (1 - g*g)
				dzt[3*H+j] = d * tc * o * (1 - o)
				dcNext[j] = dc * f
			}
		} else {
			ht := cache.h.RawRowView(t)
			for j := 0; j < H; j++ {
				dzt[j] = (dht[j] + dhNext[j]) * (1 - ht[j]*ht[j])
			}
		}
		tmp.MulVec(r.Wh.Value, dz.RowView(t))
		copy(dhNext, tmp.RawVector().Data)
	}

	var gx mat.Dense
	gx.Mul(cache.x.T(), dz)
	r.Wx.Grad.Add(r.Wx.Grad, &gx)
	if T > 1 {
		var gh mat.Dense
		gh.Mul(cache.h.Slice(0, T-1, 0, H).T(), dz.Slice(1, T, 0, G))
		r.Wh.Grad.Add(r.Wh.Grad, &gh)
	}
	gb := r.B.Grad.RawRowView(0)
	for t := 0; t < T; t++ {
		floats.Add(gb, dz.RawRowView(t))
	}

	_, in := cache.x.Dims()
	dx := mat.NewDense(T, in, nil)
	dx.Mul(dz, r.Wx.Value.T())
	return dx
}

// reverseRows returns x with its rows in reverse order.
func reverseRows(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		copy(y.RawRowView(r-1-i), x.RawRowView(i))
	}
	return y
}

// birnn runs a forward cell and an optional backward cell and concatenates
// their hidden states per frame.
type birnn struct {
	fwd, bwd *recurrent
}

type birnnCache struct {
	fc, bc *recurrentCache
}

func (b *birnn) Parameters() []*nn.Param {
	ps := b.fwd.Parameters()
	if b.bwd != nil {
		ps = append(ps, b.bwd.Parameters()...)
	}
	return ps
}

func (b *birnn) outDim() int {
	if b.bwd != nil {
		return 2 * b.fwd.hidden
	}
	return b.fwd.hidden
}

func (b *birnn) forward(x *mat.Dense) (*mat.Dense, *birnnCache) {
	hf, fc := b.fwd.forward(x)
	if b.bwd == nil {
		return hf, &birnnCache{fc: fc}
	}
	hb, bc := b.bwd.forward(reverseRows(x))
	hb = reverseRows(hb)

	T, H := hf.Dims()
	out := mat.NewDense(T, 2*H, nil)
	out.Slice(0, T, 0, H).(*mat.Dense).Copy(hf)
	out.Slice(0, T, H, 2*H).(*mat.Dense).Copy(hb)
	return out, &birnnCache{fc: fc, bc: bc}
}

func (b *birnn) backward(cache *birnnCache, dy *mat.Dense) *mat.Dense {
	if b.bwd == nil {
		return b.fwd.backward(cache.fc, dy)
	}
	T, _ := dy.Dims()
	H := b.fwd.hidden
	dxf := b.fwd.backward(cache.fc, mat.DenseCopyOf(dy.Slice(0, T, 0, H)))
	dxb := b.bwd.backward(cache.bc, reverseRows(mat.DenseCopyOf(dy.Slice(0, T, H, 2*H))))
	dxf.Add(dxf, reverseRows(dxb))
	return dxf
}
