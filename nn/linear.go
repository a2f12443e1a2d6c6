package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear computes y = xW + b row-wise.
type Linear struct {
	In, Out int
	W       *Param // In×Out
	B       *Param // 1×Out
}

// NewLinear creates a Linear layer with fan-in uniform initialisation.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		In:  in,
		Out: out,
		W:   NewParam(name+".weight", in, out),
		B:   NewParam(name+".bias", 1, out),
	}
	bound := FanInBound(in)
	UniformInit(l.W, bound, rng)
	UniformInit(l.B, bound, rng)
	return l
}

// Parameters implements Module.
func (l *Linear) Parameters() []*Param { return []*Param{l.W, l.B} }

// Forward maps a T×In matrix to T×Out.
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	if c != l.In {
		panic(fmt.Sprintf("nn: linear %s expects %d inputs, got %d", l.W.Name, l.In, c))
	}
	y := mat.NewDense(r, l.Out, nil)
	y.Mul(x, l.W.Value)
	b := l.B.Value.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(y.RawRowView(i), b)
	}
	return y
}

// Backward accumulates dW = xᵀdy, db = Σdy and returns dx = dyWᵀ.
func (l *Linear) Backward(x, dy *mat.Dense) *mat.Dense {
	r, _ := dy.Dims()

	var gw mat.Dense
	gw.Mul(x.T(), dy)
	l.W.Grad.Add(l.W.Grad, &gw)

	gb := l.B.Grad.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(gb, dy.RawRowView(i))
	}

	dx := mat.NewDense(r, l.In, nil)
	dx.Mul(dy, l.W.Value.T())
	return dx
}
