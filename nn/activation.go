package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogSoftmax normalises every row of x in log space.
func LogSoftmax(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		in := x.RawRowView(i)
		lse := floats.LogSumExp(in)
		out := y.RawRowView(i)
		for j, v := range in {
			out[j] = v - lse
		}
	}
	return y
}

// LogSoftmaxBackward returns dx = dy - softmax(x)·Σdy given the forward output y.
func LogSoftmaxBackward(y, dy *mat.Dense) *mat.Dense {
	r, c := y.Dims()
	dx := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		yr, dyr, dxr := y.RawRowView(i), dy.RawRowView(i), dx.RawRowView(i)
		sum := floats.Sum(dyr)
		for j := range dxr {
			dxr[j] = dyr[j] - math.Exp(yr[j])*sum
		}
	}
	return dx
}

// Tanh applies tanh element-wise.
func Tanh(x *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, x)
	return &y
}

// TanhBackward returns dy·(1-y²) given the forward output y.
func TanhBackward(y, dy *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Apply(func(i, j int, v float64) float64 { return dy.At(i, j) * (1 - v*v) }, y)
	return &dx
}

// ReLU applies max(0, x) element-wise.
func ReLU(x *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, x)
	return &y
}

// ReLUBackward passes dy where the forward output was positive.
func ReLUBackward(y, dy *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Apply(func(i, j int, v float64) float64 {
		if v > 0 {
			return dy.At(i, j)
		}
		return 0
	}, y)
	return &dx
}

// Sigmoid is the logistic function.
func Sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}
