package nn

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/errors"
)

const fdEps = 1e-6

// weightedSum is the scalar loss Σ y∘w used by the gradient checks.
func weightedSum(y, w *mat.Dense) float64 {
	var p mat.Dense
	p.MulElem(y, w)
	return mat.Sum(&p)
}

func randDense(r, c int, seed uint64) *mat.Dense {
	rng := NewRand(seed)
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, rng.NormFloat64())
		}
	}
	return m
}

// checkGrad compares an analytic gradient against central differences of f
// with respect to the entries of x.
func checkGrad(t *testing.T, name string, x, analytic *mat.Dense, f func() float64) {
	t.Helper()
	r, c := x.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			orig := x.At(i, j)
			x.Set(i, j, orig+fdEps)
			up := f()
			x.Set(i, j, orig-fdEps)
			down := f()
			x.Set(i, j, orig)
			num := (up - down) / (2 * fdEps)
			if diff := math.Abs(num - analytic.At(i, j)); diff > 1e-5*math.Max(1, math.Abs(num)) {
				t.Fatalf("%s[%d,%d]: analytic %g, numeric %g", name, i, j, analytic.At(i, j), num)
			}
		}
	}
}

func TestLinear_Gradients(t *testing.T) {
	l := NewLinear("proj", 4, 3, NewRand(1))
	x := randDense(5, 4, 2)
	w := randDense(5, 3, 3)

	loss := func() float64 { return weightedSum(l.Forward(x), w) }
	dx := l.Backward(x, w)

	checkGrad(t, "dx", x, dx, loss)
	checkGrad(t, "dW", l.W.Value, l.W.Grad, loss)
	checkGrad(t, "db", l.B.Value, l.B.Grad, loss)
}

func TestLayerNorm_Gradients(t *testing.T) {
	ln := NewLayerNorm("ln", 4)
	ln.Gamma.Value.Copy(randDense(1, 4, 7))
	x := randDense(3, 4, 8)
	w := randDense(3, 4, 9)

	loss := func() float64 {
		y, _ := ln.Forward(x)
		return weightedSum(y, w)
	}
	_, cache := ln.Forward(x)
	dx := ln.Backward(cache, w)

	checkGrad(t, "dx", x, dx, loss)
	checkGrad(t, "dGamma", ln.Gamma.Value, ln.Gamma.Grad, loss)
	checkGrad(t, "dBeta", ln.Beta.Value, ln.Beta.Grad, loss)
}

func TestLogSoftmax(t *testing.T) {
	x := randDense(3, 5, 4)
	y := LogSoftmax(x)
	for i := 0; i < 3; i++ {
		var s float64
		for j := 0; j < 5; j++ {
			s += math.Exp(y.At(i, j))
		}
		if math.Abs(s-1) > 1e-12 {
			t.Errorf("row %d sums to %g", i, s)
		}
	}

	w := randDense(3, 5, 5)
	dx := LogSoftmaxBackward(y, w)
	checkGrad(t, "dx", x, dx, func() float64 { return weightedSum(LogSoftmax(x), w) })
}

func TestActivations_Gradients(t *testing.T) {
	x := randDense(2, 3, 11)
	w := randDense(2, 3, 12)
	checkGrad(t, "tanh", x, TanhBackward(Tanh(x), w), func() float64 { return weightedSum(Tanh(x), w) })

	// Keep ReLU inputs away from the kink.
	x.Apply(func(_, _ int, v float64) float64 {
		if math.Abs(v) < 0.1 {
			return 0.5
		}
		return v
	}, x)
	checkGrad(t, "relu", x, ReLUBackward(ReLU(x), w), func() float64 { return weightedSum(ReLU(x), w) })

	if s := Sigmoid(0); s != 0.5 {
		t.Errorf("Sigmoid(0) = %g", s)
	}
	if s := Sigmoid(-1000); s != 0 || math.IsNaN(s) {
		t.Errorf("Sigmoid(-1000) = %g", s)
	}
}

func TestDropoutMask(t *testing.T) {
	if DropoutMask(2, 2, 0, NewRand(1)) != nil {
		t.Error("p=0 should give a nil mask")
	}
	x := randDense(2, 2, 3)
	if ApplyMask(x, nil) != x {
		t.Error("nil mask should be identity")
	}
	mask := DropoutMask(100, 100, 0.25, NewRand(1))
	var kept int
	raw := mask.RawMatrix().Data
	for _, v := range raw {
		switch {
		case v == 0:
		case math.Abs(v-1/0.75) < 1e-12:
			kept++
		default:
			t.Fatalf("unexpected mask value %g", v)
		}
	}
	if frac := float64(kept) / float64(len(raw)); frac < 0.7 || frac > 0.8 {
		t.Errorf("kept fraction %g, want about 0.75", frac)
	}
}

func TestPadSequences(t *testing.T) {
	seqs := []*mat.Dense{randDense(10, 2, 1), randDense(12, 2, 2), randDense(8, 2, 3)}
	padded, lengths := PadSequences(seqs)
	want := []int{10, 12, 8}
	for i := range padded {
		r, c := padded[i].Dims()
		if r != 12 || c != 2 {
			t.Errorf("padded[%d] is %dx%d, want 12x2", i, r, c)
		}
		if lengths[i] != want[i] {
			t.Errorf("lengths[%d] = %d, want %d", i, lengths[i], want[i])
		}
		if padded[i].At(0, 0) != seqs[i].At(0, 0) {
			t.Errorf("padded[%d] lost data", i)
		}
		if lengths[i] < 12 && padded[i].At(11, 1) != 0 {
			t.Errorf("padded[%d] tail not zero", i)
		}
	}
}

func TestPadLabels(t *testing.T) {
	padded, lengths := PadLabels([][]int{{3, 4, 5}, {6, 7, 8, 9, 10}, {11, 12}}, 0)
	for i, want := range []int{3, 5, 2} {
		if len(padded[i]) != 5 {
			t.Errorf("padded[%d] has width %d, want 5", i, len(padded[i]))
		}
		if lengths[i] != want {
			t.Errorf("lengths[%d] = %d, want %d", i, lengths[i], want)
		}
	}
	if padded[2][2] != 0 || padded[2][4] != 0 || padded[2][1] != 12 {
		t.Errorf("unexpected padding %v", padded[2])
	}
}

func quadraticParam() *Param {
	p := NewParam("w", 1, 2)
	p.Value.SetRow(0, []float64{3, -2})
	return p
}

// minimise f(w) = ½‖w‖², whose gradient is w.
func runOptimizer(t *testing.T, opt Optimizer, steps int) *Param {
	t.Helper()
	p := quadraticParam()
	for i := 0; i < steps; i++ {
		p.ZeroGrad()
		p.Grad.Copy(p.Value)
		opt.Step([]*Param{p})
	}
	return p
}

func TestOptimizers_Converge(t *testing.T) {
	tests := []struct {
		name string
		cfg  OptimizerConfig
	}{
		{"sgd", OptimizerConfig{Name: "SGD", LR: 0.1}},
		{"sgd momentum", OptimizerConfig{Name: "sgd", LR: 0.05, Momentum: 0.9}},
		{"adam", OptimizerConfig{Name: "Adam", LR: 0.1}},
		{"adamw", OptimizerConfig{Name: "AdamW", LR: 0.1, WeightDecay: 0.01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			opt, err := NewOptimizer(cfg)
			if err != nil {
				t.Fatal(err)
			}
			if opt.LR() != cfg.LR {
				t.Errorf("LR = %g", opt.LR())
			}
			p := runOptimizer(t, opt, 300)
			if n := mat.Norm(p.Value, 2); n > 0.05 {
				t.Errorf("did not converge, |w| = %g", n)
			}
		})
	}
	if _, err := NewOptimizer(OptimizerConfig{Name: "lbfgs"}); !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestClipGradNorm(t *testing.T) {
	a, b := NewParam("a", 1, 1), NewParam("b", 1, 1)
	a.Grad.Set(0, 0, 3)
	b.Grad.Set(0, 0, 4)
	params := []*Param{a, b}

	if n := ClipGradNorm(params, 10); n != 5 || a.Grad.At(0, 0) != 3 {
		t.Errorf("norm below limit must not clip: %g %g", n, a.Grad.At(0, 0))
	}
	if n := ClipGradNorm(params, 1); n != 5 {
		t.Errorf("returned norm %g, want 5", n)
	}
	if n := GradNorm(params); math.Abs(n-1) > 1e-5 {
		t.Errorf("clipped norm %g, want 1", n)
	}
	ScaleGrad(params, 0)
	if GradNorm(params) != 0 {
		t.Error("ScaleGrad(0) should zero gradients")
	}
}

func TestStateDict_RoundTrip(t *testing.T) {
	src := NewLinear("proj", 3, 2, NewRand(1))
	dst := NewLinear("proj", 3, 2, NewRand(2))
	if err := LoadStateDict(dst.Parameters(), StateDict(src.Parameters())); err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(src.W.Value, dst.W.Value) || !mat.Equal(src.B.Value, dst.B.Value) {
		t.Error("weights differ after load")
	}
	if CountParams(dst.Parameters()) != 8 {
		t.Errorf("CountParams = %d", CountParams(dst.Parameters()))
	}

	wrong := NewLinear("proj", 4, 2, NewRand(3))
	if err := LoadStateDict(wrong.Parameters(), StateDict(src.Parameters())); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected shape mismatch error, got %v", err)
	}
	other := NewLinear("other", 3, 2, NewRand(3))
	if err := LoadStateDict(other.Parameters(), StateDict(src.Parameters())); err == nil {
		t.Error("expected missing parameter error")
	}
}
