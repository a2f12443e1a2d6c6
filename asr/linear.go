package asr

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/nn"
	"github.com/kbukum/ctckit/validation"
)

// LinearOptions configures the frame-wise MLP.
type LinearOptions struct {
	// HiddenSize lists the widths of the ReLU hidden layers; empty means a
	// single linear classifier.
	HiddenSize []int   `mapstructure:"hidden_size" validate:"dive,gt=0"`
	Dropout    float64 `mapstructure:"dropout" validate:"gte=0,lte=0.99"`
}

// LinearModel classifies every frame independently. Output lengths equal
// input lengths.
type LinearModel struct {
	inputDim int
	hidden   []*nn.Linear
	out      *nn.Linear
	dropout  float64
	rng      *rand.Rand
	cache    *linearCache
}

type linearCache struct {
	inRows  int
	outRows int
	samples []linearSample
}

type linearSample struct {
	length int
	ins    []*mat.Dense // input of every layer
	acts   []*mat.Dense // ReLU output of every hidden layer
	masks  []*mat.Dense
}

// NewLinearModel is the Linear factory.
func NewLinearModel(cfg Config) (Model, error) {
	var opts LinearOptions
	if err := decodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	if err := validation.Validate(&opts); err != nil {
		return nil, err
	}
	m := &LinearModel{inputDim: cfg.InputDim, dropout: opts.Dropout, rng: cfg.Rand}
	in := cfg.InputDim
	for i, h := range opts.HiddenSize {
		m.hidden = append(m.hidden, nn.NewLinear(fmt.Sprintf("linear.hidden.%d", i), in, h, cfg.Rand))
		in = h
	}
	m.out = nn.NewLinear("linear.out", in, cfg.OutputClassNum, cfg.Rand)
	return m, nil
}

// Parameters implements nn.Module.
func (m *LinearModel) Parameters() []*nn.Param {
	var ps []*nn.Param
	for _, l := range m.hidden {
		ps = append(ps, l.Parameters()...)
	}
	return append(ps, m.out.Parameters()...)
}

// Forward implements Model.
func (m *LinearModel) Forward(xs []*mat.Dense, lengths []int, train bool) ([]*mat.Dense, []int, error) {
	inRows, err := checkBatch(xs, lengths, m.inputDim)
	if err != nil {
		return nil, nil, err
	}
	outRows := 0
	for _, n := range lengths {
		outRows = max(outRows, n)
	}
	cache := &linearCache{inRows: inRows, outRows: outRows, samples: make([]linearSample, len(xs))}
	logits := make([]*mat.Dense, len(xs))
	for i, x := range xs {
		h := validRows(x, lengths[i])
		s := linearSample{length: lengths[i]}
		for _, l := range m.hidden {
			s.ins = append(s.ins, h)
			h = nn.ReLU(l.Forward(h))
			s.acts = append(s.acts, h)
			var mask *mat.Dense
			if train && m.dropout > 0 {
				r, c := h.Dims()
				mask = nn.DropoutMask(r, c, m.dropout, m.rng)
				h = nn.ApplyMask(h, mask)
			}
			s.masks = append(s.masks, mask)
		}
		s.ins = append(s.ins, h)
		cache.samples[i] = s
		logits[i] = padRows(m.out.Forward(h), outRows)
	}
	m.cache = cache
	return logits, append([]int(nil), lengths...), nil
}

// Backward implements Model.
func (m *LinearModel) Backward(dLogits []*mat.Dense) ([]*mat.Dense, error) {
	if m.cache == nil {
		return nil, checkGrads(dLogits, 0, 0)
	}
	if err := checkGrads(dLogits, len(m.cache.samples), m.cache.outRows); err != nil {
		return nil, err
	}
	dxs := make([]*mat.Dense, len(dLogits))
	for i, s := range m.cache.samples {
		k := len(m.hidden)
		dh := m.out.Backward(s.ins[k], validRows(dLogits[i], s.length))
		for j := k - 1; j >= 0; j-- {
			dh = nn.ApplyMask(dh, s.masks[j])
			dh = m.hidden[j].Backward(s.ins[j], nn.ReLUBackward(s.acts[j], dh))
		}
		dxs[i] = padRows(dh, m.cache.inRows)
	}
	m.cache = nil
	return dxs, nil
}
