package asr

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/nn"
	"github.com/kbukum/ctckit/validation"
)

// Frame down-sampling styles.
const (
	SampleStyleDrop   = "drop"
	SampleStyleConcat = "concat"
)

// RNNsOptions configures the RNNs model. Per-layer lists have one entry
// per element of Dim; omitted lists take their defaults.
type RNNsOptions struct {
	Module      string    `mapstructure:"module" validate:"oneof=LSTM RNN"`
	Bidirection bool      `mapstructure:"bidirection"`
	Dim         []int     `mapstructure:"dim" validate:"min=1,dive,gt=0"`
	Dropout     []float64 `mapstructure:"dropout" validate:"dive,gte=0,lte=0.99"`
	LayerNorm   []bool    `mapstructure:"layer_norm"`
	Proj        []bool    `mapstructure:"proj"`
	SampleRate  []int     `mapstructure:"sample_rate" validate:"dive,gte=1"`
	SampleStyle string    `mapstructure:"sample_style" validate:"oneof=drop concat"`
	// TotalRate is the target number of waveform samples per model frame
	// before the recurrent layers, or -1 to keep the upstream rate.
	TotalRate int `mapstructure:"total_rate"`
}

// DefaultRNNsOptions mirrors the usual two-layer bidirectional LSTM recipe.
func DefaultRNNsOptions() RNNsOptions {
	return RNNsOptions{
		Module:      ModuleLSTM,
		Bidirection: true,
		Dim:         []int{256, 256},
		SampleStyle: SampleStyleConcat,
		TotalRate:   -1,
	}
}

func (o *RNNsOptions) applyDefaults() error {
	o.Module = strings.ToUpper(o.Module)
	n := len(o.Dim)
	if len(o.Dropout) == 0 {
		o.Dropout = make([]float64, n)
	}
	if len(o.LayerNorm) == 0 {
		o.LayerNorm = make([]bool, n)
	}
	if len(o.Proj) == 0 {
		o.Proj = make([]bool, n)
	}
	if len(o.SampleRate) == 0 {
		o.SampleRate = make([]int, n)
		for i := range o.SampleRate {
			o.SampleRate[i] = 1
		}
	}
	for key, l := range map[string]int{
		"dropout": len(o.Dropout), "layer_norm": len(o.LayerNorm),
		"proj": len(o.Proj), "sample_rate": len(o.SampleRate),
	} {
		if l != n {
			return errors.InvalidConfig("model.rnns."+key, fmt.Sprintf("has %d entries, dim has %d", l, n))
		}
	}
	return nil
}

// rnnLayer is one recurrent layer followed by optional layer norm,
// dropout, frame dropping and a tanh projection.
type rnnLayer struct {
	rnn        *birnn
	ln         *nn.LayerNorm
	dropout    float64
	sampleRate int
	proj       *nn.Linear
}

type rnnLayerCache struct {
	rows    int
	rc      *birnnCache
	lc      *nn.LayerNormCache
	mask    *mat.Dense
	projIn  *mat.Dense
	projOut *mat.Dense
}

func (l *rnnLayer) Parameters() []*nn.Param {
	ps := l.rnn.Parameters()
	if l.ln != nil {
		ps = append(ps, l.ln.Parameters()...)
	}
	if l.proj != nil {
		ps = append(ps, l.proj.Parameters()...)
	}
	return ps
}

func (l *rnnLayer) outLen(n int) int { return n / l.sampleRate }

func (l *rnnLayer) forward(x *mat.Dense, train bool, rng *rand.Rand) (*mat.Dense, *rnnLayerCache) {
	rows, _ := x.Dims()
	y, rc := l.rnn.forward(x)
	cache := &rnnLayerCache{rows: rows, rc: rc}
	if l.ln != nil {
		y, cache.lc = l.ln.Forward(y)
	}
	if train && l.dropout > 0 {
		r, c := y.Dims()
		cache.mask = nn.DropoutMask(r, c, l.dropout, rng)
		y = nn.ApplyMask(y, cache.mask)
	}
	if l.sampleRate > 1 {
		y = takeEvery(y, l.sampleRate, l.outLen(rows))
	}
	if l.proj != nil {
		cache.projIn = y
		y = nn.Tanh(l.proj.Forward(y))
		cache.projOut = y
	}
	return y, cache
}

func (l *rnnLayer) backward(cache *rnnLayerCache, dy *mat.Dense) *mat.Dense {
	if l.proj != nil {
		dy = l.proj.Backward(cache.projIn, nn.TanhBackward(cache.projOut, dy))
	}
	if l.sampleRate > 1 {
		dy = scatterEvery(dy, l.sampleRate, cache.rows)
	}
	dy = nn.ApplyMask(dy, cache.mask)
	if l.ln != nil {
		dy = l.ln.Backward(cache.lc, dy)
	}
	return l.rnn.backward(cache.rc, dy)
}

// takeEvery keeps rows 0, rate, 2·rate, ... up to n rows.
func takeEvery(x *mat.Dense, rate, n int) *mat.Dense {
	_, c := x.Dims()
	y := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		copy(y.RawRowView(i), x.RawRowView(i*rate))
	}
	return y
}

// scatterEvery is the adjoint of takeEvery.
func scatterEvery(dy *mat.Dense, rate, rows int) *mat.Dense {
	n, c := dy.Dims()
	dx := mat.NewDense(rows, c, nil)
	for i := 0; i < n; i++ {
		copy(dx.RawRowView(i*rate), dy.RawRowView(i))
	}
	return dx
}

// concatFrames stacks every rate consecutive frames into one row, dropping
// the remainder.
func concatFrames(x *mat.Dense, rate int) *mat.Dense {
	r, c := x.Dims()
	n := r / rate
	y := mat.NewDense(n, c*rate, nil)
	for i := 0; i < n; i++ {
		row := y.RawRowView(i)
		for k := 0; k < rate; k++ {
			copy(row[k*c:(k+1)*c], x.RawRowView(i*rate+k))
		}
	}
	return y
}

// splitFrames is the adjoint of concatFrames.
func splitFrames(dy *mat.Dense, rate, rows int) *mat.Dense {
	n, wide := dy.Dims()
	c := wide / rate
	dx := mat.NewDense(rows, c, nil)
	for i := 0; i < n; i++ {
		row := dy.RawRowView(i)
		for k := 0; k < rate; k++ {
			copy(dx.RawRowView(i*rate+k), row[k*c:(k+1)*c])
		}
	}
	return dx
}

// RNNs is a stack of recurrent layers followed by a linear classifier.
type RNNs struct {
	inputDim   int
	sampleRate int
	style      string
	layers     []*rnnLayer
	out        *nn.Linear
	rng        *rand.Rand
	cache      *rnnsCache
}

type rnnsCache struct {
	inRows  int
	outRows int
	samples []rnnsSample
}

type rnnsSample struct {
	length int
	layers []*rnnLayerCache
	hidden *mat.Dense
}

// NewRNNs is the RNNs factory.
func NewRNNs(cfg Config) (Model, error) {
	opts := DefaultRNNsOptions()
	if err := decodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	if err := validation.Validate(&opts); err != nil {
		return nil, err
	}

	sampleRate := 1
	if opts.TotalRate != -1 {
		if cfg.UpstreamRate <= 0 || opts.TotalRate <= 0 {
			return nil, errors.InvalidConfig("model.rnns.total_rate",
				fmt.Sprintf("total rate %d with upstream rate %d", opts.TotalRate, cfg.UpstreamRate))
		}
		sampleRate = int(math.Round(float64(opts.TotalRate) / float64(cfg.UpstreamRate)))
		if sampleRate < 1 {
			return nil, errors.InvalidConfig("model.rnns.total_rate",
				fmt.Sprintf("total rate %d is below the upstream rate %d", opts.TotalRate, cfg.UpstreamRate))
		}
	}

	m := &RNNs{
		inputDim:   cfg.InputDim,
		sampleRate: sampleRate,
		style:      opts.SampleStyle,
		rng:        cfg.Rand,
	}
	in := cfg.InputDim
	if sampleRate > 1 && opts.SampleStyle == SampleStyleConcat {
		in *= sampleRate
	}
	for i, dim := range opts.Dim {
		name := fmt.Sprintf("rnns.%d", i)
		b := &birnn{fwd: newRecurrent(name+".forward", opts.Module, in, dim, cfg.Rand)}
		if opts.Bidirection {
			b.bwd = newRecurrent(name+".backward", opts.Module, in, dim, cfg.Rand)
		}
		layer := &rnnLayer{rnn: b, dropout: opts.Dropout[i], sampleRate: opts.SampleRate[i]}
		out := b.outDim()
		if opts.LayerNorm[i] {
			layer.ln = nn.NewLayerNorm(name+".ln", out)
		}
		if opts.Proj[i] {
			layer.proj = nn.NewLinear(name+".proj", out, out, cfg.Rand)
		}
		m.layers = append(m.layers, layer)
		in = out
	}
	m.out = nn.NewLinear("rnns.linear", in, cfg.OutputClassNum, cfg.Rand)
	return m, nil
}

// Parameters implements nn.Module.
func (m *RNNs) Parameters() []*nn.Param {
	var ps []*nn.Param
	for _, l := range m.layers {
		ps = append(ps, l.Parameters()...)
	}
	return append(ps, m.out.Parameters()...)
}

// OutputLength returns the number of output frames for n input frames.
func (m *RNNs) OutputLength(n int) int {
	n /= m.sampleRate
	for _, l := range m.layers {
		n = l.outLen(n)
	}
	return n
}

// Forward implements Model.
func (m *RNNs) Forward(xs []*mat.Dense, lengths []int, train bool) ([]*mat.Dense, []int, error) {
	inRows, err := checkBatch(xs, lengths, m.inputDim)
	if err != nil {
		return nil, nil, err
	}
	outLens := make([]int, len(xs))
	outRows := 0
	for i, n := range lengths {
		outLens[i] = m.OutputLength(n)
		if outLens[i] < 1 {
			return nil, nil, errors.InvalidInput("lengths", fmt.Sprintf(
				"sample %d: %d frames leave no output after down-sampling", i, n))
		}
		outRows = max(outRows, outLens[i])
	}

	cache := &rnnsCache{inRows: inRows, outRows: outRows, samples: make([]rnnsSample, len(xs))}
	logits := make([]*mat.Dense, len(xs))
	for i, x := range xs {
		h := validRows(x, lengths[i])
		if m.sampleRate > 1 {
			if m.style == SampleStyleDrop {
				h = takeEvery(h, m.sampleRate, lengths[i]/m.sampleRate)
			} else {
				h = concatFrames(h, m.sampleRate)
			}
		}
		s := rnnsSample{length: lengths[i], layers: make([]*rnnLayerCache, len(m.layers))}
		for j, l := range m.layers {
			h, s.layers[j] = l.forward(h, train, m.rng)
		}
		s.hidden = h
		cache.samples[i] = s
		logits[i] = padRows(m.out.Forward(h), outRows)
	}
	m.cache = cache
	return logits, outLens, nil
}

// Backward implements Model.
func (m *RNNs) Backward(dLogits []*mat.Dense) ([]*mat.Dense, error) {
	if m.cache == nil {
		return nil, checkGrads(dLogits, 0, 0)
	}
	if err := checkGrads(dLogits, len(m.cache.samples), m.cache.outRows); err != nil {
		return nil, err
	}
	dxs := make([]*mat.Dense, len(dLogits))
	for i, s := range m.cache.samples {
		rows, _ := s.hidden.Dims()
		dh := m.out.Backward(s.hidden, validRows(dLogits[i], rows))
		for j := len(m.layers) - 1; j >= 0; j-- {
			dh = m.layers[j].backward(s.layers[j], dh)
		}
		if m.sampleRate > 1 {
			if m.style == SampleStyleDrop {
				dh = scatterEvery(dh, m.sampleRate, s.length)
			} else {
				dh = splitFrames(dh, m.sampleRate, s.length)
			}
		}
		dxs[i] = padRows(dh, m.cache.inRows)
	}
	m.cache = nil
	return dxs, nil
}
