package nn

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/errors"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	Step(params []*Param)
	// LR returns the current learning rate.
	LR() float64
}

// OptimizerConfig selects and configures an optimizer.
type OptimizerConfig struct {
	Name        string  `mapstructure:"name" validate:"required,oneof=SGD sgd Adam adam AdamW adamw"`
	LR          float64 `mapstructure:"lr" validate:"gt=0"`
	Momentum    float64 `mapstructure:"momentum" validate:"gte=0,lt=1"`
	Beta1       float64 `mapstructure:"beta1" validate:"gte=0,lt=1"`
	Beta2       float64 `mapstructure:"beta2" validate:"gte=0,lt=1"`
	Eps         float64 `mapstructure:"eps" validate:"gte=0"`
	WeightDecay float64 `mapstructure:"weight_decay" validate:"gte=0"`
}

// ApplyDefaults fills the Adam constants.
func (c *OptimizerConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "Adam"
	}
	if c.LR == 0 {
		c.LR = 1e-4
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
}

// NewOptimizer builds the optimizer named by cfg.Name.
func NewOptimizer(cfg OptimizerConfig) (Optimizer, error) {
	switch strings.ToLower(cfg.Name) {
	case "sgd":
		return &SGD{Rate: cfg.LR, Momentum: cfg.Momentum, WeightDecay: cfg.WeightDecay}, nil
	case "adam", "adamw":
		return &Adam{
			Rate:        cfg.LR,
			Beta1:       cfg.Beta1,
			Beta2:       cfg.Beta2,
			Eps:         cfg.Eps,
			WeightDecay: cfg.WeightDecay,
			Decoupled:   strings.EqualFold(cfg.Name, "adamw"),
		}, nil
	default:
		return nil, errors.InvalidConfig("optimizer.name", "unsupported optimizer "+cfg.Name)
	}
}

// SGD is stochastic gradient descent with optional momentum.
type SGD struct {
	Rate        float64
	Momentum    float64
	WeightDecay float64
	velocity    map[*Param]*mat.Dense
}

// LR implements Optimizer.
func (o *SGD) LR() float64 { return o.Rate }

// Step implements Optimizer.
func (o *SGD) Step(params []*Param) {
	if o.velocity == nil {
		o.velocity = make(map[*Param]*mat.Dense)
	}
	for _, p := range params {
		g := gradWithDecay(p, o.WeightDecay)
		if o.Momentum > 0 {
			v, ok := o.velocity[p]
			if !ok {
				r, c := p.Value.Dims()
				v = mat.NewDense(r, c, nil)
				o.velocity[p] = v
			}
			v.Scale(o.Momentum, v)
			v.Add(v, g)
			g = v
		}
		var upd mat.Dense
		upd.Scale(o.Rate, g)
		p.Value.Sub(p.Value, &upd)
	}
}

// Adam implements Adam, or AdamW when Decoupled is set.
type Adam struct {
	Rate        float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64
	Decoupled   bool

	t int
	m map[*Param]*mat.Dense
	v map[*Param]*mat.Dense
}

// LR implements Optimizer.
func (o *Adam) LR() float64 { return o.Rate }

// Step implements Optimizer.
func (o *Adam) Step(params []*Param) {
	if o.m == nil {
		o.m = make(map[*Param]*mat.Dense)
		o.v = make(map[*Param]*mat.Dense)
	}
	o.t++
	bc1 := 1 - math.Pow(o.Beta1, float64(o.t))
	bc2 := 1 - math.Pow(o.Beta2, float64(o.t))

	for _, p := range params {
		r, c := p.Value.Dims()
		m, ok := o.m[p]
		if !ok {
			m = mat.NewDense(r, c, nil)
			o.m[p] = m
			o.v[p] = mat.NewDense(r, c, nil)
		}
		v := o.v[p]

		g := p.Grad
		if o.Decoupled {
			if o.WeightDecay > 0 {
				p.Value.Scale(1-o.Rate*o.WeightDecay, p.Value)
			}
		} else {
			g = gradWithDecay(p, o.WeightDecay)
		}

		w, gr := p.Value.RawMatrix(), g.RawMatrix()
		mr, vr := m.RawMatrix(), v.RawMatrix()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				gi := gr.Data[i*gr.Stride+j]
				mi := &mr.Data[i*mr.Stride+j]
				vi := &vr.Data[i*vr.Stride+j]
				*mi = o.Beta1*(*mi) + (1-o.Beta1)*gi
				*vi = o.Beta2*(*vi) + (1-o.Beta2)*gi*gi
				mhat := *mi / bc1
				vhat := *vi / bc2
				w.Data[i*w.Stride+j] -= o.Rate * mhat / (math.Sqrt(vhat) + o.Eps)
			}
		}
	}
}

func gradWithDecay(p *Param, decay float64) *mat.Dense {
	if decay <= 0 {
		return p.Grad
	}
	var g mat.Dense
	g.Scale(decay, p.Value)
	g.Add(&g, p.Grad)
	return &g
}

// GradNorm returns the global L2 norm over all gradients.
func GradNorm(params []*Param) float64 {
	var sq float64
	for _, p := range params {
		raw := p.Grad.RawMatrix()
		for i := 0; i < raw.Rows; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
			sq += floats.Dot(row, row)
		}
	}
	return math.Sqrt(sq)
}

// ClipGradNorm rescales all gradients so their global norm is at most
// maxNorm and returns the norm before clipping.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	norm := GradNorm(params)
	if maxNorm <= 0 || norm <= maxNorm || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return norm
	}
	scale := maxNorm / (norm + 1e-6)
	for _, p := range params {
		p.Grad.Scale(scale, p.Grad)
	}
	return norm
}

// ScaleGrad multiplies all gradients by s.
func ScaleGrad(params []*Param, s float64) {
	for _, p := range params {
		p.Grad.Scale(s, p.Grad)
	}
}
