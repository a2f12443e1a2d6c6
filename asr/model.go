package asr

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-viper/mapstructure/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/nn"
	"github.com/kbukum/ctckit/registry"
)

// Model is a trainable sequence model.
type Model interface {
	nn.Module

	// Forward maps padded inputs with valid lengths to padded logits and
	// output lengths. train enables dropout.
	Forward(xs []*mat.Dense, lengths []int, train bool) ([]*mat.Dense, []int, error)

	// Backward takes dLoss/dLogits for the last Forward call, accumulates
	// parameter gradients and returns dLoss/dInputs shaped like the inputs.
	Backward(dLogits []*mat.Dense) ([]*mat.Dense, error)
}

// Config carries what every factory needs.
type Config struct {
	// InputDim is the per-frame width of the inputs (the projector width).
	InputDim int
	// OutputClassNum is the tokenizer vocabulary size.
	OutputClassNum int
	// UpstreamRate is the number of waveform samples per input frame.
	UpstreamRate int
	// Options holds the model.<select> configuration subtree.
	Options map[string]any
	// Rand seeds weight init and dropout.
	Rand *rand.Rand
}

// Factory builds a Model.
type Factory func(cfg Config) (Model, error)

// Registry maps model names to factories.
type Registry = registry.Registry[Factory]

// Default model names.
const (
	ModelLinear = "Linear"
	ModelRNNs   = "RNNs"
)

// Defaults returns a registry with the built-in models.
func Defaults() *Registry {
	r := registry.New[Factory]()
	r.Register(ModelLinear, NewLinearModel)
	r.Register(ModelRNNs, NewRNNs)
	return r
}

// Build looks up name in r and constructs the model.
func Build(r *Registry, name string, cfg Config) (Model, error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, errors.UnknownModel(name, r.List())
	}
	if cfg.InputDim <= 0 || cfg.OutputClassNum <= 0 {
		return nil, errors.InvalidConfig("model", fmt.Sprintf(
			"input dim %d and class count %d must be positive", cfg.InputDim, cfg.OutputClassNum))
	}
	if cfg.Rand == nil {
		cfg.Rand = nn.NewRand(0)
	}
	return factory(cfg)
}

// decodeOptions decodes a raw option map into out. Keys absent from raw
// keep the values already in out.
func decodeOptions(raw map[string]any, out any) error {
	if len(raw) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
	})
	if err != nil {
		return errors.Internal(err)
	}
	if err := dec.Decode(raw); err != nil {
		return errors.InvalidConfig("model", err.Error()).WithCause(err)
	}
	return nil
}

// checkBatch validates the shape of a Forward batch.
func checkBatch(xs []*mat.Dense, lengths []int, dim int) (maxRows int, err error) {
	if len(xs) == 0 {
		return 0, errors.InvalidInput("features", "empty batch")
	}
	if len(lengths) != len(xs) {
		return 0, errors.InvalidInput("lengths", fmt.Sprintf("%d lengths for %d inputs", len(lengths), len(xs)))
	}
	for i, x := range xs {
		r, c := x.Dims()
		if c != dim {
			return 0, errors.InvalidInput("features", fmt.Sprintf("sample %d: width %d, want %d", i, c, dim))
		}
		if lengths[i] < 1 || lengths[i] > r {
			return 0, errors.InvalidInput("lengths", fmt.Sprintf("sample %d: length %d outside [1,%d]", i, lengths[i], r))
		}
		if r > maxRows {
			maxRows = r
		}
	}
	return maxRows, nil
}

// checkGrads validates dLogits against the cached output shape.
func checkGrads(dLogits []*mat.Dense, n, rows int) error {
	if n == 0 {
		return errors.InvalidInput("grads", "backward called before forward")
	}
	if len(dLogits) != n {
		return errors.InvalidInput("grads", fmt.Sprintf("%d gradients for %d outputs", len(dLogits), n))
	}
	for i, d := range dLogits {
		if r, _ := d.Dims(); r < rows {
			return errors.InvalidInput("grads", fmt.Sprintf("sample %d: %d rows, want %d", i, r, rows))
		}
	}
	return nil
}

// validRows copies the first n rows of x.
func validRows(x *mat.Dense, n int) *mat.Dense {
	_, c := x.Dims()
	return mat.DenseCopyOf(x.Slice(0, n, 0, c))
}

// padRows copies x into a zero matrix with rows rows.
func padRows(x *mat.Dense, rows int) *mat.Dense {
	r, c := x.Dims()
	if r == rows {
		return x
	}
	p := mat.NewDense(rows, c, nil)
	p.Slice(0, r, 0, c).(*mat.Dense).Copy(x)
	return p
}
