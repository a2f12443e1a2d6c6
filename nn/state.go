package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/errors"
)

// Tensor is the serialisable form of a parameter.
type Tensor struct {
	Rows, Cols int
	Data       []float64
}

// StateDict copies parameter values keyed by name.
func StateDict(params []*Param) map[string]Tensor {
	state := make(map[string]Tensor, len(params))
	for _, p := range params {
		r, c := p.Value.Dims()
		data := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			data = append(data, p.Value.RawRowView(i)...)
		}
		state[p.Name] = Tensor{Rows: r, Cols: c, Data: data}
	}
	return state
}

// LoadStateDict copies values from state into params. Every param must be
// present with a matching shape.
func LoadStateDict(params []*Param, state map[string]Tensor) error {
	for _, p := range params {
		t, ok := state[p.Name]
		if !ok {
			return errors.InvalidInput("state", "missing parameter "+p.Name)
		}
		r, c := p.Value.Dims()
		if t.Rows != r || t.Cols != c || len(t.Data) != r*c {
			return errors.InvalidInput("state", fmt.Sprintf(
				"parameter %s has shape %dx%d, checkpoint has %dx%d", p.Name, r, c, t.Rows, t.Cols))
		}
		p.Value.Copy(mat.NewDense(r, c, t.Data))
	}
	return nil
}
