package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// DropoutMask draws an inverted-dropout mask: each entry is 0 with
// probability p and 1/(1-p) otherwise. It returns nil when p <= 0.
func DropoutMask(r, c int, p float64, rng *rand.Rand) *mat.Dense {
	if p <= 0 {
		return nil
	}
	mask := mat.NewDense(r, c, nil)
	if p >= 1 {
		return mask
	}
	keep := 1 / (1 - p)
	raw := mask.RawMatrix()
	for i := range raw.Data {
		if rng.Float64() >= p {
			raw.Data[i] = keep
		}
	}
	return mask
}

// ApplyMask multiplies x by mask element-wise. A nil mask is the identity.
// The same call serves Forward and Backward.
func ApplyMask(x, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return x
	}
	var y mat.Dense
	y.MulElem(x, mask)
	return &y
}
