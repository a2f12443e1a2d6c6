package nn

import (
	"gonum.org/v1/gonum/mat"
)

// PadSequences right-pads every T_i×D matrix with zero rows to the longest
// T. It returns the padded matrices and the original lengths. The longest
// sequence must have at least one row.
func PadSequences(seqs []*mat.Dense) ([]*mat.Dense, []int) {
	lengths := make([]int, len(seqs))
	maxLen := 0
	for i, s := range seqs {
		lengths[i], _ = s.Dims()
		if lengths[i] > maxLen {
			maxLen = lengths[i]
		}
	}
	padded := make([]*mat.Dense, len(seqs))
	for i, s := range seqs {
		_, d := s.Dims()
		p := mat.NewDense(maxLen, d, nil)
		if lengths[i] > 0 {
			p.Slice(0, lengths[i], 0, d).(*mat.Dense).Copy(s)
		}
		padded[i] = p
	}
	return padded, lengths
}

// PadLabels right-pads every label sequence with pad to the longest length.
// It returns the padded labels and the original lengths.
func PadLabels(labels [][]int, pad int) ([][]int, []int) {
	lengths := make([]int, len(labels))
	maxLen := 0
	for i, l := range labels {
		lengths[i] = len(l)
		if len(l) > maxLen {
			maxLen = len(l)
		}
	}
	padded := make([][]int, len(labels))
	for i, l := range labels {
		p := make([]int, maxLen)
		copy(p, l)
		for j := len(l); j < maxLen; j++ {
			p[j] = pad
		}
		padded[i] = p
	}
	return padded, lengths
}

// MapRows applies f to each matrix of a batch.
func MapRows(xs []*mat.Dense, f func(*mat.Dense) *mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(xs))
	for i, x := range xs {
		out[i] = f(x)
	}
	return out
}
