package ctc

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ArgMax returns the most likely class of each of the first length frames.
func ArgMax(logProbs *mat.Dense, length int) []int {
	rows, _ := logProbs.Dims()
	if length > rows {
		length = rows
	}
	if length < 0 {
		length = 0
	}
	ids := make([]int, length)
	for t := 0; t < length; t++ {
		ids[t] = floats.MaxIdx(logProbs.RawRowView(t))
	}
	return ids
}

// Collapse merges consecutive repeats and removes blanks, turning a frame
// path into a label sequence.
func Collapse(path []int, blank int) []int {
	out := make([]int, 0, len(path))
	for t, k := range path {
		if t > 0 && k == path[t-1] {
			continue
		}
		if k == blank {
			continue
		}
		out = append(out, k)
	}
	return out
}

// GreedyDecode is ArgMax followed by Collapse.
func GreedyDecode(logProbs *mat.Dense, length, blank int) []int {
	return Collapse(ArgMax(logProbs, length), blank)
}
