package ctc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/errors"
)

var negInf = math.Inf(-1)

// Loss configures the CTC criterion.
type Loss struct {
	// Blank is the class index of the blank symbol.
	Blank int
	// ZeroInfinity replaces infinite losses (impossible alignments) and
	// their gradients with zero.
	ZeroInfinity bool
}

// Result is the outcome of a batched CTC evaluation.
type Result struct {
	// Value is the mean reduction: each utterance's negative log-likelihood
	// divided by its target length (at least 1), averaged over the batch.
	Value float64
	// PerSample holds the unreduced negative log-likelihoods.
	PerSample []float64
	// Grads holds dValue/dLogProbs for every utterance, shaped like the input.
	Grads []*mat.Dense
}

// Forward evaluates the loss for a batch. logProbs[n] is T×C (padded T),
// targets[n] holds at least targetLengths[n] labels, and only the first
// inputLengths[n] frames of logProbs[n] are used.
func (l Loss) Forward(logProbs []*mat.Dense, targets [][]int, inputLengths, targetLengths []int) (*Result, error) {
	n := len(logProbs)
	if n == 0 {
		return nil, errors.InvalidInput("log_probs", "empty batch")
	}
	if len(targets) != n || len(inputLengths) != n || len(targetLengths) != n {
		return nil, errors.InvalidInput("targets", fmt.Sprintf(
			"batch size mismatch: %d log-probs, %d targets, %d input lengths, %d target lengths",
			n, len(targets), len(inputLengths), len(targetLengths)))
	}

	res := &Result{PerSample: make([]float64, n), Grads: make([]*mat.Dense, n)}
	for i := 0; i < n; i++ {
		T, C := logProbs[i].Dims()
		if inputLengths[i] < 0 || inputLengths[i] > T {
			return nil, errors.InvalidInput("input_lengths", fmt.Sprintf("sample %d: length %d outside [0,%d]", i, inputLengths[i], T))
		}
		if targetLengths[i] < 0 || targetLengths[i] > len(targets[i]) {
			return nil, errors.InvalidInput("target_lengths", fmt.Sprintf("sample %d: length %d exceeds %d labels", i, targetLengths[i], len(targets[i])))
		}
		if l.Blank < 0 || l.Blank >= C {
			return nil, errors.InvalidInput("blank", fmt.Sprintf("blank %d outside %d classes", l.Blank, C))
		}
		target := targets[i][:targetLengths[i]]
		for _, k := range target {
			if k < 0 || k >= C || k == l.Blank {
				return nil, errors.InvalidInput("targets", fmt.Sprintf("sample %d: invalid label %d", i, k))
			}
		}

		nll, grad := l.sample(logProbs[i], inputLengths[i], target)
		if math.IsInf(nll, 1) && l.ZeroInfinity {
			nll = 0
			grad.Zero()
		}
		res.PerSample[i] = nll

		scale := 1 / (float64(n) * math.Max(1, float64(targetLengths[i])))
		res.Value += nll * scale
		grad.Scale(scale, grad)
		res.Grads[i] = grad
	}
	return res, nil
}

// NLL returns the negative log-likelihood of target under one utterance's
// first inputLen frames.
func (l Loss) NLL(logProbs *mat.Dense, inputLen int, target []int) float64 {
	nll, _ := l.sample(logProbs, inputLen, target)
	return nll
}

// sample runs forward-backward for one utterance.
func (l Loss) sample(lp *mat.Dense, T int, target []int) (float64, *mat.Dense) {
	rows, C := lp.Dims()
	grad := mat.NewDense(rows, C, nil)

	L := len(target)
	S := 2*L + 1
	ext := make([]int, S)
	for s := range ext {
		if s%2 == 0 {
			ext[s] = l.Blank
		} else {
			ext[s] = target[s/2]
		}
	}
	if T == 0 {
		if L == 0 {
			return 0, grad
		}
		return math.Inf(1), grad
	}

	alpha := newLogTable(T, S)
	beta := newLogTable(T, S)

	// A label may follow the label two positions back unless the two are
	// equal, in which case the blank between them is mandatory.
	skip := func(s int) bool {
		return s >= 2 && ext[s] != l.Blank && ext[s] != ext[s-2]
	}

	alpha[0][0] = lp.At(0, ext[0])
	if S > 1 {
		alpha[0][1] = lp.At(0, ext[1])
	}
	for t := 1; t < T; t++ {
		row := lp.RawRowView(t)
		for s := 0; s < S; s++ {
			a := alpha[t-1][s]
			if s >= 1 {
				a = logAdd(a, alpha[t-1][s-1])
			}
			if skip(s) {
				a = logAdd(a, alpha[t-1][s-2])
			}
			if a != negInf {
				a += row[ext[s]]
			}
			alpha[t][s] = a
		}
	}

	beta[T-1][S-1] = lp.At(T-1, ext[S-1])
	if S > 1 {
		beta[T-1][S-2] = lp.At(T-1, ext[S-2])
	}
	for t := T - 2; t >= 0; t-- {
		row := lp.RawRowView(t)
		for s := S - 1; s >= 0; s-- {
			b := beta[t+1][s]
			if s+1 < S {
				b = logAdd(b, beta[t+1][s+1])
			}
			if s+2 < S && skip(s+2) {
				b = logAdd(b, beta[t+1][s+2])
			}
			if b != negInf {
				b += row[ext[s]]
			}
			beta[t][s] = b
		}
	}

	logLik := alpha[T-1][S-1]
	if S > 1 {
		logLik = logAdd(logLik, alpha[T-1][S-2])
	}
	if logLik == negInf {
		return math.Inf(1), grad
	}

	// dNLL/dlp[t,k] = -exp(logsum_{s: ext[s]=k} alpha+beta - lp[t,k] - logLik);
	// alpha and beta both include the emission at t, hence the -lp term.
	occ := make([]float64, C)
	for t := 0; t < T; t++ {
		for k := range occ {
			occ[k] = negInf
		}
		for s := 0; s < S; s++ {
			occ[ext[s]] = logAdd(occ[ext[s]], alpha[t][s]+beta[t][s])
		}
		row, g := lp.RawRowView(t), grad.RawRowView(t)
		for k := 0; k < C; k++ {
			if occ[k] == negInf {
				continue
			}
			g[k] = -math.Exp(occ[k] - row[k] - logLik)
		}
	}
	return -logLik, grad
}

func newLogTable(T, S int) [][]float64 {
	buf := make([]float64, T*S)
	floats.AddConst(negInf, buf)
	table := make([][]float64, T)
	for t := range table {
		table[t] = buf[t*S : (t+1)*S]
	}
	return table
}

// logAdd returns log(exp(a) + exp(b)).
func logAdd(a, b float64) float64 {
	if a == negInf {
		return b
	}
	if b == negInf {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}
