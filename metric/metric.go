// Package metric scores decoded hypotheses against ground truth.
//
// Every metric shares one argument contract (Args) so that experiment
// configuration can name metrics as strings and resolve them through a
// registry.
package metric

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/registry"
)

// Args is the fixed input of every metric function.
type Args struct {
	LogProbs    []*mat.Dense
	LogProbsLen []int
	Hypothesis  []string
	Groundtruth []string
}

// Func computes a scalar score for a batch.
type Func func(Args) float64

// Registry maps metric names to functions.
type Registry = registry.Registry[Func]

// Defaults returns a registry with cer, wer and per.
func Defaults() *Registry {
	r := registry.New[Func]()
	r.Register("cer", CER)
	r.Register("wer", WER)
	r.Register("per", PER)
	return r
}

// Resolve looks up every name in order.
func Resolve(r *Registry, names []string) ([]Func, error) {
	funcs := make([]Func, len(names))
	for i, name := range names {
		f, ok := r.Lookup(name)
		if !ok {
			return nil, errors.UnknownMetric(name, r.List())
		}
		funcs[i] = f
	}
	return funcs, nil
}

// CER is the character error rate: total character edit distance over
// total ground-truth characters.
func CER(a Args) float64 {
	return errorRate(a, func(s string) []string {
		runes := []rune(s)
		out := make([]string, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out
	})
}

// WER is the word error rate over whitespace-separated words.
func WER(a Args) float64 {
	return errorRate(a, strings.Fields)
}

// PER is the phone error rate; transcripts hold space-separated phones.
func PER(a Args) float64 {
	return WER(a)
}

func errorRate(a Args, split func(string) []string) float64 {
	var errs, total int
	for i := range a.Groundtruth {
		var hyp string
		if i < len(a.Hypothesis) {
			hyp = a.Hypothesis[i]
		}
		ref := split(a.Groundtruth[i])
		errs += EditDistance(split(hyp), ref)
		total += len(ref)
	}
	if total == 0 {
		total = 1
	}
	return float64(errs) / float64(total)
}

// EditDistance is the Levenshtein distance between two token sequences.
func EditDistance(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
