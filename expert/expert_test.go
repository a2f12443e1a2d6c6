package expert

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/ctc"
	"github.com/kbukum/ctckit/dataset"
	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/nn"
	"github.com/kbukum/ctckit/text"
)

type entry struct {
	tag   string
	value float64
	text  string
	step  int
}

type fakeWriter struct {
	scalars []entry
	texts   []entry
}

func (w *fakeWriter) AddScalar(_ context.Context, tag string, v float64, step int) error {
	w.scalars = append(w.scalars, entry{tag: tag, value: v, step: step})
	return nil
}

func (w *fakeWriter) AddText(_ context.Context, tag, text string, step int) error {
	w.texts = append(w.texts, entry{tag: tag, text: text, step: step})
	return nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	vocab := filepath.Join(dir, "vocab.txt")
	if err := os.WriteFile(vocab, []byte("|\nA\nB\nC\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Config{
		Corpus: dataset.Config{
			Name:   "Toy",
			Path:   dir,
			Splits: map[string][]string{"train": {"train.csv"}, "dev": {"dev.csv"}},
		},
		Text:   text.Config{Mode: "character", VocabFile: vocab},
		Model: ModelConfig{
			ProjectDim: 6,
			Select:     "Linear",
			Options: map[string]any{
				"linear": map[string]any{"hidden_size": []int{8}},
			},
		},
		Metric: []string{"cer", "wer"},
	}
}

func randomFeatures(rows []int, dim int, seed uint64) []*mat.Dense {
	rng := nn.NewRand(seed)
	out := make([]*mat.Dense, len(rows))
	for i, r := range rows {
		data := make([]float64, r*dim)
		for j := range data {
			data[j] = rng.NormFloat64()
		}
		out[i] = mat.NewDense(r, dim, data)
	}
	return out
}

func TestNew(t *testing.T) {
	e, err := New(4, 160, RunnerConfig{EvalDataloaders: []string{"dev"}}, testConfig(t), t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.TaskName() != "ctc-toy" {
		t.Errorf("TaskName = %q", e.TaskName())
	}
	if e.Tokenizer().VocabSize() != 7 {
		t.Errorf("VocabSize = %d, want 7", e.Tokenizer().VocabSize())
	}
	if !math.IsInf(e.BestScore(), 1) {
		t.Errorf("BestScore = %v, want +Inf for lower-better metrics", e.BestScore())
	}
	// projector (6x4 + 6) + hidden (8x6 + 8) + out (7x8 + 7)
	if got := nn.CountParams(e.Parameters()); got != 30+56+63 {
		t.Errorf("CountParams = %d, want %d", got, 30+56+63)
	}

	cfg := testConfig(t)
	cfg.MetricHigherBetter = true
	e, err = New(4, 160, RunnerConfig{}, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if e.BestScore() != 0 {
		t.Errorf("BestScore = %v, want 0 for higher-better metrics", e.BestScore())
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		dim    int
		code   errors.ErrorCode
	}{
		{"unknown model", func(c *Config) { c.Model.Select = "Transformer" }, 4, errors.ErrCodeUnknownModel},
		{"unknown metric", func(c *Config) { c.Metric = []string{"bleu"} }, 4, errors.ErrCodeUnknownMetric},
		{"no metric", func(c *Config) { c.Metric = nil }, 4, errors.ErrCodeInvalidConfig},
		{"zero project dim", func(c *Config) { c.Model.ProjectDim = 0 }, 4, errors.ErrCodeInvalidConfig},
		{"missing vocab", func(c *Config) { c.Text.VocabFile = "/nonexistent/vocab.txt" }, 4, errors.ErrCodeNotFound},
		{"zero upstream dim", func(*Config) {}, 0, errors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := New(tt.dim, 160, RunnerConfig{}, cfg, "")
			if !errors.IsCode(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestForward(t *testing.T) {
	e, err := New(4, 160, RunnerConfig{EvalDataloaders: []string{"dev"}}, testConfig(t), "", WithSeed(3))
	if err != nil {
		t.Fatal(err)
	}
	records := NewRecords()
	features := randomFeatures([]int{10, 12, 8}, 4, 1)
	labels := [][]int{{4, 5, 3}, {6, 4, 5, 3, 6}, {4, 4}}
	loss, err := e.Forward("dev", features, labels, []string{"a", "b", "c"}, records)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if math.IsNaN(loss.Value) || math.IsInf(loss.Value, 0) || loss.Value <= 0 {
		t.Fatalf("loss = %v, want finite positive", loss.Value)
	}

	wantKeys := []string{RecordLoss, "cer", "wer", RecordHypothesis, RecordGroundtruth, RecordFilename}
	if got := strings.Join(records.Keys(), ","); got != strings.Join(wantKeys, ",") {
		t.Errorf("Keys = %s, want %s", got, strings.Join(wantKeys, ","))
	}
	for _, key := range []string{RecordLoss, "cer", "wer"} {
		if n := len(records.Scalars(key)); n != 1 {
			t.Errorf("%s has %d values, want 1", key, n)
		}
	}
	if got := records.Texts(RecordGroundtruth)[0]; got != "AB " {
		t.Errorf("groundtruth = %q, want %q", got, "AB ")
	}
	if got := records.Texts(RecordFilename)[0]; got != "a" {
		t.Errorf("filename = %q, want a", got)
	}
	if hyp := records.Texts(RecordHypothesis)[0]; len([]rune(hyp)) > 10 {
		t.Errorf("hypothesis %q longer than the 10 output frames", hyp)
	}

	// A second batch appends rather than replaces.
	if _, err := e.Forward("dev", features[:1], labels[:1], []string{"d"}, records); err != nil {
		t.Fatal(err)
	}
	if n := len(records.Scalars(RecordLoss)); n != 2 {
		t.Errorf("loss has %d values, want 2", n)
	}
}

func TestForwardInputErrors(t *testing.T) {
	e, err := New(4, 160, RunnerConfig{}, testConfig(t), "")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		features  []*mat.Dense
		labels    [][]int
		filenames []string
	}{
		{"empty batch", nil, nil, nil},
		{"label count", randomFeatures([]int{5, 5}, 4, 1), [][]int{{4}}, []string{"a", "b"}},
		{"filename count", randomFeatures([]int{5}, 4, 1), [][]int{{4}}, nil},
		{"wrong width", randomFeatures([]int{5}, 3, 1), [][]int{{4}}, []string{"a"}},
		{"no frames", []*mat.Dense{&mat.Dense{}}, [][]int{{4}}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Forward("dev", tt.features, tt.labels, tt.filenames, NewRecords())
			if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
				t.Fatalf("err = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLossBackward(t *testing.T) {
	e, err := New(4, 160, RunnerConfig{}, testConfig(t), "", WithSeed(5))
	if err != nil {
		t.Fatal(err)
	}
	loss, err := e.Forward(SplitTrain, randomFeatures([]int{9, 6}, 4, 2), [][]int{{4, 5}, {6}}, []string{"a", "b"}, NewRecords())
	if err != nil {
		t.Fatal(err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward: %v", err)
	}
	for _, p := range e.Parameters() {
		if mat.Norm(p.Grad, 2) == 0 {
			t.Errorf("%s has zero gradient", p.Name)
		}
	}
	if err := loss.Backward(); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("second Backward err = %v, want INVALID_INPUT", err)
	}
}

func newLogExpert(higherBetter bool, evalSplits ...string) *Expert {
	return &Expert{
		cfg: Config{
			Corpus:             dataset.Config{Name: "LibriSpeech"},
			Metric:             []string{"wer", "cer"},
			MetricHigherBetter: higherBetter,
		},
		evalSplits: evalSplits,
		bestScore:  initialBest(higherBetter),
		log:        logger.Nop(),
	}
}

func TestLogRecords(t *testing.T) {
	ctx := context.Background()
	e := newLogExpert(true, "dev")

	records := NewRecords()
	records.AddScalar("loss", 2)
	records.AddScalar("loss", 4)
	records.AddScalar("wer", 0.7)
	records.AddScalar("wer", 0.8)
	records.AddText(RecordHypothesis, "HELO")
	records.AddText(RecordGroundtruth, "HELLO")
	records.AddText(RecordFilename, "utt1")

	w := &fakeWriter{}
	names, err := e.LogRecords(ctx, "dev", records, w, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "dev-best.ckpt" {
		t.Errorf("save names = %v, want [dev-best.ckpt]", names)
	}
	if math.Abs(e.BestScore()-0.75) > 1e-12 {
		t.Errorf("BestScore = %v, want 0.75", e.BestScore())
	}
	if len(w.scalars) != 2 || w.scalars[0].tag != "ctc-librispeech/dev-loss" || w.scalars[0].value != 3 || w.scalars[0].step != 100 {
		t.Errorf("scalars = %+v", w.scalars)
	}
	if len(w.texts) != 1 || w.texts[0].tag != "ctc-librispeech/dev-utt1" ||
		w.texts[0].text != "**hypothesis**: HELO<br>**groundtruth**: HELLO" {
		t.Errorf("texts = %+v", w.texts)
	}

	worse := NewRecords()
	worse.AddScalar("wer", 0.6)
	names, err = e.LogRecords(ctx, "dev", worse, &fakeWriter{}, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 || e.BestScore() != 0.75 {
		t.Errorf("names = %v best = %v, want none and 0.75", names, e.BestScore())
	}
}

func TestLogRecordsBestSelection(t *testing.T) {
	tests := []struct {
		name         string
		higherBetter bool
		evalSplits   []string
		split        string
		key          string
		want         bool
	}{
		{"lower better from +Inf", false, []string{"dev"}, "dev", "wer", true},
		{"second eval split", false, []string{"dev", "test"}, "test", "wer", false},
		{"secondary metric", false, []string{"dev"}, "dev", "cer", false},
		{"train split", false, []string{"dev"}, "train", "wer", false},
		{"no eval splits", false, nil, "dev", "wer", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newLogExpert(tt.higherBetter, tt.evalSplits...)
			records := NewRecords()
			records.AddScalar(tt.key, 0.4)
			names, err := e.LogRecords(context.Background(), tt.split, records, &fakeWriter{}, 1)
			if err != nil {
				t.Fatal(err)
			}
			if got := len(names) == 1; got != tt.want {
				t.Errorf("saved = %v (%v), want %v", got, names, tt.want)
			}
		})
	}
}

func TestLogRecordsTextSampling(t *testing.T) {
	tests := []struct {
		n    int
		want []string
	}{
		{3, []string{"f0", "f1", "f2"}},
		{5, []string{"f0", "f1", "f2", "f3", "f4"}},
		{12, []string{"f0", "f2", "f4", "f6", "f8"}},
	}
	for _, tt := range tests {
		e := newLogExpert(false, "dev")
		records := NewRecords()
		for i := 0; i < tt.n; i++ {
			records.AddText(RecordHypothesis, "h")
			records.AddText(RecordGroundtruth, "g")
			records.AddText(RecordFilename, "f"+string(rune('0'+i%10)))
		}
		w := &fakeWriter{}
		if _, err := e.LogRecords(context.Background(), "dev", records, w, 1); err != nil {
			t.Fatal(err)
		}
		if len(w.texts) != len(tt.want) {
			t.Fatalf("n=%d: %d texts, want %d", tt.n, len(w.texts), len(tt.want))
		}
		for i, name := range tt.want {
			if want := "ctc-librispeech/dev-" + name; w.texts[i].tag != want {
				t.Errorf("n=%d: text %d tag = %s, want %s", tt.n, i, w.texts[i].tag, want)
			}
		}
	}
}

func TestSelectedOptions(t *testing.T) {
	m := ModelConfig{
		Select: "RNNs",
		Options: map[string]any{
			"rnns":   map[string]any{"module": "LSTM"},
			"linear": map[string]any{"hidden_size": []int{4}},
		},
	}
	opts := m.SelectedOptions()
	if opts["module"] != "LSTM" {
		t.Errorf("SelectedOptions = %v", opts)
	}
	m.Select = "Other"
	if m.SelectedOptions() != nil {
		t.Errorf("unmatched select should yield nil")
	}
}

func TestHypothesisDecoding(t *testing.T) {
	tok, err := text.NewEncoder(text.ModeCharacter, []string{"|", "A", "B"})
	if err != nil {
		t.Fatal(err)
	}
	// ids: 0 pad/blank, 1 eos, 2 unk, 3 "|", 4 "A", 5 "B"
	tests := []struct {
		name string
		path []int
		want string
	}{
		{"repeats merge", []int{4, 4, 0, 5, 5}, "AB"},
		{"blank splits repeats", []int{4, 0, 4}, "AA"},
		{"all blank", []int{0, 0, 0}, ""},
		{"eos stops", []int{4, 1, 5}, "A"},
		{"padded tail ignored", []int{5, 4, 0, 0}, "BA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp := mat.NewDense(len(tt.path)+2, tok.VocabSize(), nil)
			for i, k := range tt.path {
				lp.Set(i, k, 1)
			}
			// frames past the valid length favour "B" and must not be decoded
			for i := len(tt.path); i < len(tt.path)+2; i++ {
				lp.Set(i, 5, 1)
			}
			got := tok.Decode(ctc.GreedyDecode(lp, len(tt.path), tok.PadIdx()), false)
			if got != tt.want {
				t.Errorf("greedy decode = %q, want %q", got, tt.want)
			}
			if raw := tok.Decode(tt.path, true); raw != got {
				t.Errorf("collapse then decode %q differs from ignoreRepeat decode %q", got, raw)
			}
		})
	}
}
