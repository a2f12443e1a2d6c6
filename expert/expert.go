package expert

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/asr"
	"github.com/kbukum/ctckit/ctc"
	"github.com/kbukum/ctckit/dataset"
	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/metric"
	"github.com/kbukum/ctckit/nn"
	"github.com/kbukum/ctckit/text"
	"github.com/kbukum/ctckit/tracker"
	"github.com/kbukum/ctckit/validation"
)

// SplitTrain enables training behaviour in Forward.
const SplitTrain = dataset.SplitTrain

// maxTextSamples caps the text entries LogRecords emits per split.
const maxTextSamples = 5

// Expert is the CTC downstream adapter.
type Expert struct {
	cfg          Config
	evalSplits   []string
	upstreamDim  int
	upstreamRate int
	expDir       string

	tokenizer  text.Encoder
	projector  *nn.Linear
	model      asr.Model
	objective  ctc.Loss
	metrics    []metric.Func
	bestScore  float64
	loaderOpts []dataset.Option
	log        *logger.Logger
}

type options struct {
	log        *logger.Logger
	models     *asr.Registry
	metrics    *metric.Registry
	seed       uint64
	loaderOpts []dataset.Option
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithModelRegistry replaces the built-in sequence models.
func WithModelRegistry(r *asr.Registry) Option {
	return func(o *options) { o.models = r }
}

// WithMetricRegistry replaces the built-in metrics.
func WithMetricRegistry(r *metric.Registry) Option {
	return func(o *options) { o.metrics = r }
}

// WithSeed seeds weight initialisation and dropout.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithDataLoaderOptions passes options to every dataset.Load call.
func WithDataLoaderOptions(opts ...dataset.Option) Option {
	return func(o *options) { o.loaderOpts = append(o.loaderOpts, opts...) }
}

// New builds the tokenizer, projector, sequence model, CTC loss and
// metric functions for features of width upstreamDim, one frame per
// upstreamRate waveform samples.
func New(upstreamDim, upstreamRate int, runner RunnerConfig, cfg Config, expDir string, opts ...Option) (*Expert, error) {
	o := options{log: logger.Nop(), models: asr.Defaults(), metrics: metric.Defaults()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.WithComponent("expert")

	if err := validation.New().
		Min("upstream_dim", upstreamDim, 1).
		Min("upstream_rate", upstreamRate, 1).
		Validate(); err != nil {
		return nil, err
	}
	cfg.Corpus.ApplyDefaults()
	if err := validation.Validate(&cfg); err != nil {
		return nil, err
	}

	tokenizer, err := text.LoadEncoder(cfg.Text)
	if err != nil {
		return nil, err
	}
	metrics, err := metric.Resolve(o.metrics, cfg.Metric)
	if err != nil {
		return nil, err
	}

	rng := nn.NewRand(o.seed)
	projector := nn.NewLinear("projector", upstreamDim, cfg.Model.ProjectDim, rng)
	model, err := asr.Build(o.models, cfg.Model.Select, asr.Config{
		InputDim:       cfg.Model.ProjectDim,
		OutputClassNum: tokenizer.VocabSize(),
		UpstreamRate:   upstreamRate,
		Options:        cfg.Model.SelectedOptions(),
		Rand:           rng,
	})
	if err != nil {
		return nil, err
	}

	e := &Expert{
		cfg:          cfg,
		evalSplits:   append([]string(nil), runner.EvalDataloaders...),
		upstreamDim:  upstreamDim,
		upstreamRate: upstreamRate,
		expDir:       expDir,
		tokenizer:    tokenizer,
		projector:    projector,
		model:        model,
		objective:    ctc.Loss{Blank: tokenizer.PadIdx(), ZeroInfinity: cfg.Model.ZeroInfinity},
		metrics:      metrics,
		bestScore:    initialBest(cfg.MetricHigherBetter),
		loaderOpts:   o.loaderOpts,
		log:          log,
	}
	log.Info("expert ready", logger.Fields(
		"model", cfg.Model.Select,
		"vocab_size", tokenizer.VocabSize(),
		"project_dim", cfg.Model.ProjectDim,
		"params", nn.CountParams(e.Parameters()),
		"expdir", expDir,
	))
	return e, nil
}

func initialBest(higherBetter bool) float64 {
	if higherBetter {
		return 0
	}
	return math.Inf(1)
}

// Parameters returns the projector and model parameters.
func (e *Expert) Parameters() []*nn.Param {
	return append(e.projector.Parameters(), e.model.Parameters()...)
}

// Tokenizer returns the text encoder.
func (e *Expert) Tokenizer() text.Encoder { return e.tokenizer }

// TaskName is the prefix of every logged tag.
func (e *Expert) TaskName() string {
	return "ctc-" + strings.ToLower(e.cfg.Corpus.Name)
}

// BestScore returns the best primary-metric mean seen so far.
func (e *Expert) BestScore() float64 { return e.bestScore }

// SetBestScore restores the best score, e.g. from a checkpoint.
func (e *Expert) SetBestScore(v float64) { e.bestScore = v }

// GetDataloader returns the loader of split.
func (e *Expert) GetDataloader(split string) (*dataset.DataLoader, error) {
	return dataset.Load(split, e.tokenizer, e.cfg.Corpus, e.loaderOpts...)
}

// Loss is the result of one Forward call.
type Loss struct {
	// Value is the mean CTC loss of the batch.
	Value float64

	e         *Expert
	padded    []*mat.Dense
	logProbs  []*mat.Dense
	grads     []*mat.Dense
	backwards bool
}

// Backward accumulates gradients into the projector and model parameters.
// It may be called once, before the next Forward.
func (l *Loss) Backward() error {
	if l.backwards {
		return errors.InvalidInput("loss", "backward already called")
	}
	l.backwards = true

	dLogits := make([]*mat.Dense, len(l.grads))
	for i := range l.grads {
		dLogits[i] = nn.LogSoftmaxBackward(l.logProbs[i], l.grads[i])
	}
	dProj, err := l.e.model.Backward(dLogits)
	if err != nil {
		return err
	}
	for i, d := range dProj {
		l.e.projector.Backward(l.padded[i], d)
	}
	return nil
}

// Forward runs one batch. features[i] is a T_i×upstreamDim matrix, labels[i]
// its token ids and filenames[i] its utterance name. It appends the loss,
// every configured metric and the first utterance's hypothesis, groundtruth
// and filename to records.
func (e *Expert) Forward(split string, features []*mat.Dense, labels [][]int, filenames []string, records *Records) (*Loss, error) {
	if err := e.checkBatch(features, labels, filenames); err != nil {
		return nil, err
	}

	padded, featLens := nn.PadSequences(features)
	paddedLabels, labelLens := nn.PadLabels(labels, e.tokenizer.PadIdx())

	projected := nn.MapRows(padded, e.projector.Forward)
	logits, outLens, err := e.model.Forward(projected, featLens, split == SplitTrain)
	if err != nil {
		return nil, err
	}
	logProbs := nn.MapRows(logits, nn.LogSoftmax)

	res, err := e.objective.Forward(logProbs, paddedLabels, outLens, labelLens)
	if err != nil {
		return nil, err
	}
	records.AddScalar(RecordLoss, res.Value)

	hypothesis := make([]string, len(logProbs))
	groundtruth := make([]string, len(logProbs))
	for i := range logProbs {
		hypothesis[i] = e.tokenizer.Decode(ctc.GreedyDecode(logProbs[i], outLens[i], e.tokenizer.PadIdx()), false)
		groundtruth[i] = e.tokenizer.Decode(paddedLabels[i], false)
	}

	args := metric.Args{
		LogProbs:    logProbs,
		LogProbsLen: outLens,
		Hypothesis:  hypothesis,
		Groundtruth: groundtruth,
	}
	for i, f := range e.metrics {
		records.AddScalar(e.cfg.Metric[i], f(args))
	}

	records.AddText(RecordHypothesis, hypothesis[0])
	records.AddText(RecordGroundtruth, groundtruth[0])
	records.AddText(RecordFilename, filenames[0])

	return &Loss{Value: res.Value, e: e, padded: padded, logProbs: logProbs, grads: res.Grads}, nil
}

func (e *Expert) checkBatch(features []*mat.Dense, labels [][]int, filenames []string) error {
	if len(features) == 0 {
		return errors.InvalidInput("features", "empty batch")
	}
	if len(labels) != len(features) || len(filenames) != len(features) {
		return errors.InvalidInput("labels", fmt.Sprintf(
			"%d features, %d labels and %d filenames", len(features), len(labels), len(filenames)))
	}
	for i, f := range features {
		r, c := f.Dims()
		if r == 0 {
			return errors.InvalidInput("features", fmt.Sprintf("sample %d has no frames", i))
		}
		if c != e.upstreamDim {
			return errors.InvalidInput("features", fmt.Sprintf("sample %d: width %d, want %d", i, c, e.upstreamDim))
		}
	}
	return nil
}

// LogRecords averages every numeric record of split, logs it under
// <task>/<split>-<key>, and logs up to five hypothesis/groundtruth samples.
// It returns "<split>-best.ckpt" when the primary metric improved on the
// first evaluation split.
func (e *Expert) LogRecords(ctx context.Context, split string, records *Records, w tracker.Writer, globalStep int) ([]string, error) {
	var saveNames []string
	for _, key := range records.Keys() {
		if !records.IsScalar(key) {
			continue
		}
		values := records.Scalars(key)
		average := floats.Sum(values) / float64(len(values))
		e.log.Info("split average", logger.Fields("split", split, "key", key, "value", average, "step", globalStep))

		tag := fmt.Sprintf("%s/%s-%s", e.TaskName(), split, key)
		if err := w.AddScalar(ctx, tag, average, globalStep); err != nil {
			return nil, err
		}
		if key == e.cfg.Metric[0] && len(e.evalSplits) > 0 && split == e.evalSplits[0] && e.improves(average) {
			e.bestScore = average
			saveNames = append(saveNames, split+"-best.ckpt")
		}
	}

	filenames := records.Texts(RecordFilename)
	hyps := records.Texts(RecordHypothesis)
	refs := records.Texts(RecordGroundtruth)
	n := min(len(filenames), len(hyps), len(refs))
	stride := max(1, n/maxTextSamples)
	for i, count := 0, 0; i < n && count < maxTextSamples; i, count = i+stride, count+1 {
		tag := fmt.Sprintf("%s/%s-%s", e.TaskName(), split, filenames[i])
		body := fmt.Sprintf("**hypothesis**: %s<br>**groundtruth**: %s", hyps[i], refs[i])
		if err := w.AddText(ctx, tag, body, globalStep); err != nil {
			return nil, err
		}
	}
	return saveNames, nil
}

func (e *Expert) improves(average float64) bool {
	if e.cfg.MetricHigherBetter {
		return average > e.bestScore
	}
	return average < e.bestScore
}
