// Package runner drives training and evaluation of the CTC downstream on top
// of a frozen upstream extractor.
package runner

import (
	"context"
	stderrors "errors"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/ctckit/checkpoint"
	"github.com/kbukum/ctckit/dataset"
	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/expert"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/nn"
	"github.com/kbukum/ctckit/observability"
	"github.com/kbukum/ctckit/pipeline"
	"github.com/kbukum/ctckit/storage"
	"github.com/kbukum/ctckit/tracker"
	"github.com/kbukum/ctckit/upstream"
)

const checkpointPrefix = "states-"

var errStepsDone = stderrors.New("total steps reached")

// Runner owns the upstream, the expert and the optimizer of one run.
type Runner struct {
	cfg       Config
	runID     string
	log       *logger.Logger
	extractor upstream.Extractor
	expert    *expert.Expert
	optimizer nn.Optimizer
	params    []*nn.Param
	store     storage.Storage
	writer    tracker.Writer
	metrics   *observability.TrainingMetrics
	loaders   map[string]*dataset.DataLoader

	globalStep int
	epoch      int
	kept       []string
}

type options struct {
	log        *logger.Logger
	runID      string
	store      storage.Storage
	writer     tracker.Writer
	metrics    *observability.TrainingMetrics
	expertOpts []expert.Option
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRunID sets the run identifier attached to spans and logs.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithStorage sets the checkpoint storage instead of building it from
// Config.Storage.
func WithStorage(s storage.Storage) Option {
	return func(o *options) { o.store = s }
}

// WithWriter sets the experiment logger. Defaults to the console.
func WithWriter(w tracker.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithTrainingMetrics sets the OpenTelemetry instruments.
func WithTrainingMetrics(m *observability.TrainingMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithExpertOptions passes options to expert.New.
func WithExpertOptions(opts ...expert.Option) Option {
	return func(o *options) { o.expertOpts = append(o.expertOpts, opts...) }
}

// New validates cfg and builds the upstream, expert, optimizer and storage.
func New(ctx context.Context, cfg Config, opts ...Option) (*Runner, error) {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	log := o.log.WithComponent("runner").WithRun(o.runID)

	extractor, err := upstream.New(upstream.Defaults(), cfg.Upstream)
	if err != nil {
		return nil, err
	}
	expertOpts := append([]expert.Option{
		expert.WithLogger(o.log.WithRun(o.runID)),
		expert.WithSeed(cfg.Seed),
	}, o.expertOpts...)
	exp, err := expert.New(extractor.Dim(), extractor.Rate(), cfg.Runner.ExpertConfig(), cfg.Downstream, cfg.ExpDir, expertOpts...)
	if err != nil {
		return nil, err
	}
	optimizer, err := nn.NewOptimizer(cfg.Optimizer)
	if err != nil {
		return nil, err
	}

	if o.store == nil {
		if o.store, err = storage.New(ctx, cfg.Storage, o.log); err != nil {
			return nil, err
		}
	}
	if o.writer == nil {
		o.writer = tracker.NewConsole(log)
	}
	if o.metrics == nil {
		if o.metrics, err = observability.NewTrainingMetrics(observability.Meter("github.com/kbukum/ctckit/runner")); err != nil {
			return nil, errors.Internal(err)
		}
	}

	log.Info("runner ready", logger.Fields(
		"upstream", cfg.Upstream.Name,
		"upstream_dim", extractor.Dim(),
		"upstream_rate", extractor.Rate(),
		"total_steps", cfg.Runner.TotalSteps,
	))
	return &Runner{
		cfg:       cfg,
		runID:     o.runID,
		log:       log,
		extractor: extractor,
		expert:    exp,
		optimizer: optimizer,
		params:    exp.Parameters(),
		store:     o.store,
		writer:    o.writer,
		metrics:   o.metrics,
		loaders:   map[string]*dataset.DataLoader{},
	}, nil
}

// Expert returns the downstream expert.
func (r *Runner) Expert() *expert.Expert { return r.expert }

// GlobalStep returns the number of optimizer steps taken.
func (r *Runner) GlobalStep() int { return r.globalStep }

// RunID returns the run identifier.
func (r *Runner) RunID() string { return r.runID }

// Resume restores parameters, best score and step counters from the
// checkpoint stored under name.
func (r *Runner) Resume(ctx context.Context, name string) error {
	ckpt, err := checkpoint.Load(ctx, r.store, name)
	if err != nil {
		return err
	}
	if err := ckpt.Restore(r.params); err != nil {
		return err
	}
	if err := r.restoreKept(ctx); err != nil {
		return err
	}
	r.expert.SetBestScore(ckpt.BestScore)
	r.globalStep = ckpt.Step
	r.epoch = ckpt.Epoch
	r.log.Info("resumed", logger.Fields("checkpoint", name, "step", ckpt.Step, "best_score", ckpt.BestScore))
	return nil
}

// Train runs optimizer steps until Settings.TotalSteps, logging the training
// records every LogStep steps, evaluating every EvalStep steps and saving
// every SaveStep steps.
func (r *Runner) Train(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanTrain, trace.WithAttributes(
		attribute.String(observability.AttrRunID, r.runID),
	))
	defer func() {
		observability.SetSpanError(ctx, err)
		span.End()
	}()

	loader, err := r.loader(dataset.SplitTrain)
	if err != nil {
		return err
	}
	settings := r.cfg.Runner
	r.log.Info("training started", logger.Fields(
		"batches", loader.Len(),
		"utterances", loader.NumUtterances(),
		"step", r.globalStep,
	))

	records := expert.NewRecords()
	pending := 0
	for r.globalStep < settings.TotalSteps {
		err := pipeline.ForEach(ctx, r.featureBatches(loader.Epoch(r.epoch)), func(ctx context.Context, batch featureBatch) error {
			if r.globalStep >= settings.TotalSteps {
				return errStepsDone
			}
			start := time.Now()
			if err := r.trainBatch(batch, records); err != nil {
				return err
			}
			r.metrics.RecordStep(ctx, dataset.SplitTrain, time.Since(start))
			pending++
			if pending < settings.GradientAccumulateSteps {
				return nil
			}
			pending = 0
			r.step()
			return r.afterStep(ctx, &records)
		})
		if stderrors.Is(err, errStepsDone) {
			break
		}
		if err != nil {
			r.recordError(ctx, err)
			return err
		}
		r.epoch++
	}
	r.log.Info("training finished", logger.Fields("step", r.globalStep, "epoch", r.epoch))
	return nil
}

func (r *Runner) trainBatch(batch featureBatch, records *expert.Records) error {
	loss, err := r.expert.Forward(dataset.SplitTrain, batch.features, batch.Labels, batch.Filenames, records)
	if err != nil {
		return err
	}
	return loss.Backward()
}

// step applies the accumulated gradients. A non-finite gradient norm skips
// the update but still counts the step.
func (r *Runner) step() {
	if n := r.cfg.Runner.GradientAccumulateSteps; n > 1 {
		nn.ScaleGrad(r.params, 1/float64(n))
	}
	norm := nn.ClipGradNorm(r.params, r.cfg.Runner.GradientClipping)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		r.log.Warn("non-finite gradient norm, skipping update", logger.Fields("step", r.globalStep))
	} else {
		r.optimizer.Step(r.params)
	}
	nn.ZeroGrad(r.params)
	r.globalStep++
}

func (r *Runner) afterStep(ctx context.Context, records **expert.Records) error {
	settings := r.cfg.Runner
	step := r.globalStep

	if step%settings.LogStep == 0 {
		if _, err := r.expert.LogRecords(ctx, dataset.SplitTrain, *records, r.writer, step); err != nil {
			return err
		}
		*records = expert.NewRecords()
	}

	var saveNames []string
	if step%settings.EvalStep == 0 {
		for _, split := range settings.EvalDataloaders {
			names, err := r.Evaluate(ctx, split)
			if err != nil {
				return err
			}
			saveNames = append(saveNames, names...)
		}
	}
	if step%settings.SaveStep == 0 || step == settings.TotalSteps {
		saveNames = append(saveNames, checkpoint.Name(step))
	}
	if len(saveNames) == 0 {
		return nil
	}
	return r.save(ctx, saveNames)
}

// Evaluate runs the expert over split without updating parameters and logs
// the records at the current step. It returns the checkpoint names the
// expert asked to save.
func (r *Runner) Evaluate(ctx context.Context, split string) (names []string, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanEvaluate, trace.WithAttributes(
		attribute.String(observability.AttrRunID, r.runID),
		attribute.String(observability.AttrSplit, split),
		attribute.Int(observability.AttrStep, r.globalStep),
	))
	defer func() {
		observability.SetSpanError(ctx, err)
		span.End()
	}()

	loader, err := r.loader(split)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	records := expert.NewRecords()
	utterances := 0
	batches := pipeline.Tap(r.featureBatches(loader.Epoch(0)), func(_ context.Context, b featureBatch) error {
		utterances += b.Len()
		return nil
	})
	err = pipeline.ForEach(ctx, batches, func(_ context.Context, batch featureBatch) error {
		_, err := r.expert.Forward(split, batch.features, batch.Labels, batch.Filenames, records)
		return err
	})
	if err != nil {
		r.recordError(ctx, err)
		return nil, err
	}
	r.metrics.RecordEvaluation(ctx, split, time.Since(start))
	r.log.Info("evaluation finished",
		logger.Fields("split", split, "utterances", utterances),
		logger.DurationFields("evaluate", time.Since(start)),
	)
	return r.expert.LogRecords(ctx, split, records, r.writer, r.globalStep)
}

func (r *Runner) loader(split string) (*dataset.DataLoader, error) {
	if l, ok := r.loaders[split]; ok {
		return l, nil
	}
	l, err := r.expert.GetDataloader(split)
	if err != nil {
		return nil, err
	}
	r.loaders[split] = l
	return l, nil
}

// featureBatch is a loaded batch with its upstream features.
type featureBatch struct {
	dataset.Batch
	features []*mat.Dense
}

// featureBatches runs the frozen upstream over every waveform. Map runs on
// the consuming goroutine, so the extractor is never called concurrently.
func (r *Runner) featureBatches(p *pipeline.Pipeline[dataset.Batch]) *pipeline.Pipeline[featureBatch] {
	return pipeline.Map(p, func(ctx context.Context, b dataset.Batch) (featureBatch, error) {
		fb := featureBatch{Batch: b, features: make([]*mat.Dense, len(b.Wavs))}
		for i, wav := range b.Wavs {
			if err := ctx.Err(); err != nil {
				return featureBatch{}, err
			}
			f, err := r.extractor.Extract(wav)
			if err != nil {
				return featureBatch{}, err
			}
			fb.features[i] = f
		}
		return fb, nil
	})
}

func (r *Runner) save(ctx context.Context, names []string) (err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanCheckpoint, trace.WithAttributes(
		attribute.String(observability.AttrRunID, r.runID),
		attribute.Int(observability.AttrStep, r.globalStep),
	))
	defer func() {
		observability.SetSpanError(ctx, err)
		span.End()
	}()

	ckpt := checkpoint.New(r.cfg.Name, r.globalStep, r.epoch, r.expert.BestScore(), r.params)
	for _, name := range names {
		if err := checkpoint.Save(ctx, r.store, name, ckpt); err != nil {
			return err
		}
		r.log.Info("checkpoint saved", logger.Fields("name", name, "step", r.globalStep))
		if strings.HasPrefix(name, checkpointPrefix) && !slices.Contains(r.kept, name) {
			r.kept = append(r.kept, name)
		}
	}
	return r.prune(ctx)
}

// restoreKept rebuilds the list of periodic checkpoints from storage, oldest
// step first, so that prune also removes files written before a resume.
func (r *Runner) restoreKept(ctx context.Context) error {
	infos, err := r.store.List(ctx, checkpointPrefix)
	if err != nil {
		return errors.IOError("list checkpoints", err)
	}
	steps := make(map[string]int, len(infos))
	kept := make([]string, 0, len(infos))
	for _, fi := range infos {
		if step, ok := checkpoint.ParseName(fi.Path); ok {
			steps[fi.Path] = step
			kept = append(kept, fi.Path)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return steps[kept[i]] < steps[kept[j]] })
	r.kept = kept
	return nil
}

// prune deletes the oldest periodic checkpoints beyond MaxKeep.
func (r *Runner) prune(ctx context.Context) error {
	maxKeep := r.cfg.Runner.MaxKeep
	for maxKeep > 0 && len(r.kept) > maxKeep {
		if err := r.store.Delete(ctx, r.kept[0]); err != nil {
			return errors.IOError("delete checkpoint", err)
		}
		r.kept = r.kept[1:]
	}
	return nil
}

func (r *Runner) recordError(ctx context.Context, err error) {
	code := string(errors.ErrCodeInternal)
	if appErr, ok := errors.AsAppError(err); ok {
		code = string(appErr.Code)
	}
	r.metrics.RecordError(ctx, code, "runner")
	r.log.WithError(err).Error("run failed", logger.Fields("step", r.globalStep))
}
