package dataset

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/pipeline"
	"github.com/kbukum/ctckit/text"
	"github.com/kbukum/ctckit/validation"
)

// SplitTrain is the split that is shuffled and length-filtered.
const SplitTrain = "train"

// Batch is one decoded batch. The three slices are aligned.
type Batch struct {
	Wavs      [][]float64
	Labels    [][]int
	Filenames []string
}

// Len returns the number of utterances.
func (b Batch) Len() int { return len(b.Filenames) }

// AudioReader decodes one audio file.
type AudioReader func(path string, sampleRate int) ([]float64, error)

// DataLoader yields the batches of one split.
type DataLoader struct {
	split     string
	root      string
	batches   [][]Entry
	tokenizer text.Encoder
	cfg       Config
	read      AudioReader
	log       *logger.Logger
}

// Option configures a DataLoader.
type Option func(*DataLoader)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *DataLoader) { d.log = l }
}

// WithAudioReader replaces the WAV decoder.
func WithAudioReader(r AudioReader) Option {
	return func(d *DataLoader) { d.read = r }
}

// Load reads the manifests of split and groups its utterances into
// batches. An unknown split is NOT_FOUND.
func Load(split string, tokenizer text.Encoder, cfg Config, opts ...Option) (*DataLoader, error) {
	cfg.ApplyDefaults()
	if err := validation.Validate(&cfg); err != nil {
		return nil, err
	}
	manifests, ok := cfg.Splits[split]
	if !ok {
		manifests, ok = cfg.Splits[strings.ToLower(split)]
	}
	if !ok {
		return nil, errors.NotFound("split", split)
	}

	d := &DataLoader{
		split:     split,
		root:      cfg.Path,
		tokenizer: tokenizer,
		cfg:       cfg,
		read:      ReadWAV,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent("dataset")

	var entries []Entry
	for _, m := range manifests {
		if !filepath.IsAbs(m) {
			m = filepath.Join(cfg.Path, m)
		}
		es, err := ReadManifest(m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, es...)
	}

	dropped := 0
	if split == SplitTrain && cfg.MaxLength > 0 {
		kept := entries[:0]
		for _, e := range entries {
			if e.Length <= cfg.MaxLength {
				kept = append(kept, e)
			}
		}
		dropped = len(entries) - len(kept)
		entries = kept
	}
	if len(entries) == 0 {
		return nil, errors.InvalidInput("split", "split "+split+" has no utterances")
	}

	size := cfg.EvalBatchSize
	if split == SplitTrain {
		size = cfg.BatchSize
	}
	d.batches = bucket(entries, size, cfg.HalfBatchLength)
	d.log.Info("split loaded", logger.Fields(
		"split", split, "utterances", len(entries), "batches", len(d.batches), "dropped", dropped,
	))
	return d, nil
}

// bucket sorts entries by descending length and cuts them into batches of
// size. With halfLength > 0, a batch whose longest utterance exceeds it is
// split in two.
func bucket(entries []Entry, size, halfLength int) [][]Entry {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Length > sorted[j].Length })

	var batches [][]Entry
	for start := 0; start < len(sorted); start += size {
		b := sorted[start:min(start+size, len(sorted))]
		if halfLength > 0 && len(b) > 1 && b[0].Length > halfLength {
			mid := len(b) / 2
			batches = append(batches, b[:mid], b[mid:])
			continue
		}
		batches = append(batches, b)
	}
	return batches
}

// Split returns the split name.
func (d *DataLoader) Split() string { return d.split }

// Len returns the number of batches per epoch.
func (d *DataLoader) Len() int { return len(d.batches) }

// NumUtterances returns the number of utterances per epoch.
func (d *DataLoader) NumUtterances() int {
	n := 0
	for _, b := range d.batches {
		n += len(b)
	}
	return n
}

// Epoch returns the batches of one pass. Training batches come in an order
// shuffled by the seed and epoch; other splits keep bucket order. Audio is
// decoded by NumWorkers goroutines and batches arrive in that order.
func (d *DataLoader) Epoch(epoch int) *pipeline.Pipeline[Batch] {
	order := make([]int, len(d.batches))
	for i := range order {
		order[i] = i
	}
	if d.split == SplitTrain {
		rng := rand.New(rand.NewPCG(d.cfg.Seed, uint64(epoch)))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	p := pipeline.Parallel(pipeline.FromSlice(order), d.cfg.NumWorkers, d.loadBatch)
	if d.cfg.Prefetch > 0 {
		p = pipeline.Buffer(p, d.cfg.Prefetch)
	}
	return p
}

func (d *DataLoader) loadBatch(ctx context.Context, idx int) (Batch, error) {
	entries := d.batches[idx]
	b := Batch{
		Wavs:      make([][]float64, len(entries)),
		Labels:    make([][]int, len(entries)),
		Filenames: make([]string, len(entries)),
	}
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		path := e.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(d.root, path)
		}
		wav, err := d.read(path, d.cfg.SampleRate)
		if err != nil {
			return Batch{}, err
		}
		b.Wavs[i] = wav
		b.Labels[i] = d.tokenizer.Encode(e.Text)
		b.Filenames[i] = strings.TrimSuffix(filepath.Base(e.File), filepath.Ext(e.File))
	}
	return b, nil
}
