package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/ctckit/database"
)

// Run is one training or evaluation invocation.
type Run struct {
	database.BaseModel
	Name       string     `gorm:"index" json:"name"`
	Command    string     `json:"command"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ScalarRecord is one logged scalar.
type ScalarRecord struct {
	database.BaseModel
	RunID uuid.UUID `gorm:"type:text;index:idx_scalar_run_tag" json:"run_id"`
	Tag   string    `gorm:"index:idx_scalar_run_tag" json:"tag"`
	Step  int       `json:"step"`
	Value float64   `json:"value"`
}

// TextRecord is one logged text sample.
type TextRecord struct {
	database.BaseModel
	RunID uuid.UUID `gorm:"type:text;index" json:"run_id"`
	Tag   string    `json:"tag"`
	Step  int       `json:"step"`
	Body  string    `json:"body"`
}

// Store persists runs and their logs.
type Store struct {
	db *database.DB
}

// NewStore migrates the tracker tables.
func NewStore(db *database.DB) (*Store, error) {
	if err := db.AutoMigrate(&Run{}, &ScalarRecord{}, &TextRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB returns the underlying database.
func (s *Store) DB() *database.DB { return s.db }

// StartRun creates a run and returns a Writer bound to it.
func (s *Store) StartRun(ctx context.Context, name, command string) (*RunWriter, error) {
	run := &Run{Name: name, Command: command}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, database.FromDatabase(err, "run", name)
	}
	return &RunWriter{store: s, run: run}, nil
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&runs).Error; err != nil {
		return nil, database.FromDatabase(err, "run", "")
	}
	return runs, nil
}

// Run returns one run.
func (s *Store) Run(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "run", id.String())
	}
	return &run, nil
}

// Scalars returns a run's scalars ordered by step, optionally for one tag.
func (s *Store) Scalars(ctx context.Context, runID uuid.UUID, tag string) ([]ScalarRecord, error) {
	q := s.db.WithContext(ctx).Where("run_id = ?", runID)
	if tag != "" {
		q = q.Where("tag = ?", tag)
	}
	var out []ScalarRecord
	if err := q.Order("step asc").Order("tag asc").Find(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "scalar", runID.String())
	}
	return out, nil
}

// Texts returns a run's text samples ordered by step.
func (s *Store) Texts(ctx context.Context, runID uuid.UUID) ([]TextRecord, error) {
	var out []TextRecord
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("step asc").Order("created_at asc").Find(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "text", runID.String())
	}
	return out, nil
}

// RunWriter writes to one run of a Store.
type RunWriter struct {
	store *Store
	run   *Run
}

// RunID returns the run's ID.
func (w *RunWriter) RunID() uuid.UUID { return w.run.ID }

// AddScalar implements Writer.
func (w *RunWriter) AddScalar(ctx context.Context, tag string, value float64, step int) error {
	rec := &ScalarRecord{RunID: w.run.ID, Tag: tag, Step: step, Value: value}
	if err := w.store.db.WithContext(ctx).Create(rec).Error; err != nil {
		return database.FromDatabase(err, "scalar", tag)
	}
	return nil
}

// AddText implements Writer.
func (w *RunWriter) AddText(ctx context.Context, tag, text string, step int) error {
	rec := &TextRecord{RunID: w.run.ID, Tag: tag, Step: step, Body: text}
	if err := w.store.db.WithContext(ctx).Create(rec).Error; err != nil {
		return database.FromDatabase(err, "text", tag)
	}
	return nil
}

// Finish stamps the run's end time.
func (w *RunWriter) Finish(ctx context.Context) error {
	now := time.Now().UTC()
	err := w.store.db.WithContext(ctx).Model(w.run).Update("finished_at", now).Error
	if err != nil {
		return database.FromDatabase(err, "run", w.run.ID.String())
	}
	return nil
}

var _ Writer = (*RunWriter)(nil)
