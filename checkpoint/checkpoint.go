// Package checkpoint persists training state through a storage backend.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/gob"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/nn"
	"github.com/kbukum/ctckit/storage"
)

// FormatVersion is bumped when the encoded layout changes.
const FormatVersion = 1

// Checkpoint is the saved state of a run.
type Checkpoint struct {
	Version   int
	RunName   string
	Step      int
	Epoch     int
	BestScore float64
	// Params holds every trainable parameter of the downstream, keyed by
	// parameter name.
	Params  map[string]nn.Tensor
	SavedAt time.Time
}

// New snapshots params.
func New(runName string, step, epoch int, bestScore float64, params []*nn.Param) *Checkpoint {
	return &Checkpoint{
		Version:   FormatVersion,
		RunName:   runName,
		Step:      step,
		Epoch:     epoch,
		BestScore: bestScore,
		Params:    nn.StateDict(params),
		SavedAt:   time.Now().UTC(),
	}
}

// Restore copies the saved values into params.
func (c *Checkpoint) Restore(params []*nn.Param) error {
	return nn.LoadStateDict(params, c.Params)
}

// Save encodes c and writes it to name.
func Save(ctx context.Context, s storage.Storage, name string, c *Checkpoint) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return errors.Internal(err)
	}
	return storage.WriteBytes(ctx, s, name, buf.Bytes())
}

// Load reads and decodes the checkpoint at name.
func Load(ctx context.Context, s storage.Storage, name string) (*Checkpoint, error) {
	data, err := storage.ReadBytes(ctx, s, name)
	if err != nil {
		return nil, err
	}
	var c Checkpoint
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return nil, errors.InvalidInput("checkpoint", name+" is not a valid checkpoint").WithCause(err)
	}
	if c.Version != FormatVersion {
		return nil, errors.InvalidInput("checkpoint", "unsupported checkpoint version").
			WithDetail("version", c.Version)
	}
	return &c, nil
}

// Name returns the storage name of a periodic checkpoint.
func Name(step int) string {
	return "states-" + strconv.Itoa(step) + ".ckpt"
}

// ParseName returns the step of a periodic checkpoint name produced by Name.
func ParseName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "states-")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, ".ckpt")
	if !ok {
		return 0, false
	}
	step, err := strconv.Atoi(rest)
	if err != nil || step < 0 {
		return 0, false
	}
	return step, true
}
