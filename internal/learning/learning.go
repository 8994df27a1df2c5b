// Package learning turns the action audit log into acceptance-rate weights
// the ranker consumes. Training is a batch job; the weights file is
// overwritten wholesale on each run and read-only everywhere else.
package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kalambet/nudge/internal/storage"
)

// WeightsFileName is the file Trainer writes inside the data directory.
const WeightsFileName = "weights.json"

// Weights is the singleton learned-weights record. PerTitle is keyed by
// suggestion title: suggestion ids are regenerated per evaluation, so the
// title is the only identity stable enough to learn against.
type Weights struct {
	TrainedAt        time.Time          `json:"trained_at"`
	GlobalAcceptRate float64            `json:"global_accept_rate"`
	PerTitle         map[string]float64 `json:"per_title"`
}

// ActionProvider is the slice of the store the trainer needs.
type ActionProvider interface {
	Actions(ctx context.Context, userID string) ([]storage.ActionRecord, error)
	AllActions(ctx context.Context) ([]storage.ActionRecord, error)
}

// Trainer aggregates audit history into Weights and persists them.
type Trainer struct {
	store ActionProvider
	path  string
	now   func() time.Time
}

// NewTrainer creates a Trainer persisting to dataDir/weights.json.
func NewTrainer(store ActionProvider, dataDir string) *Trainer {
	return &Trainer{store: store, path: filepath.Join(dataDir, WeightsFileName), now: time.Now}
}

// Path returns the weights file location.
func (t *Trainer) Path() string { return t.path }

// Train computes acceptance rates and overwrites the weights file. An empty
// userID trains across all known users. Zero history yields zero rates, not
// an error.
func (t *Trainer) Train(ctx context.Context, userID string) (Weights, error) {
	var actions []storage.ActionRecord
	var err error
	if userID == "" {
		actions, err = t.store.AllActions(ctx)
	} else {
		actions, err = t.store.Actions(ctx, userID)
	}
	if err != nil {
		return Weights{}, fmt.Errorf("loading actions: %w", err)
	}

	weights := Compute(actions)
	weights.TrainedAt = t.now().UTC()

	if err := t.persist(weights); err != nil {
		return Weights{}, err
	}
	return weights, nil
}

// Compute derives weights from a batch of audit records. Titles aggregate
// the per-suggestion rates; records without a title fall back to the
// suggestion id so sparse data still contributes.
func Compute(actions []storage.ActionRecord) Weights {
	weights := Weights{PerTitle: make(map[string]float64)}
	if len(actions) == 0 {
		return weights
	}

	type tally struct{ total, accepts int }
	perTitle := make(map[string]*tally)
	var accepts int
	for _, rec := range actions {
		if rec.Action == storage.ActionAccept {
			accepts++
		}
		key := rec.SuggestionTitle
		if key == "" {
			key = rec.SuggestionID
		}
		if key == "" {
			continue
		}
		tl, ok := perTitle[key]
		if !ok {
			tl = &tally{}
			perTitle[key] = tl
		}
		tl.total++
		if rec.Action == storage.ActionAccept {
			tl.accepts++
		}
	}

	weights.GlobalAcceptRate = float64(accepts) / float64(len(actions))
	for key, tl := range perTitle {
		weights.PerTitle[key] = float64(tl.accepts) / float64(tl.total)
	}
	return weights
}

// persist writes the whole weights object atomically (temp file + rename) so
// a concurrent Load never sees a partial write.
func (t *Trainer) persist(w Weights) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("creating weights directory: %w", err)
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling weights: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing weights: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replacing weights file: %w", err)
	}
	return nil
}

// FileSource reads weights back for the ranker.
type FileSource struct {
	path string
}

// NewFileSource creates a read-only weights source for dataDir/weights.json.
func NewFileSource(dataDir string) *FileSource {
	return &FileSource{path: filepath.Join(dataDir, WeightsFileName)}
}

// Load returns the persisted weights, or zero-valued weights when the file
// is absent or unreadable. Ranking must never fail on a missing training
// run.
func (s *FileSource) Load() Weights {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Weights{}
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return Weights{}
	}
	return w
}
