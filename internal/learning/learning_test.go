package learning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kalambet/nudge/internal/storage"
)

type stubProvider struct {
	perUser map[string][]storage.ActionRecord
	all     []storage.ActionRecord
}

func (s stubProvider) Actions(_ context.Context, userID string) ([]storage.ActionRecord, error) {
	return s.perUser[userID], nil
}

func (s stubProvider) AllActions(context.Context) ([]storage.ActionRecord, error) {
	return s.all, nil
}

func TestComputeZeroHistory(t *testing.T) {
	w := Compute(nil)
	if w.GlobalAcceptRate != 0 {
		t.Errorf("global rate = %f, want 0", w.GlobalAcceptRate)
	}
	if len(w.PerTitle) != 0 {
		t.Errorf("expected empty per-title map, got %v", w.PerTitle)
	}
}

func TestComputeRates(t *testing.T) {
	actions := []storage.ActionRecord{
		{SuggestionTitle: "High context switching", Action: storage.ActionAccept},
		{SuggestionTitle: "High context switching", Action: storage.ActionReject},
		{SuggestionTitle: "Deep work pattern detected", Action: storage.ActionAccept},
		{SuggestionTitle: "Deep work pattern detected", Action: storage.ActionAccept},
	}
	w := Compute(actions)

	if w.GlobalAcceptRate != 0.75 {
		t.Errorf("global rate = %f, want 0.75", w.GlobalAcceptRate)
	}
	if got := w.PerTitle["High context switching"]; got != 0.5 {
		t.Errorf("context switching rate = %f, want 0.5", got)
	}
	if got := w.PerTitle["Deep work pattern detected"]; got != 1.0 {
		t.Errorf("deep work rate = %f, want 1.0", got)
	}
}

// TestComputeFallsBackToID verifies records missing a title still aggregate
// under their suggestion id.
func TestComputeFallsBackToID(t *testing.T) {
	actions := []storage.ActionRecord{
		{SuggestionID: "sug-1", Action: storage.ActionAccept},
		{SuggestionID: "sug-1", Action: storage.ActionReject},
	}
	w := Compute(actions)
	if got := w.PerTitle["sug-1"]; got != 0.5 {
		t.Errorf("id-keyed rate = %f, want 0.5", got)
	}
}

func TestTrainPersistsAndLoads(t *testing.T) {
	dir := t.TempDir()
	provider := stubProvider{
		perUser: map[string][]storage.ActionRecord{
			"alice": {
				{SuggestionTitle: "Frequent short interruptions", Action: storage.ActionAccept},
				{SuggestionTitle: "Frequent short interruptions", Action: storage.ActionReject},
			},
		},
		all: []storage.ActionRecord{
			{SuggestionTitle: "Frequent short interruptions", Action: storage.ActionAccept},
			{SuggestionTitle: "Frequent short interruptions", Action: storage.ActionReject},
			{SuggestionTitle: "High burnout risk detected", Action: storage.ActionAccept},
		},
	}

	trainer := NewTrainer(provider, dir)
	fixed := time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC)
	trainer.now = func() time.Time { return fixed }

	t.Run("all users", func(t *testing.T) {
		w, err := trainer.Train(context.Background(), "")
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if !w.TrainedAt.Equal(fixed) {
			t.Errorf("trained_at = %v, want %v", w.TrainedAt, fixed)
		}
		if len(w.PerTitle) != 2 {
			t.Errorf("expected 2 titles across users, got %v", w.PerTitle)
		}

		loaded := NewFileSource(dir).Load()
		if loaded.GlobalAcceptRate != w.GlobalAcceptRate {
			t.Errorf("loaded global rate %f, want %f", loaded.GlobalAcceptRate, w.GlobalAcceptRate)
		}
		if loaded.PerTitle["High burnout risk detected"] != 1.0 {
			t.Errorf("loaded per-title = %v", loaded.PerTitle)
		}
	})

	t.Run("single user", func(t *testing.T) {
		w, err := trainer.Train(context.Background(), "alice")
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if w.GlobalAcceptRate != 0.5 {
			t.Errorf("global rate = %f, want 0.5", w.GlobalAcceptRate)
		}
		if len(w.PerTitle) != 1 {
			t.Errorf("expected only alice's title, got %v", w.PerTitle)
		}
	})
}

func TestFileSourceMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		w := NewFileSource(dir).Load()
		if w.GlobalAcceptRate != 0 || len(w.PerTitle) != 0 {
			t.Errorf("expected zero weights for missing file, got %+v", w)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, WeightsFileName), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		w := NewFileSource(dir).Load()
		if w.GlobalAcceptRate != 0 || len(w.PerTitle) != 0 {
			t.Errorf("expected zero weights for corrupt file, got %+v", w)
		}
	})
}
