package rules

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kalambet/nudge/internal/insight"
	"github.com/kalambet/nudge/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEvaluateContextSwitchScenario(t *testing.T) {
	engine := NewEngine(nil, nil)
	events := mkEvents(13, "window_focus", 9*time.Minute)

	// A monotonous switch storm trips both the context-switch and the
	// repeated-sequence detectors; the higher-scored one leads.
	got := engine.Evaluate(context.Background(), events, testNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(got))
	}
	s := got[0]
	if s.Title != "High context switching" {
		t.Errorf("title = %q", s.Title)
	}
	if s.Severity != SeverityMedium {
		t.Errorf("severity = %q, want medium", s.Severity)
	}
	want := SeverityWeight(SeverityMedium)*0.6 + s.Confidence*0.4
	if s.Score != want {
		t.Errorf("score = %f, want %f", s.Score, want)
	}
	if s.ID == "" {
		t.Error("suggestion must carry a generated id")
	}
}

func TestEvaluateEmptyHistory(t *testing.T) {
	engine := NewEngine(nil, nil)
	if got := engine.Evaluate(context.Background(), nil, testNow); len(got) != 0 {
		t.Fatalf("expected no suggestions for empty history, got %d", len(got))
	}
}

func TestEvaluateSortsByScoreDescending(t *testing.T) {
	engine := NewEngine(nil, nil)

	// Trip both the burnout detector (high severity) and the context-switch
	// detector (medium) in a single pass.
	var events []storage.Event
	for day := 0; day < 5; day++ {
		dayStart := testNow.AddDate(0, 0, -day).Add(-11 * time.Hour)
		for i := 0; i < 150; i++ {
			events = append(events, storage.Event{
				Timestamp: dayStart.Add(time.Duration(i) * (11 * time.Hour) / 150),
				Type:      "key_press",
			})
		}
		for i := 0; i < 60; i++ {
			events = append(events, storage.Event{
				Timestamp: dayStart.Add(time.Duration(i) * 10 * time.Minute),
				Type:      "notification",
			})
		}
	}
	events = append(events, mkEvents(13, "window_focus", 9*time.Minute)...)

	got := engine.Evaluate(context.Background(), events, testNow)
	if len(got) < 2 {
		t.Fatalf("expected at least 2 suggestions, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("suggestions not sorted by score: %f before %f", got[i-1].Score, got[i].Score)
		}
	}
	if got[0].Severity != SeverityHigh {
		t.Errorf("highest ranked severity = %q, want high", got[0].Severity)
	}
}

func TestEvaluateClampsConfidence(t *testing.T) {
	engine := &Engine{rules: []Rule{{
		Name: "overconfident",
		Detect: func(context.Context, []storage.Event, time.Time) []Suggestion {
			return []Suggestion{{Title: "x", Severity: SeverityLow, Confidence: 7.5}}
		},
	}}, logger: discardLogger(), metrics: nil}

	got := engine.Evaluate(context.Background(), nil, testNow)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if got[0].Confidence != 1 {
		t.Errorf("confidence = %f, want clamped to 1", got[0].Confidence)
	}
}

// TestEvaluatePanicIsolation verifies a panicking rule is skipped while the
// others still run.
func TestEvaluatePanicIsolation(t *testing.T) {
	engine := &Engine{rules: []Rule{
		{
			Name: "broken",
			Detect: func(context.Context, []storage.Event, time.Time) []Suggestion {
				panic("boom")
			},
		},
		{
			Name: "healthy",
			Detect: func(context.Context, []storage.Event, time.Time) []Suggestion {
				return []Suggestion{{Title: "ok", Severity: SeverityLow, Confidence: 0.5}}
			},
		},
	}, logger: discardLogger(), metrics: nil}

	got := engine.Evaluate(context.Background(), nil, testNow)
	if len(got) != 1 || got[0].Title != "ok" {
		t.Fatalf("expected only the healthy rule's output, got %+v", got)
	}
}

type stubClassifier struct {
	verdict insight.Verdict
	anomaly insight.Anomaly
}

func (s stubClassifier) ClassifyProductivity(context.Context, []storage.Event) insight.Verdict {
	return s.verdict
}

func (s stubClassifier) DetectAnomaly(context.Context, []storage.Event) insight.Anomaly {
	return s.anomaly
}

func TestInsightEnrichment(t *testing.T) {
	tests := []struct {
		name       string
		classifier stubClassifier
		wantTitles []string
	}{
		{
			name: "distracted verdict",
			classifier: stubClassifier{
				verdict: insight.Verdict{Prediction: insight.PredictionDistracted, Confidence: 0.8},
			},
			wantTitles: []string{"Distraction pattern detected"},
		},
		{
			name: "focused verdict",
			classifier: stubClassifier{
				verdict: insight.Verdict{Prediction: insight.PredictionFocused, Confidence: 0.9},
			},
			wantTitles: []string{"Sustained focus detected"},
		},
		{
			name: "low confidence suppressed",
			classifier: stubClassifier{
				verdict: insight.Verdict{Prediction: insight.PredictionDistracted, Confidence: 0.5},
			},
			wantTitles: nil,
		},
		{
			name: "anomaly",
			classifier: stubClassifier{
				anomaly: insight.Anomaly{IsAnomaly: true, Score: 0.7, Reason: "dominant_event_type"},
			},
			wantTitles: []string{"Unusual work pattern detected"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := insightRule(tt.classifier)(context.Background(), nil, testNow)
			if len(got) != len(tt.wantTitles) {
				t.Fatalf("got %d suggestions, want %d", len(got), len(tt.wantTitles))
			}
			for i, want := range tt.wantTitles {
				if got[i].Title != want {
					t.Errorf("title[%d] = %q, want %q", i, got[i].Title, want)
				}
			}
		})
	}
}
