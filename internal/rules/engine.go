// Package rules implements the pattern detectors and the engine that runs
// them over a user's sorted event history.
package rules

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/nudge/internal/insight"
	"github.com/kalambet/nudge/internal/metrics"
	"github.com/kalambet/nudge/internal/storage"
)

// Engine evaluates a fixed set of detectors. Each rule runs in isolation: a
// panicking rule is logged and skipped, never fatal to the batch.
type Engine struct {
	rules   []Rule
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine builds the default rule set. classifier may be nil, in which case
// the enrichment rule emits nothing. metrics may be nil.
func NewEngine(classifier insight.Classifier, m *metrics.Metrics) *Engine {
	rs := []Rule{
		{Name: "high_context_switch", Detect: contextSwitchRule},
		{Name: "short_burst_interruptions", Detect: shortBurstRule},
		{Name: "repeated_sequence", Detect: repeatedSequenceRule},
		{Name: "deep_work_pattern", Detect: deepWorkRule},
		{Name: "productivity_rhythm", Detect: rhythmRule},
		{Name: "burnout_risk", Detect: burnoutRule},
	}
	if classifier != nil {
		rs = append(rs, Rule{Name: "insight_enrichment", Detect: insightRule(classifier)})
	}
	return &Engine{rules: rs, logger: slog.Default(), metrics: m}
}

// Evaluate runs every rule over the (timestamp-ascending) events, clamps
// confidences to [0,1], scores each suggestion as
// severity*0.6 + confidence*0.4, and returns the batch sorted by score
// descending. Rule failures reduce the batch, never abort it.
func (e *Engine) Evaluate(ctx context.Context, events []storage.Event, now time.Time) []Suggestion {
	var suggestions []Suggestion
	for _, rule := range e.rules {
		res := e.evalRule(ctx, rule, events, now)
		suggestions = append(suggestions, res...)
	}

	for i := range suggestions {
		s := &suggestions[i]
		s.Confidence = math.Max(0, math.Min(1, s.Confidence))
		s.Score = SeverityWeight(s.Severity)*0.6 + s.Confidence*0.4
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	e.metrics.SuggestionsGenerated(len(suggestions))
	return suggestions
}

// evalRule isolates a single rule so one detector's panic cannot take down
// the evaluation pass.
func (e *Engine) evalRule(ctx context.Context, rule Rule, events []storage.Event, now time.Time) (out []Suggestion) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("rule panicked, skipping", "rule", rule.Name, "panic", r)
			e.metrics.RuleFailure(rule.Name)
			out = nil
		}
	}()
	return rule.Detect(ctx, events, now)
}

// insightRule adapts the optional classifier into detector form: its
// productivity verdict and anomaly verdict become suggestions when confident
// enough.
func insightRule(classifier insight.Classifier) func(context.Context, []storage.Event, time.Time) []Suggestion {
	return func(ctx context.Context, events []storage.Event, _ time.Time) []Suggestion {
		var out []Suggestion

		verdict := classifier.ClassifyProductivity(ctx, events)
		if verdict.Confidence > 0.7 {
			switch verdict.Prediction {
			case insight.PredictionDistracted:
				out = append(out, newVerdictSuggestion(
					"Distraction pattern detected",
					"Statistical analysis of your event stream indicates distracted work patterns.",
					SeverityMedium, verdict.Confidence,
					"Try minimizing distractions and using focus techniques.",
				))
			case insight.PredictionFocused:
				out = append(out, newVerdictSuggestion(
					"Sustained focus detected",
					"Statistical analysis of your event stream indicates strong focus.",
					SeverityLow, verdict.Confidence,
					"Maintain this focused work pattern.",
				))
			}
		}

		if anomaly := classifier.DetectAnomaly(ctx, events); anomaly.IsAnomaly {
			out = append(out, newVerdictSuggestion(
				"Unusual work pattern detected",
				"Anomaly detection identified unusual behavior: "+anomaly.Reason,
				SeverityMedium, anomaly.Score,
				"Review what changed in your work routine today.",
			))
		}
		return out
	}
}

func newVerdictSuggestion(title, description, severity string, confidence float64, action string) Suggestion {
	return Suggestion{
		ID:              uuid.New().String(),
		Title:           title,
		Description:     description,
		Severity:        severity,
		Confidence:      confidence,
		Evidence:        []string{"Statistical classification of the current event stream"},
		SuggestedAction: action,
	}
}
