// Package ranker re-orders rule-engine output with a feature-based linear
// scorer biased by the user's historical accept/reject feedback.
package ranker

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kalambet/nudge/internal/learning"
	"github.com/kalambet/nudge/internal/rules"
	"github.com/kalambet/nudge/internal/storage"
)

// Linear blend weights. Severity is deliberately not dominant; recency and
// the user's own acceptance history carry real influence.
const (
	weightSeverity = 0.3
	weightRecency  = 0.4
	weightEvidence = 0.15
	weightAccept   = 0.15
)

// ActionSource supplies a user's audit history.
type ActionSource interface {
	Actions(ctx context.Context, userID string) ([]storage.ActionRecord, error)
}

// WeightSource supplies the most recently trained weights. Implementations
// must tolerate a missing weights file by returning zero-valued weights.
type WeightSource interface {
	Load() learning.Weights
}

// Ranker combines per-suggestion features with learned weights.
type Ranker struct {
	actions ActionSource
	weights WeightSource
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Ranker. weights may be nil, in which case no learned
// adjustment is applied.
func New(actions ActionSource, weights WeightSource) *Ranker {
	return &Ranker{actions: actions, weights: weights, logger: slog.Default(), now: time.Now}
}

// Rank returns the suggestions reordered by final score descending, ties
// broken by original order. Input suggestion identities are untouched; only
// RankScore is written.
//
// Per suggestion: severity weight, recency of the latest parseable evidence
// timestamp (1/(1+secs/60), 0 when none), evidence volume (min(1, n/5)), and
// the user's accept rate over past decisions on this exact suggestion id
// (0 with no matching history; history for unrelated suggestions never leaks
// in). The blend is then multiplied by (1 + perTitle*0.5) when the title has
// a learned rate, else (1 + global*0.2). Title, not the per-evaluation id, is
// the durable identity learned weights are keyed by.
func (r *Ranker) Rank(ctx context.Context, suggestions []rules.Suggestion, userID string) []rules.Suggestion {
	now := r.now().UTC()

	var history []storage.ActionRecord
	if r.actions != nil {
		var err error
		history, err = r.actions.Actions(ctx, userID)
		if err != nil {
			// Ranking still works without history; log and move on.
			r.logger.Warn("loading action history for ranking", "user_id", userID, "error", err)
			history = nil
		}
	}

	var weights learning.Weights
	if r.weights != nil {
		weights = r.weights.Load()
	}

	ranked := make([]rules.Suggestion, len(suggestions))
	copy(ranked, suggestions)
	for i := range ranked {
		s := &ranked[i]

		recency := 0.0
		if latest, ok := latestEvidenceTime(s.Evidence); ok {
			secs := now.Sub(latest).Seconds()
			recency = 1.0 / (1.0 + secs/60.0)
		}
		evidenceScore := float64(len(s.Evidence)) / 5.0
		if evidenceScore > 1 {
			evidenceScore = 1
		}
		acceptRate := acceptRateFor(history, s.ID)

		score := rules.SeverityWeight(s.Severity)*weightSeverity +
			recency*weightRecency +
			evidenceScore*weightEvidence +
			acceptRate*weightAccept

		if rate, ok := weights.PerTitle[s.Title]; ok {
			score *= 1.0 + rate*0.5
		} else {
			score *= 1.0 + weights.GlobalAcceptRate*0.2
		}
		s.RankScore = score
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RankScore > ranked[j].RankScore
	})
	return ranked
}

// acceptRateFor computes the fraction of this user's decisions on exactly
// this suggestion id that were accepts. No matching history means 0: the
// ranker prefers suggestions the user actually accepted before rather than
// spreading an overall accept rate across unrelated ones.
func acceptRateFor(history []storage.ActionRecord, suggestionID string) float64 {
	var total, accepts int
	for _, rec := range history {
		if rec.SuggestionID != suggestionID {
			continue
		}
		total++
		if rec.Action == storage.ActionAccept {
			accepts++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(accepts) / float64(total)
}

// latestEvidenceTime extracts the newest parseable timestamp from evidence
// strings of the form "timestamp | type | event_id".
func latestEvidenceTime(evidence []string) (time.Time, bool) {
	var latest time.Time
	var found bool
	for _, item := range evidence {
		ts, _, ok := strings.Cut(item, "|")
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(ts))
		if err != nil {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found
}
