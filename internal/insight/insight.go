// Package insight provides optional statistical enrichment for the rule
// engine: a productivity classification and an anomaly verdict derived from
// a user's event stream.
//
// Two implementations exist behind the Classifier interface: StatClassifier
// (feature extraction plus distribution statistics) and HeuristicClassifier
// (coarse rules of thumb). The implementation is chosen once at startup via
// Detect; the rule engine never switches per call, so behavior stays
// predictable. Neither implementation is required for correctness; a nil
// Classifier simply omits the signal.
package insight

import (
	"context"

	"github.com/kalambet/nudge/internal/storage"
)

// Productivity predictions.
const (
	PredictionFocused    = "focused"
	PredictionDistracted = "distracted"
	PredictionBalanced   = "balanced"
	PredictionUnknown    = "unknown"
)

// Verdict is a productivity classification with self-reported certainty.
type Verdict struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// Anomaly reports whether the event stream deviates from an expected shape.
type Anomaly struct {
	IsAnomaly bool    `json:"is_anomaly"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// Classifier is the capability interface the rule engine consumes.
type Classifier interface {
	ClassifyProductivity(ctx context.Context, events []storage.Event) Verdict
	DetectAnomaly(ctx context.Context, events []storage.Event) Anomaly
}

// Detect selects the classifier implementation at startup. When statistical
// enrichment is disabled by configuration the heuristic fallback is used.
func Detect(statistical bool) Classifier {
	if statistical {
		return &StatClassifier{}
	}
	return &HeuristicClassifier{}
}
