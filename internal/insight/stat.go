package insight

import (
	"context"
	"math"

	"github.com/kalambet/nudge/internal/storage"
)

// statMinEvents is the sample size below which the statistical classifier
// refuses to commit to a verdict.
const statMinEvents = 10

// StatClassifier classifies productivity from distribution statistics over
// the event stream: focus/interrupt shares, type entropy, and repeating
// pattern density. It is deterministic and requires no trained model.
type StatClassifier struct{}

func (s *StatClassifier) ClassifyProductivity(_ context.Context, events []storage.Event) Verdict {
	if len(events) < statMinEvents {
		return Verdict{Prediction: PredictionUnknown}
	}
	f := extractFeatures(events)

	// Margin between attentive and interruptive activity drives both the
	// label and the certainty; low type entropy (one steady activity)
	// reinforces a focused read, high entropy a distracted one.
	margin := f.focusShare - f.interruptShare
	switch {
	case margin >= 0.4 && f.typeEntropy <= 0.8:
		conf := 0.6 + 0.35*margin*(1-f.typeEntropy/2)
		return Verdict{Prediction: PredictionFocused, Confidence: clamp01(conf)}
	case margin <= -0.2 || (f.interruptShare >= 0.4 && f.typeEntropy > 0.6):
		conf := 0.6 + 0.35*math.Min(1, f.interruptShare+f.typeEntropy/2)
		return Verdict{Prediction: PredictionDistracted, Confidence: clamp01(conf)}
	default:
		return Verdict{Prediction: PredictionBalanced, Confidence: 0.5}
	}
}

func (s *StatClassifier) DetectAnomaly(_ context.Context, events []storage.Event) Anomaly {
	if len(events) < 5 {
		return Anomaly{Reason: "insufficient_data"}
	}
	f := extractFeatures(events)

	// A single event type crowding out everything else is the strongest
	// outlier signal the stream shape can carry.
	if f.dominantShare > 0.8 {
		return Anomaly{IsAnomaly: true, Score: f.dominantShare, Reason: "dominant_event_type"}
	}

	// An inter-event gap several deviations past the mean marks an unusual
	// break in an otherwise steady stream.
	if f.gapStd > 0 && f.gapMax > f.gapMean+4*f.gapStd {
		z := (f.gapMax - f.gapMean) / f.gapStd
		return Anomaly{IsAnomaly: true, Score: clamp01(z / 10), Reason: "irregular_gap"}
	}

	return Anomaly{Reason: "normal_pattern"}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
