package insight

import (
	"context"

	"github.com/kalambet/nudge/internal/storage"
)

// HeuristicClassifier is the rule-of-thumb fallback used when statistical
// enrichment is disabled. Its outputs are intentionally coarse.
type HeuristicClassifier struct{}

func (h *HeuristicClassifier) ClassifyProductivity(_ context.Context, events []storage.Event) Verdict {
	if len(events) == 0 {
		return Verdict{Prediction: PredictionUnknown}
	}

	var switches, focus int
	for _, ev := range events {
		switch ev.Type {
		case "app_switch":
			switches++
		case "window_focus":
			focus++
		}
	}

	switch {
	case switches > focus*2:
		return Verdict{Prediction: PredictionDistracted, Confidence: 0.7}
	case focus > switches*3:
		return Verdict{Prediction: PredictionFocused, Confidence: 0.6}
	default:
		return Verdict{Prediction: PredictionBalanced, Confidence: 0.5}
	}
}

func (h *HeuristicClassifier) DetectAnomaly(_ context.Context, events []storage.Event) Anomaly {
	if len(events) < 5 {
		return Anomaly{Reason: "insufficient_data"}
	}

	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	var max int
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	if float64(max)/float64(len(events)) > 0.8 {
		return Anomaly{IsAnomaly: true, Score: 0.7, Reason: "dominant_event_type"}
	}
	return Anomaly{Reason: "normal_distribution"}
}
