package rules

import (
	"fmt"
	"time"

	"github.com/kalambet/nudge/internal/storage"
)

// Severity tiers.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SeverityWeight maps a severity tier to its numeric weight. Unknown tiers
// weigh the same as low.
func SeverityWeight(severity string) float64 {
	switch severity {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// Suggestion is one candidate insight produced by a rule for a single
// evaluation pass. Suggestions are ephemeral: recomputed on every request and
// never persisted, only the user's decision about one is. The ID is therefore
// regenerated per evaluation; Title is the durable identity used for learned
// weights.
type Suggestion struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Severity        string   `json:"severity"`
	Confidence      float64  `json:"confidence"`
	Evidence        []string `json:"evidence"`
	SuggestedAction string   `json:"suggested_action"`
	Score           float64  `json:"score"`
	RankScore       float64  `json:"rank_score"`
}

// evidence builds compact provenance strings ("timestamp | type | event_id")
// for up to max events.
func evidence(events []storage.Event, max int) []string {
	if len(events) > max {
		events = events[:max]
	}
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, fmt.Sprintf("%s | %s | %s",
			ev.Timestamp.UTC().Format(time.RFC3339), ev.Type, ev.EventID))
	}
	return out
}
