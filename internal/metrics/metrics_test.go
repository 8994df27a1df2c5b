package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCountersExposed(t *testing.T) {
	m := New()
	m.EventsIngested(3)
	m.SuggestionsGenerated(2)
	m.RuleFailure("burnout_risk")
	m.ActionRecorded("accept")
	m.PruneRun(5, 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"nudge_events_ingested_total 3",
		"nudge_suggestions_generated_total 2",
		`nudge_rule_failures_total{rule="burnout_risk"} 1`,
		`nudge_actions_recorded_total{action="accept"} 1`,
		"nudge_prune_runs_total 1",
		`nudge_pruned_records_total{kind="events"} 5`,
		`nudge_pruned_records_total{kind="actions"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

// TestNilSafe verifies every recording method is callable on a nil receiver.
func TestNilSafe(t *testing.T) {
	var m *Metrics
	m.EventsIngested(1)
	m.SuggestionsGenerated(1)
	m.RuleFailure("x")
	m.ActionRecorded("accept")
	m.PruneRun(1, 1)
}
