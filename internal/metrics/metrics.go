// Package metrics exposes Prometheus counters for the nudge service.
// All recording methods are nil-safe so components can run without a
// metrics sink in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nudge"

// Metrics bundles the service's counters behind one registry.
type Metrics struct {
	registry *prometheus.Registry

	eventsIngested       prometheus.Counter
	suggestionsGenerated prometheus.Counter
	ruleFailures         *prometheus.CounterVec
	actionsRecorded      *prometheus.CounterVec
	pruneRuns            prometheus.Counter
	prunedRecords        *prometheus.CounterVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		eventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Events accepted by the ingestion endpoint.",
		}),
		suggestionsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_generated_total",
			Help:      "Suggestions emitted across all evaluation passes.",
		}),
		ruleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_failures_total",
			Help:      "Detector evaluations skipped due to a panic.",
		}, []string{"rule"}),
		actionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_recorded_total",
			Help:      "Audit-log records written, by action.",
		}, []string{"action"}),
		pruneRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prune_runs_total",
			Help:      "Retention prune passes completed.",
		}),
		prunedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_records_total",
			Help:      "Records removed by retention pruning, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.eventsIngested,
		m.suggestionsGenerated,
		m.ruleFailures,
		m.actionsRecorded,
		m.pruneRuns,
		m.prunedRecords,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventsIngested(n int) {
	if m == nil {
		return
	}
	m.eventsIngested.Add(float64(n))
}

func (m *Metrics) SuggestionsGenerated(n int) {
	if m == nil {
		return
	}
	m.suggestionsGenerated.Add(float64(n))
}

func (m *Metrics) RuleFailure(rule string) {
	if m == nil {
		return
	}
	m.ruleFailures.WithLabelValues(rule).Inc()
}

func (m *Metrics) ActionRecorded(action string) {
	if m == nil {
		return
	}
	m.actionsRecorded.WithLabelValues(action).Inc()
}

func (m *Metrics) PruneRun(events, actions int64) {
	if m == nil {
		return
	}
	m.pruneRuns.Inc()
	m.prunedRecords.WithLabelValues("events").Add(float64(events))
	m.prunedRecords.WithLabelValues("actions").Add(float64(actions))
}
