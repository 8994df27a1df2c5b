// Package executor is the policy gate in front of automatic suggestion
// execution. It decides and records; it never mutates the system. Any real
// side effect belongs to an external collaborator acting on the audit trail.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/nudge/internal/metrics"
	"github.com/kalambet/nudge/internal/rules"
	"github.com/kalambet/nudge/internal/storage"
)

// Execution modes.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// DefaultConfidenceThreshold gates automatic execution.
const DefaultConfidenceThreshold = 0.9

// ActionRecorder is the slice of the store the executor writes to.
type ActionRecorder interface {
	AddAction(ctx context.Context, userID string, rec storage.ActionRecord) error
}

// Result is the audited outcome of an execution decision.
type Result struct {
	Status   string               `json:"status"`
	Executed bool                 `json:"executed"`
	Reason   string               `json:"reason,omitempty"`
	Record   storage.ActionRecord `json:"record"`
}

// Executor applies the auto-execution policy and records every decision.
type Executor struct {
	store     ActionRecorder
	threshold float64
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates an Executor. A threshold <= 0 falls back to the default.
func New(store ActionRecorder, threshold float64, m *metrics.Metrics) *Executor {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Executor{store: store, threshold: threshold, metrics: m, now: time.Now}
}

// Execute decides whether the suggestion may be auto-applied and appends the
// decision to the audit log. A denied policy is a normal outcome carrying a
// reason, not an error; only a persistence failure is an error.
func (e *Executor) Execute(ctx context.Context, userID string, s rules.Suggestion, mode string) (Result, error) {
	var executed bool
	var reason string
	switch {
	case mode == ModeAuto && s.Confidence >= e.threshold:
		executed = true
	case mode == ModeAuto:
		reason = fmt.Sprintf("confidence %.2f below auto-execute threshold %.2f", s.Confidence, e.threshold)
	default:
		reason = "manual mode: requires user approval"
	}

	action := storage.ActionSuggested
	if executed {
		action = storage.ActionAutoExecute
	}
	rec := storage.ActionRecord{
		UserID:             userID,
		SuggestionID:       s.ID,
		SuggestionTitle:    s.Title,
		SuggestionSeverity: s.Severity,
		Action:             action,
		Details:            reason,
		Timestamp:          e.now().UTC(),
	}

	if err := e.store.AddAction(ctx, userID, rec); err != nil {
		return Result{Status: "error", Executed: executed, Reason: "persistence_failed"},
			fmt.Errorf("recording execution decision: %w", err)
	}
	e.metrics.ActionRecorded(action)

	return Result{Status: "ok", Executed: executed, Reason: reason, Record: rec}, nil
}
