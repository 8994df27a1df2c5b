package storage

import (
	"time"
)

// Action values recorded in the audit log.
const (
	ActionAccept      = "accept"
	ActionReject      = "reject"
	ActionAutoExecute = "auto_execute"
	ActionSuggested   = "suggested"
)

// Event is one normalized, timestamped observation of user activity.
// EventID is unique within a user's partition; re-submitting a known
// (user_id, event_id) pair is a silent no-op.
type Event struct {
	UserID    string            `json:"user_id"`
	EventID   string            `json:"event_id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Meta      map[string]string `json:"meta"`
}

// ActionRecord is an append-only audit entry capturing a user or automatic
// decision about a suggestion. The same suggestion may accumulate multiple
// records over time; this is history, not latest-state-wins.
type ActionRecord struct {
	UserID             string    `json:"user_id"`
	SuggestionID       string    `json:"suggestion_id"`
	SuggestionTitle    string    `json:"suggestion_title"`
	SuggestionSeverity string    `json:"suggestion_severity"`
	Action             string    `json:"action"`
	Details            string    `json:"details"`
	Timestamp          time.Time `json:"timestamp"`
}

// PruneStats reports how many records a prune pass removed.
type PruneStats struct {
	Events  int64 `json:"events"`
	Actions int64 `json:"actions"`
}
