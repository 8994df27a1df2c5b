// Package api exposes the HTTP surface: event ingestion, suggestion queries,
// action recording, policy-gated execution, and admin pruning.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/nudge/internal/executor"
	"github.com/kalambet/nudge/internal/metrics"
	"github.com/kalambet/nudge/internal/normalize"
	"github.com/kalambet/nudge/internal/ranker"
	"github.com/kalambet/nudge/internal/rules"
	"github.com/kalambet/nudge/internal/storage"
)

const maxRequestBodySize = 10 << 20 // 10MB

// Deps wires the handler's collaborators.
type Deps struct {
	Store      storage.Store
	Normalizer *normalize.Normalizer
	Engine     *rules.Engine
	Ranker     *ranker.Ranker
	Executor   *executor.Executor
	Keys       []string
	Metrics    *metrics.Metrics
}

// NewHandler builds the chi router for all endpoints.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(deps.Keys))

		r.Post("/api/ingest", handleIngest(deps))
		r.Get("/api/suggestions", handleSuggestions(deps))
		r.Post("/api/actions", handlePostAction(deps))
		r.Get("/api/actions", handleGetActions(deps))
		r.Post("/api/execute", handleExecute(deps))
		r.Post("/api/admin/prune", handlePrune(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleIngest accepts one event or a list of events, normalizes each, and
// stores them. Duplicate event ids are counted as stored: ingestion is
// idempotent, not an error path.
func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var batch []normalize.RawEvent
		if len(raw) > 0 && raw[0] == '[' {
			if err := json.Unmarshal(raw, &batch); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid event list: %v", err)
				return
			}
		} else {
			var single normalize.RawEvent
			if err := json.Unmarshal(raw, &single); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid event: %v", err)
				return
			}
			batch = []normalize.RawEvent{single}
		}

		for i, ev := range batch {
			if ev.UserID == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "event %d: user_id is required", i)
				return
			}
			if ev.Type == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "event %d: type is required", i)
				return
			}
		}

		stored := 0
		for _, raw := range batch {
			ev := deps.Normalizer.Normalize(raw)
			if err := deps.Store.AddEvent(r.Context(), raw.UserID, ev); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to store event: %v", err)
				return
			}
			stored++
		}
		deps.Metrics.EventsIngested(stored)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "accepted",
			"stored": stored,
		})
	}
}

// handleSuggestions evaluates all rules over the user's history and returns
// the ranked result. Suggestions are recomputed per request, never persisted.
func handleSuggestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		var since *time.Time
		if s := r.URL.Query().Get("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid since timestamp: %v", err)
				return
			}
			since = &t
		}

		events, err := deps.Store.Events(r.Context(), userID, since)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load events: %v", err)
			return
		}

		suggestions := deps.Engine.Evaluate(r.Context(), events, time.Now().UTC())
		suggestions = deps.Ranker.Rank(r.Context(), suggestions, userID)
		if suggestions == nil {
			suggestions = []rules.Suggestion{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"user_id":      userID,
			"generated_at": time.Now().UTC(),
			"suggestions":  suggestions,
		})
	}
}

type actionRequest struct {
	UserID             string `json:"user_id"`
	SuggestionID       string `json:"suggestion_id"`
	SuggestionTitle    string `json:"suggestion_title"`
	SuggestionSeverity string `json:"suggestion_severity"`
	Action             string `json:"action"`
	Details            string `json:"details"`
}

var validActions = map[string]bool{
	storage.ActionAccept:      true,
	storage.ActionReject:      true,
	storage.ActionAutoExecute: true,
	storage.ActionSuggested:   true,
}

func handlePostAction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if req.SuggestionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "suggestion_id is required")
			return
		}
		if !validActions[req.Action] {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid action %q", req.Action)
			return
		}

		rec := storage.ActionRecord{
			UserID:             req.UserID,
			SuggestionID:       req.SuggestionID,
			SuggestionTitle:    req.SuggestionTitle,
			SuggestionSeverity: req.SuggestionSeverity,
			Action:             req.Action,
			Details:            req.Details,
			Timestamp:          time.Now().UTC(),
		}
		if err := deps.Store.AddAction(r.Context(), req.UserID, rec); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record action: %v", err)
			return
		}
		deps.Metrics.ActionRecorded(req.Action)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "recorded": 1})
	}
}

func handleGetActions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		actions, err := deps.Store.Actions(r.Context(), userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load actions: %v", err)
			return
		}
		if actions == nil {
			actions = []storage.ActionRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"user_id": userID,
			"actions": actions,
		})
	}
}

type executeRequest struct {
	UserID     string           `json:"user_id"`
	Suggestion rules.Suggestion `json:"suggestion"`
	Mode       string           `json:"mode"`
}

func handleExecute(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if req.Mode == "" {
			req.Mode = executor.ModeAuto
		}

		result, err := deps.Executor.Execute(r.Context(), req.UserID, req.Suggestion, req.Mode)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record decision: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// handlePrune triggers immediate retention pruning. Backends without pruning
// support yield a 400, matching the admin contract.
func handlePrune(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pruner, ok := deps.Store.(storage.Pruner)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "store does not support prune")
			return
		}

		stats, err := pruner.Prune(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "prune failed: %v", err)
			return
		}
		deps.Metrics.PruneRun(stats.Events, stats.Actions)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "pruned": true})
	}
}
