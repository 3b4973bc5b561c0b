package httpapi

import (
	"net/http"
	"time"

	"github.com/dwizi/copilot-backend/internal/tasks"
)

const deadlineLookaheadDays = 7

func (r *router) handleTaskSummary(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	bundle := r.gatherBundle(req.Context(), user.ID).Bundle
	now := r.deps.Now()
	normalized := tasks.Normalize(bundle.Events, bundle.Issues, now)
	summary := tasks.Triage(normalized, now, deadlineLookaheadDays, tasks.MostRecentMonday(now))
	writeJSON(w, http.StatusOK, summary)
}

func (r *router) handleAllTasks(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	bundle := r.gatherBundle(req.Context(), user.ID).Bundle
	normalized := tasks.Normalize(bundle.Events, bundle.Issues, r.deps.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": normalized,
		"total": len(normalized),
	})
}

func (r *router) handleTaskAnalysis(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	ctx := req.Context()
	bundle := r.gatherBundle(ctx, user.ID).Bundle
	analysis, err := r.deps.Orchestrator.AnalyzeTasks(ctx, bundle)
	if err != nil {
		r.writeError(w, err)
		return
	}

	// Prose fallback lands wholesale under recommendations.
	if text, ok := analysis["analysis"].(string); ok && len(analysis) == 1 {
		writeJSON(w, http.StatusOK, map[string]any{
			"priority_tasks":     []any{},
			"upcoming_deadlines": []any{},
			"overdue_items":      []any{},
			"recommendations":    []any{text},
			"time_blocks":        []any{},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"priority_tasks":     listFrom(analysis, "priority_tasks"),
		"upcoming_deadlines": listFrom(analysis, "upcoming_deadlines"),
		"overdue_items":      listFrom(analysis, "overdue_items"),
		"recommendations":    listFrom(analysis, "recommendations"),
		"time_blocks":        listFrom(analysis, "time_blocks"),
	})
}

func (r *router) handleWeeklySummary(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	ctx := req.Context()
	bundle := r.gatherBundle(ctx, user.ID).Bundle
	summary, err := r.deps.Orchestrator.SummarizeWeek(ctx, bundle)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":      summary,
		"generated_at": r.deps.Now().Format(time.RFC3339),
		"data_sources": map[string]int{
			"emails": len(bundle.Emails),
			"events": len(bundle.Events),
			"issues": len(bundle.Issues),
		},
	})
}

func listFrom(analysis map[string]any, key string) []any {
	if items, ok := analysis[key].([]any); ok {
		return items
	}
	return []any{}
}
