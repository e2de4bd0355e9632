package handlers

import (
	"encoding/json"
	"net/http"

	"batchforge/internal/domain"
)

type batchSubmitRequest struct {
	Config      string   `json:"config"`
	Count       int      `json:"count"`
	Prompt      string   `json:"prompt"`
	Prompts     []string `json:"prompts"`
	Priority    string   `json:"priority"`
	MaxAttempts int      `json:"max_attempts"`
}

type batchSubmitResponse struct {
	BatchID  string   `json:"batch_id"`
	JobIDs   []string `json:"job_ids"`
	Total    int      `json:"total"`
	Warnings []string `json:"warnings,omitempty"`
	Status   string   `json:"status"`
}

// BatchSubmit expands one batch request into queued jobs.
func (a *App) BatchSubmit(w http.ResponseWriter, r *http.Request) {
	var req batchSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Config == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "config required")
		return
	}

	handle, err := a.Scheduler.Submit(r.Context(), domain.BatchRequest{
		ConfigRef:     req.Config,
		Count:         req.Count,
		LiteralPrompt: req.Prompt,
		PreResolved:   req.Prompts,
		Priority:      req.Priority,
		MaxAttempts:   req.MaxAttempts,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusAccepted, batchSubmitResponse{
		BatchID:  handle.BatchID,
		JobIDs:   handle.JobIDs,
		Total:    handle.Total,
		Warnings: handle.Warnings,
		Status:   "queued",
	})
}
