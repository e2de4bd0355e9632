package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"batchforge/internal/domain"
)

type jobView struct {
	ID          string     `json:"id"`
	BatchID     string     `json:"batch_id"`
	Config      string     `json:"config"`
	Prompt      string     `json:"prompt"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	Result      string     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func viewOf(job domain.Job) jobView {
	return jobView{
		ID:          job.ID,
		BatchID:     job.BatchID,
		Config:      job.ConfigRef,
		Prompt:      job.Prompt,
		Priority:    job.Priority.String(),
		Status:      string(job.Status),
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
		LastError:   job.LastError,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
	}
}

// JobsList returns every job the queue knows about, oldest first.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	jobs := a.Queue.GetAll()
	items := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, viewOf(job))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// JobGet returns one job by id.
func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Queue.Get(id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewOf(job))
}

// JobCancel moves a non-terminal job to cancelled. Going through the
// scheduler keeps progress stream consumers informed of the transition.
func (a *App) JobCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Scheduler.CancelJob(id); err != nil {
		a.domainError(w, err)
		return
	}
	job, err := a.Queue.Get(id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewOf(job))
}

// JobRetry re-arms a failed or cancelled job for another run.
func (a *App) JobRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Queue.Retry(id); err != nil {
		a.domainError(w, err)
		return
	}
	job, err := a.Queue.Get(id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewOf(job))
}

// QueueStats returns aggregate queue counters.
func (a *App) QueueStats(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Queue.Stats())
}

// QueueClearCompleted removes completed jobs from the queue.
func (a *App) QueueClearCompleted(w http.ResponseWriter, r *http.Request) {
	n := a.Queue.ClearCompleted()
	a.json(w, http.StatusOK, map[string]int{"removed": n})
}

// QueueClearAll removes every job that is not currently running.
func (a *App) QueueClearAll(w http.ResponseWriter, r *http.Request) {
	n := a.Queue.ClearAll()
	a.json(w, http.StatusOK, map[string]int{"removed": n})
}
