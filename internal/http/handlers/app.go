package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"batchforge/internal/domain"
	"batchforge/internal/infra"
	"batchforge/internal/preset"
	"batchforge/internal/queue"
	"batchforge/internal/scheduler"
	"batchforge/internal/storage"
)

// App bundles the collaborators every handler needs.
type App struct {
	Scheduler *scheduler.Scheduler
	Queue     *queue.Queue
	Store     *storage.FileStore
	Presets   *preset.Library
	Logger    infra.Logger
}

func NewApp(sched *scheduler.Scheduler, q *queue.Queue, store *storage.FileStore, presets *preset.Library, logger infra.Logger) *App {
	return &App{
		Scheduler: sched,
		Queue:     q,
		Store:     store,
		Presets:   presets,
		Logger:    logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]string{"error": errCode, "message": msg})
}

// domainError maps domain sentinel errors onto HTTP responses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidJob), errors.Is(err, domain.ErrInvalidTemplate):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "request failed")
	}
}
