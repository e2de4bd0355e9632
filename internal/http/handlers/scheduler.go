package handlers

import "net/http"

// SchedulerStatus reports aggregate progress across all submitted batches.
func (a *App) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Scheduler.Status())
}

// SchedulerStart launches the worker pool.
func (a *App) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	a.Scheduler.Start()
	a.json(w, http.StatusOK, map[string]bool{"active": true})
}

// SchedulerStop halts dequeuing; in-flight jobs finish first.
func (a *App) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	a.Scheduler.Stop()
	a.json(w, http.StatusOK, map[string]bool{"active": false})
}

// SchedulerCancelCurrent cancels every running job.
func (a *App) SchedulerCancelCurrent(w http.ResponseWriter, r *http.Request) {
	n := a.Scheduler.CancelCurrent()
	a.json(w, http.StatusOK, map[string]int{"cancelled": n})
}
