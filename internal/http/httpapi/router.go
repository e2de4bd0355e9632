package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"batchforge/internal/http/handlers"
	appmw "batchforge/internal/middleware"
	"batchforge/internal/sse"
)

// RouterOptions carries the optional router knobs.
type RouterOptions struct {
	AllowedOrigins []string
}

func NewRouter(app *handlers.App, hub *sse.Hub, logger zerolog.Logger, opts ...RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(appmw.Logger(logger))
	for _, o := range opts {
		if len(o.AllowedOrigins) > 0 {
			r.Use(appmw.CORS(o.AllowedOrigins))
		}
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/batches", func(r chi.Router) {
		r.Post("/", app.BatchSubmit)
	})

	r.Route("/v1/scheduler", func(r chi.Router) {
		r.Get("/status", app.SchedulerStatus)
		r.Post("/start", app.SchedulerStart)
		r.Post("/stop", app.SchedulerStop)
		r.Post("/cancel-current", app.SchedulerCancelCurrent)
	})

	r.Route("/v1/queue", func(r chi.Router) {
		r.Get("/jobs", app.JobsList)
		r.Get("/jobs/{id}", app.JobGet)
		r.Post("/jobs/{id}/cancel", app.JobCancel)
		r.Post("/jobs/{id}/retry", app.JobRetry)
		r.Get("/stats", app.QueueStats)
		r.Delete("/completed", app.QueueClearCompleted)
		r.Delete("/jobs", app.QueueClearAll)
	})

	r.Get("/v1/presets", app.PresetsList)
	r.Get("/v1/artifacts/*", app.ArtifactDownload)
	r.Method(stdhttp.MethodGet, "/v1/events", sse.Handler(hub))

	return r
}
