package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"hrpulse-gateway/internal/handlers"
	"hrpulse-gateway/internal/metrics"
	"hrpulse-gateway/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Chat   *handlers.ChatHandler
	Events *handlers.EventsHandler
	Admin  *handlers.CacheAdminHandler
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, h Handlers) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())               // panic recovery
	r.Use(middleware.Timeout(90 * time.Second)) // request timeout, generous for sync generation
	r.Use(middleware.MaxBodySize(512 * 1024))   // 512 KB max body

	// routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", h.Chat.Chat)
		r.Post("/chat/async", h.Chat.ChatAsync)
		r.Get("/chat/tasks/{taskID}", h.Chat.PollTask)

		r.Post("/events", h.Events.Ingest)

		r.Get("/cache/stats", h.Admin.Stats)
		r.Delete("/cache", h.Admin.Clear)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
