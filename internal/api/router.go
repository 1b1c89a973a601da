package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Potency/internal/config"
	"github.com/MikeSquared-Agency/Potency/internal/plot"
	"github.com/MikeSquared-Agency/Potency/internal/session"
	"github.com/MikeSquared-Agency/Potency/internal/store"
)

func NewRouter(m *session.Manager, ms store.ModelStore, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.Server.RateLimit))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	sessions := NewSessionsHandler(m, cfg.Ingest.MaxUploadBytes, plot.Options{
		Width:  cfg.Plot.Width,
		Height: cfg.Plot.Height,
	}, logger)
	admin := NewAdminHandler(m, ms)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", sessions.Create)
		r.Get("/sessions/{id}", sessions.Get)
		r.Delete("/sessions/{id}", sessions.Delete)
		r.Post("/sessions/{id}/dataset", sessions.Upload)
		r.Post("/sessions/{id}/predict", sessions.Predict)
		r.Get("/sessions/{id}/plot", sessions.Plot)
		r.Get("/sessions/{id}/plot.png", sessions.PlotImage(plot.PNG))
		r.Get("/sessions/{id}/plot.svg", sessions.PlotImage(plot.SVG))
		r.Post("/sessions/{id}/model/load", sessions.LoadModel)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			r.Get("/admin/sessions", admin.Sessions)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
