// Package httpapi exposes the render service over HTTP: job submission and
// lifecycle, stored templates, artifact retrieval, and health.
package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"motif/internal/httpapi/handlers"
	"motif/internal/httpkit"
	"motif/internal/pkg/logger"
	"motif/internal/pkg/middleware"
	"motif/internal/ports"
	"motif/internal/repositories"
	"motif/internal/scheduler"
)

type Deps struct {
	Scheduler *scheduler.Scheduler
	Templates *repositories.TemplateRepository
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	SP        ports.StorageProvider
	Log       *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.Logging(d.Log))
	r.Use(middleware.Timeout(60 * time.Second))

	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:8081",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Scheduler: d.Scheduler,
		Templates: d.Templates,
		Pool:      d.Pool,
		RDB:       d.RDB,
		SP:        d.SP,
		Log:       d.Log,
	})

	r.Get("/health", h.Health)

	r.Post("/jobs", h.PostJob)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{jobId}", h.GetJob)
	r.Post("/jobs/{jobId}/cancel", h.CancelJob)
	r.Get("/jobs/{jobId}/video", h.StreamVideo)
	r.Get("/jobs/{jobId}/video/url", h.GetVideoURL)

	r.Post("/templates", h.PostTemplate)
	r.Get("/templates", h.ListTemplates)
	r.Get("/templates/{templateId}", h.GetTemplate)
	r.Patch("/templates/{templateId}", h.PatchTemplate)
	r.Delete("/templates/{templateId}", h.DeleteTemplate)
	r.Post("/templates/{templateId}/render", h.RenderTemplate)

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
