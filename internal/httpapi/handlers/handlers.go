package handlers

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"motif/internal/pkg/logger"
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

type Handler struct {
	sched     *scheduler.Scheduler
	templates *repositories.TemplateRepository
	pool      *pgxpool.Pool
	rdb       *redis.Client
	sp        ports.StorageProvider
	log       *logger.Logger
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logger.NewDefault()
	}
	return &Handler{
		sched:     d.Scheduler,
		templates: d.Templates,
		pool:      d.Pool,
		rdb:       d.RDB,
		sp:        d.SP,
		log:       d.Log.WithComponent("httpapi"),
	}
}
