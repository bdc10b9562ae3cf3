// Package worker wires the render scheduler to its shared backing services
// for the split deployment: job records in Postgres, the queue in Redis,
// artifacts in the configured storage provider.
package worker

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"motif/internal/media"
	"motif/internal/pkg/logger"
	"motif/internal/ports"
	"motif/internal/renderer"
	"motif/internal/scheduler"
)

type Deps struct {
	Pool *pgxpool.Pool
	RDB  *redis.Client
	SP   ports.StorageProvider
	Log  *logger.Logger

	QueueName string
	Workers   int
	WorkDir   string
	EngineBin string
	Quality   string
}

// Run consumes the job queue until ctx is done.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	base := renderer.New(renderer.Config{
		EngineBin: d.EngineBin,
		Quality:   d.Quality,
	}, nil, log)
	asm := media.New(nil, log)

	sched := scheduler.New(
		scheduler.Config{Workers: d.Workers, WorkDir: d.WorkDir},
		scheduler.Deps{
			Registry: scheduler.NewPostgresRegistry(d.Pool),
			Queue:    scheduler.NewRedisQueue(d.RDB, d.QueueName),
			Renderer: base,
			RendererFor: func(quality, style string) scheduler.SceneRenderer {
				return base.ForJob(quality, style)
			},
			Assembler: asm,
			Storage:   d.SP,
			Log:       log,
		},
	)

	return sched.Run(ctx)
}
