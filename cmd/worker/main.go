package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"motif/internal/pkg/logger"
	"motif/internal/storage"
	"motif/internal/worker"
	"motif/internal/worker/util"
)

func main() {
	log := logger.New(logger.Config{
		Level:       util.Env("LOG_LEVEL", "info"),
		Format:      util.Env("LOG_FORMAT", "json"),
		ServiceName: "motif-worker",
	})

	dbURL := util.MustEnv("DATABASE_URL")
	redisAddr := util.MustEnv("REDIS_ADDR")
	queueName := util.Env("JOB_QUEUE_NAME", "motif:jobs")
	workDir := util.Env("WORK_DIR", "")
	engineBin := util.Env("ENGINE_BIN", "manim")
	quality := util.Env("RENDER_QUALITY", "low")
	workers := intEnv("WORKER_CONCURRENCY", 2)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	sp, err := storage.NewProvider()
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}

	log.Info("motif worker started",
		"queue", queueName,
		"workers", workers,
		"engine", engineBin,
		"quality", quality,
	)

	deps := worker.Deps{
		Pool:      pool,
		RDB:       rdb,
		SP:        sp,
		Log:       log,
		QueueName: queueName,
		Workers:   workers,
		WorkDir:   workDir,
		EngineBin: engineBin,
		Quality:   quality,
	}
	if err := worker.Run(ctx, deps); err != nil && ctx.Err() == nil {
		log.LogFatal("worker stopped", err)
	}
	log.Info("motif worker stopped")
}

func intEnv(key string, def int) int {
	v := util.Env(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
