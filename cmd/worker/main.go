// Package main runs the background job worker (transcript embeddings into Postgres).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/letsee/debate-backend/config"
	"github.com/letsee/debate-backend/internal/retrieval"
	"github.com/letsee/debate-backend/internal/worker"
	"github.com/letsee/debate-backend/pkg/database"
	"github.com/letsee/debate-backend/pkg/queue"
	"github.com/letsee/debate-backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Database.URL == "" || cfg.Redis.Addr == "" {
		logger.Fatal("worker needs DATABASE_URL and REDIS_ADDR")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, database.PoolOptions{ApplicationName: "debate-worker", MaxConns: 4}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	store := retrieval.NewPostgresStore(pool, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmbeddingProcessor(store, jobQueue, logger)
	if pending, dead, err := jobQueue.Depth(ctx); err == nil {
		logger.Info("queue depth", zap.Int64("pending", pending), zap.Int64("dead", dead))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
