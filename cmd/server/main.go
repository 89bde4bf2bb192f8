// Package main runs the debate HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/letsee/debate-backend/config"
	"github.com/letsee/debate-backend/internal/debate"
	"github.com/letsee/debate-backend/internal/export"
	"github.com/letsee/debate-backend/internal/judge"
	"github.com/letsee/debate-backend/internal/middleware"
	"github.com/letsee/debate-backend/internal/moderation"
	"github.com/letsee/debate-backend/internal/oracle"
	"github.com/letsee/debate-backend/internal/realtime"
	"github.com/letsee/debate-backend/internal/retrieval"
	"github.com/letsee/debate-backend/internal/sessions"
	"github.com/letsee/debate-backend/internal/ticket"
	"github.com/letsee/debate-backend/internal/timers"
	"github.com/letsee/debate-backend/pkg/clock"
	"github.com/letsee/debate-backend/pkg/database"
	"github.com/letsee/debate-backend/pkg/queue"
	"github.com/letsee/debate-backend/pkg/redis"
	"github.com/letsee/debate-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Retrieval store (prior material for judging)
	var store retrieval.Store
	if cfg.Database.URL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, database.PoolOptions{ApplicationName: "debate-server"}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		store = retrieval.NewPostgresStore(pool, logger)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory retrieval store")
		store = retrieval.NewMemoryStore()
	}

	// Transcript archiving: through the worker when Redis and Postgres are both
	// available, otherwise inline in this process.
	var archiver judge.Archiver
	var inline *retrieval.InlineArchiver
	if cfg.Redis.Addr != "" && cfg.Database.URL != "" {
		rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		archiver = retrieval.NewQueueArchiver(queue.NewQueue(rdb.Client, logger), 0)
	} else {
		inline = retrieval.NewInlineArchiver(store, 0, logger)
		archiver = inline
	}

	// Scoring oracle and topics
	oracleClient := oracle.NewClient(cfg.Oracle.APIKey,
		oracle.WithBaseURL(cfg.Oracle.BaseURL),
		oracle.WithModel(cfg.Oracle.Model),
		oracle.WithTimeout(time.Duration(cfg.Oracle.TimeoutSec)*time.Second),
	)
	judgeOpts := []judge.Option{
		judge.WithRetriever(store),
		judge.WithArchiver(archiver),
		judge.WithFallbackOnError(cfg.Debate.FallbackOnOracleErr),
	}
	if oracleClient.Configured() {
		judgeOpts = append(judgeOpts, judge.WithScorer(oracle.NewScorer(oracleClient, logger)))
	} else {
		logger.Warn("ORACLE_API_KEY not set, debates are scored by the heuristic")
	}
	judgeSvc := judge.New(logger, judgeOpts...)
	topics := oracle.NewTopics(oracleClient, nil, logger)

	// Export archive (optional)
	var objects export.ObjectStore
	if cfg.AWS.ExportsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
			Endpoint:             cfg.AWS.S3Endpoint,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			objects = s3Client
		}
	}
	archive := export.NewArchive(objects, logger)

	tickets, err := ticket.NewService(cfg.Ticket.Secret, cfg.Ticket.ExpireHours)
	if err != nil {
		logger.Fatal("tickets", zap.Error(err))
	}

	origins := middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins)
	hub := realtime.NewHub(logger, realtime.WithOriginCheck(origins.CheckOrigin))
	realClock := clock.Real()
	svc := debate.NewService(debate.Deps{
		Registry:     sessions.NewRegistry(cfg.Debate.Limits(), logger, sessions.WithClock(realClock)),
		Timers:       timers.NewManager(realClock, logger),
		Filter:       moderation.NewFilter(cfg.Debate.MaxArgumentLength, cfg.Debate.BlockedPhrases),
		Judge:        judgeSvc,
		Topics:       topics,
		Broadcaster:  hub,
		JudgeTimeout: cfg.Debate.JudgeTimeout(),
	}, logger)
	handler := debate.NewHandler(svc, tickets, archive, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(origins))
	router.Use(middleware.Logger(logger))

	api := router.Group("/api")
	handler.Register(api)

	// WebSocket (ticket in query)
	api.GET("/ws", handler.Socket(hub))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port),
			zap.Bool("oracle", oracleClient.Configured()), zap.Bool("archive", archive.Enabled()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	svc.Shutdown()
	if inline != nil {
		inline.Wait()
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
