// Package main runs the job dispatcher (marker compilation, notification
// email dispatch, storage usage recompute, and the C5 scheduler sweeps
// triggered over the queue) as a standalone process, for operators who
// want to scale worker capacity independently of the API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fegerV/arplatform/config"
	"github.com/fegerV/arplatform/internal/companies"
	"github.com/fegerV/arplatform/internal/content"
	"github.com/fegerV/arplatform/internal/credentials"
	"github.com/fegerV/arplatform/internal/marker"
	"github.com/fegerV/arplatform/internal/notifications"
	"github.com/fegerV/arplatform/internal/projects"
	"github.com/fegerV/arplatform/internal/rotation"
	"github.com/fegerV/arplatform/internal/worker"
	"github.com/fegerV/arplatform/pkg/database"
	"github.com/fegerV/arplatform/pkg/queue"
	"github.com/fegerV/arplatform/pkg/redis"
	"github.com/fegerV/arplatform/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	credRepo, err := credentials.NewRepository(pool, cfg.Storage.CredentialMasterKey)
	if err != nil {
		logger.Fatal("credentials repository", zap.Error(err))
	}

	storageFactory := storage.NewFactory(
		storage.LocalConfig{RootDir: cfg.Storage.LocalRootDir, PublicBaseURL: cfg.Storage.LocalPublicBaseURL},
		func(connectionID int64) storage.TokenSource { return credRepo.TokenSourceFor(connectionID) },
		logger,
	)

	companiesRepo := companies.NewRepository(pool)
	contentRepo := content.NewRepository(pool)
	notifierRepo := notifications.NewRepository(pool, nil) // no live admin feed in the standalone worker
	projectsRepo := projects.NewRepository(pool)
	rotationsRepo := rotation.NewRepository(pool, contentRepo)

	providerResolver := func(ctx context.Context, companyID int64) (storage.Provider, error) {
		company, err := companiesRepo.Get(ctx, companyID)
		if err != nil {
			return nil, err
		}
		conn, err := credRepo.Get(ctx, company.StorageConnectionID)
		if err != nil {
			return nil, err
		}
		return storageFactory.Build(ctx, *conn)
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	markerProcessor := marker.NewProcessor(contentRepo, companiesRepo, providerResolver, jobQueue, notifierRepo, cfg.Marker, logger)
	dispatcher := worker.NewDispatcher(jobQueue, markerProcessor, companiesRepo, providerResolver, cfg.Email,
		projectsRepo, rotationsRepo, notifierRepo, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(workerCtx)
	logger.Info("job dispatcher started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
