// Package main runs the AR content platform HTTP server: the admin CRUD
// API, the public content-resolution API, and the admin notification
// stream, plus the C5 background scheduler.
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

	"github.com/fegerV/arplatform/config"
	"github.com/fegerV/arplatform/internal/admin"
	"github.com/fegerV/arplatform/internal/auth"
	"github.com/fegerV/arplatform/internal/companies"
	"github.com/fegerV/arplatform/internal/content"
	"github.com/fegerV/arplatform/internal/credentials"
	"github.com/fegerV/arplatform/internal/marker"
	"github.com/fegerV/arplatform/internal/middleware"
	"github.com/fegerV/arplatform/internal/notifications"
	"github.com/fegerV/arplatform/internal/projects"
	"github.com/fegerV/arplatform/internal/realtime"
	"github.com/fegerV/arplatform/internal/resolution"
	"github.com/fegerV/arplatform/internal/rotation"
	"github.com/fegerV/arplatform/internal/scheduler"
	"github.com/fegerV/arplatform/internal/worker"
	"github.com/fegerV/arplatform/pkg/database"
	"github.com/fegerV/arplatform/pkg/queue"
	"github.com/fegerV/arplatform/pkg/redis"
	"github.com/fegerV/arplatform/pkg/response"
	"github.com/fegerV/arplatform/pkg/storage"
	"github.com/fegerV/arplatform/pkg/utils"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	credRepo, err := credentials.NewRepository(pool, cfg.Storage.CredentialMasterKey)
	if err != nil {
		logger.Fatal("credentials repository", zap.Error(err))
	}

	oauthCfg := storage.OAuth2Config(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.AuthURL,
		cfg.OAuth.TokenURL, cfg.OAuth.RedirectURL, cfg.OAuth.Scopes)

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	notifierRepo := notifications.NewRepository(pool, hub)

	oauthFlow := credentials.NewFlow(credRepo, oauthCfg, rdb.Client, logger)

	refreshCheck := time.Duration(cfg.OAuth.RefreshCheckInterval) * time.Second
	if refreshCheck <= 0 {
		refreshCheck = 10 * time.Minute
	}
	refresher := credentials.NewRefresher(credRepo, oauthCfg, notifierRepo, refreshCheck, 24*time.Hour, logger)
	refresher.Start()
	defer refresher.Stop()

	storageFactory := storage.NewFactory(
		storage.LocalConfig{RootDir: cfg.Storage.LocalRootDir, PublicBaseURL: cfg.Storage.LocalPublicBaseURL},
		func(connectionID int64) storage.TokenSource { return credRepo.TokenSourceFor(connectionID) },
		logger,
	)

	companiesRepo := companies.NewRepository(pool)
	projectsRepo := projects.NewRepository(pool)
	contentRepo := content.NewRepository(pool)
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

	sched := scheduler.New(jobQueue, cfg.Scheduler, logger)
	sched.Start()
	defer sched.Stop()

	authRepo := auth.NewRepository(pool)
	if err := bootstrapAdmin(ctx, authRepo, cfg.Admin, logger); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	resolutionHandler := resolution.NewHandler(contentRepo, projectsRepo, companiesRepo, providerResolver)

	adminHandlers := &admin.Handlers{
		Auth:      authHandler,
		Company:   admin.NewCompanyHandler(companiesRepo, credRepo, storageFactory),
		Project:   admin.NewProjectHandler(projectsRepo, notifierRepo),
		Content:   admin.NewContentHandler(contentRepo, companiesRepo, providerResolver, jobQueue),
		Storage:   admin.NewStorageHandler(credRepo, storageFactory),
		Rotation:  admin.NewRotationHandler(rotationsRepo),
		OAuthFlow: oauthFlow,
		Hub:       hub,
		JWT:       jwtService,
		Logger:    logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	admin.RegisterRoutes(router, adminHandlers)

	router.GET("/content/:unique_id", resolutionHandler.GetManifest)
	router.GET("/content/:unique_id/active-video", resolutionHandler.GetActiveVideo)
	router.GET("/view/:unique_id", resolutionHandler.GetViewerShell)

	// Public: the cloud-disk provider redirects the browser here directly,
	// so it cannot carry the admin JWT the rest of /admin requires.
	router.GET("/oauth/:provider/callback", oauthFlow.Callback)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go dispatcher.Run(workerCtx)
	logger.Info("job dispatcher started")

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// bootstrapAdmin seeds the first admin_users row from config when the
// table is empty, since this platform has no self-registration endpoint
// (a single admin role, provisioned out of band).
func bootstrapAdmin(ctx context.Context, authRepo *auth.Repository, cfg config.AdminConfig, logger *zap.Logger) error {
	count, err := authRepo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		logger.Warn("no admin_users exist and no bootstrap credentials configured")
		return nil
	}
	hash, err := utils.HashPassword(cfg.BootstrapPassword)
	if err != nil {
		return err
	}
	if _, err := authRepo.Create(ctx, cfg.BootstrapEmail, hash); err != nil {
		return err
	}
	logger.Info("bootstrap admin created", zap.String("email", cfg.BootstrapEmail))
	return nil
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
