package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-class-scheduler/api/swagger"
	"github.com/noah-isme/lms-class-scheduler/internal/handler"
	internalmiddleware "github.com/noah-isme/lms-class-scheduler/internal/middleware"
	"github.com/noah-isme/lms-class-scheduler/internal/models"
	"github.com/noah-isme/lms-class-scheduler/internal/repository"
	"github.com/noah-isme/lms-class-scheduler/internal/scheduler"
	"github.com/noah-isme/lms-class-scheduler/internal/service"
	"github.com/noah-isme/lms-class-scheduler/pkg/cache"
	"github.com/noah-isme/lms-class-scheduler/pkg/config"
	"github.com/noah-isme/lms-class-scheduler/pkg/database"
	"github.com/noah-isme/lms-class-scheduler/pkg/jobs"
	"github.com/noah-isme/lms-class-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-class-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-class-scheduler/pkg/middleware/requestid"
	"github.com/noah-isme/lms-class-scheduler/pkg/storage"
)

const (
	shutdownTimeout = 15 * time.Second
	cachePrefix     = "lms:"
)

// @title LMS Class Scheduler API
// @version 1.0.0
// @description Forms progress-aligned classes, books time slots and assigns teachers
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var redisClient redis.Cmdable
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, scheduling runs will not be memoized", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			redisClient = client
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, cachePrefix, logr),
		metricsSvc,
		cfg.Cache.TTL,
		logr,
		cfg.Cache.Enabled && redisClient != nil,
	)

	classRepo := repository.NewScheduledClassRepository(db)
	schedulingSvc := service.NewSchedulingService(
		service.SchedulingRepositories{
			Progress: repository.NewStudentProgressRepository(db),
			Content:  repository.NewLearningContentRepository(db),
			Slots:    repository.NewTimeSlotRepository(db),
			Teachers: repository.NewTeacherProfileRepository(db),
			Classes:  classRepo,
			Runs:     repository.NewSchedulingRunRepository(db),
		},
		db,
		cacheSvc,
		metricsSvc,
		validator.New(),
		logr,
		service.SchedulingConfig{
			Constraints: models.SchedulingConstraints{
				MaxStudentsPerClass:            cfg.Scheduler.MaxStudentsPerClass,
				MaxConcurrentClassesPerTeacher: cfg.Scheduler.MaxClassesPerTeacher,
				MaxContentPerClass:             cfg.Scheduler.MaxContentPerClass,
			},
			Weights: models.SchedulingScoringWeights{
				ContentProgression:    cfg.Scheduler.WeightContentProgression,
				StudentAvailability:   cfg.Scheduler.WeightStudentAvailability,
				ClassSizeOptimization: cfg.Scheduler.WeightClassSize,
				ScheduleContinuity:    cfg.Scheduler.WeightScheduleContinuity,
			},
			CacheTTL: cfg.Cache.TTL,
		},
		scheduler.Options{},
	)

	if cfg.Scheduler.Enabled {
		queue := jobs.NewQueue[service.BatchRun]("scheduling", schedulingSvc.HandleBatchJob, jobs.Config{
			Workers:    cfg.Scheduler.Workers,
			MaxRetries: cfg.Scheduler.WorkerRetries,
			RetryDelay: cfg.Scheduler.WorkerRetryDelay,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		metricsSvc.RegisterQueue("scheduling", queue.Stats)
		schedulingSvc.UseQueue(queue)
	}

	exportSvc := newExportService(cfg, classRepo, schedulingSvc, logr)
	go runExportCleanup(ctx, exportSvc, cfg.Export.Retention, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	schedulingHandler := handler.NewSchedulingHandler(schedulingSvc, exportSvc)
	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	{
		api.POST("/scheduling/runs", schedulingHandler.Run)
		api.POST("/scheduling/batches", schedulingHandler.Batch)
		api.GET("/scheduling/conflicts", schedulingHandler.Conflicts)
		api.PATCH("/scheduling/classes/:id/status", schedulingHandler.UpdateClassStatus)
		api.GET("/scheduling/export", schedulingHandler.Export)
		api.GET("/scheduling/export/files/:token", schedulingHandler.Download)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newExportService(cfg *config.Config, classes *repository.ScheduledClassRepository, conflicts *service.SchedulingService, logr *zap.Logger) *service.ExportService {
	exportCfg := service.ExportConfig{APIPrefix: cfg.APIPrefix, Retention: cfg.Export.Retention}
	if cfg.Export.SigningSecret == "" {
		logr.Info("export signing secret not set, only inline exports are served")
		return service.NewExportService(classes, conflicts, nil, nil, exportCfg, logr)
	}
	store, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Warn("export storage unavailable, only inline exports are served", zap.Error(err))
		return service.NewExportService(classes, conflicts, nil, nil, exportCfg, logr)
	}
	signer := storage.NewSigner(cfg.Export.SigningSecret, cfg.Export.LinkTTL)
	return service.NewExportService(classes, conflicts, store, signer, exportCfg, logr)
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, retention time.Duration, logr *zap.Logger) {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := exports.Cleanup(); err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}
