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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/fourset-checker/api/swagger"
	"github.com/noah-isme/fourset-checker/internal/app"
	"github.com/noah-isme/fourset-checker/internal/handler"
	internalmiddleware "github.com/noah-isme/fourset-checker/internal/middleware"
	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/internal/service"
	"github.com/noah-isme/fourset-checker/pkg/config"
	"github.com/noah-isme/fourset-checker/pkg/jobs"
	"github.com/noah-isme/fourset-checker/pkg/logger"
	corsmiddleware "github.com/noah-isme/fourset-checker/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fourset-checker/pkg/middleware/requestid"
)

// @title Four-Set Checker API
// @version 0.1.0
// @description Validation records, drill-down summaries, merge conflict reports and grade rebuilds.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	metrics := service.NewMetricsService()
	engine, err := app.NewEngine(ctx, cfg, logr, metrics)
	if err != nil {
		logr.Fatal("failed to build engine", zap.Error(err))
	}
	defer engine.Close() //nolint:errcheck

	rebuilds, queue := newRebuildPipeline(cfg, engine, metrics, logr)
	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics.Handler(), map[string]handler.ReadinessCheck{
		"database": engine.PingDatabase,
		"store":    engine.PingStore,
	}, logr)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), cfg, engine, rebuilds, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newRebuildPipeline(cfg *config.Config, engine *app.Engine, metrics *service.MetricsService, logr *zap.Logger) (*service.RebuildService, *jobs.Queue) {
	var worker *service.RebuildWorker
	var rebuilds *service.RebuildService
	queue := jobs.NewQueue("grade-rebuilds", func(ctx context.Context, job jobs.Job) error {
		return worker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:       cfg.Rebuild.Workers,
		BufferSize:    16,
		MaxRetries:    cfg.Rebuild.Retries,
		RetryDelay:    cfg.Rebuild.RetryDelay,
		MaxRetryDelay: cfg.Rebuild.MaxRetryDelay,
		Logger:        logr,
		OnOutcome: func(job jobs.Job, err error) {
			rebuilds.OnOutcome(job, err)
		},
	})
	rebuilds = service.NewRebuildService(engine.Cache, queue, cfg.Store.KeyPrefix, logr)
	worker = service.NewRebuildWorker(rebuilds, engine.Recompute, metrics, logr)
	return rebuilds, queue
}

func registerRoutes(api *gin.RouterGroup, cfg *config.Config, engine *app.Engine, rebuilds *service.RebuildService, logr *zap.Logger) {
	tokens := service.NewTokenService(cfg.JWT.Secret)
	students := handler.NewStudentHandler(engine.Recompute, engine.Conflicts)
	summaries := handler.NewSummaryHandler(engine.Recompute)
	rebuildHandler := handler.NewRebuildHandler(rebuilds, logr)

	api.Use(internalmiddleware.JWT(tokens), internalmiddleware.WithResponseMeta())
	read := internalmiddleware.RequireRoles(models.RoleViewer, models.RoleOperator)
	write := internalmiddleware.RequireRoles(models.RoleOperator)

	api.GET("/students/:id/validation", read, students.Validation)
	api.GET("/students/:id/conflicts", read, students.Conflicts)
	api.POST("/students/:id/recompute", write, internalmiddleware.Audit(logr, "student.recompute"), students.Recompute)

	api.GET("/summaries/:level/:id", read, summaries.Get)

	api.POST("/rebuilds", write, internalmiddleware.Audit(logr, "grade.rebuild"), rebuildHandler.Create)
	api.GET("/rebuilds/:id", read, rebuildHandler.Status)
}
