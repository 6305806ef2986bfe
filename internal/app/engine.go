// Package app assembles the validation engine from configuration. Both the HTTP
// service and the operator CLI build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/fourset-checker/internal/repository"
	"github.com/noah-isme/fourset-checker/internal/service"
	"github.com/noah-isme/fourset-checker/pkg/cache"
	"github.com/noah-isme/fourset-checker/pkg/config"
	"github.com/noah-isme/fourset-checker/pkg/database"
)

// Engine bundles the wired services and the connections they share.
type Engine struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *service.MetricsService
	Catalog   *service.TaskCatalog
	Cache     *service.CacheService
	Answers   *repository.AnswerRepository
	Recompute *service.RecomputeService
	Conflicts *service.ConflictReportService

	db    *sqlx.DB
	redis *redis.Client
	store closer
}

type closer interface {
	Close() error
}

// LoadCatalog reads and validates the catalog at path.
func LoadCatalog(path string, logger *zap.Logger) (*service.TaskCatalog, error) {
	return service.NewCatalogService(repository.NewCatalogRepository(path), validator.New(), logger).Load()
}

// NewEngine connects to Postgres and the configured store and wires every
// engine component. Close releases the connections.
func NewEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *service.MetricsService) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog, err := LoadCatalog(cfg.Engine.CatalogPath, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{Config: cfg, Logger: logger, Metrics: metrics, Catalog: catalog}

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; results are lost on exit")
		store := repository.NewMemoryStore()
		e.store = store
		e.Cache = service.NewCacheService(store, metrics, logger)
	default:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store := repository.NewRedisStore(client, logger)
		e.redis = client
		e.store = store
		e.Cache = service.NewCacheService(store, metrics, logger)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	e.db = db
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	e.Answers = repository.NewAnswerRepository(db)

	merger := service.NewMergeService(service.MergeServiceParams{
		Resolver:   service.NewSchoolYearResolver(cfg.Engine.SchoolYearStartMonth),
		Precedence: catalog.Precedence(),
		Metrics:    metrics,
		Logger:     logger,
	})
	e.Recompute = service.NewRecomputeService(service.RecomputeServiceParams{
		Answers:    e.Answers,
		Roster:     repository.NewRosterRepository(db),
		Normalizer: service.NewAnswerNormalizer(),
		Merger:     merger,
		Aggregator: service.NewStudentAggregator(catalog, metrics, logger),
		Hierarchy:  service.NewHierarchyService(cfg.Engine.AggregateCompleteThreshold),
		Cache:      e.Cache,
		KeyPrefix:  cfg.Store.KeyPrefix,
		Workers:    cfg.Engine.Workers,
		FetchRate:  cfg.Engine.SourceFetchRate,
		FetchBurst: cfg.Engine.SourceFetchBurst,
		Metrics:    metrics,
		Logger:     logger,
	})
	e.Conflicts = service.NewConflictReportService(e.Cache, cfg.Store.KeyPrefix)
	return e, nil
}

// PingDatabase reports whether Postgres answers.
func (e *Engine) PingDatabase(ctx context.Context) error {
	if e.db == nil {
		return errors.New("database not connected")
	}
	return e.db.PingContext(ctx)
}

// PingStore reports whether the key-value store answers. The memory store always does.
func (e *Engine) PingStore(ctx context.Context) error {
	if e.redis == nil {
		return nil
	}
	return e.redis.Ping(ctx).Err()
}

// Close releases the store and database connections.
func (e *Engine) Close() error {
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	if e.db != nil {
		errs = append(errs, e.db.Close())
	}
	return errors.Join(errs...)
}
