// Package app wires configuration into the services shared by the API server
// and the reconcile CLI.
package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/catalogsync/internal/api/handler"
	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/queue"
	"github.com/timmy/catalogsync/internal/repository"
	"github.com/timmy/catalogsync/internal/service"
	"github.com/timmy/catalogsync/internal/source/tmdb"
	"github.com/timmy/catalogsync/internal/storage"
)

// App holds every long-lived component built from one Config.
type App struct {
	Config *config.Config
	DB     *gorm.DB

	Records  *repository.CatalogRepository
	Metadata *queue.Store
	Rehost   *queue.Store

	Reconciler  *service.Reconciler
	Maintenance *service.Maintenance
	Sync        *service.SyncWorker
	// RehostWorker is nil when durable storage or the transfer worker is not configured.
	RehostWorker *service.RehostWorker
}

// New opens the database and builds the pipelines.
// Parameters:
//   - ctx: used for the storage bucket check.
//   - cfg: validated configuration.
// Returns:
//   - *App: wired components.
//   - error: non-nil when the database or the metadata catalog cannot be set up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	catalog, err := tmdb.New(tmdb.Config{
		APIKey:    cfg.TMDB.APIKey,
		BaseURL:   cfg.TMDB.BaseURL,
		Language:  cfg.TMDB.Language,
		Timeout:   cfg.TMDB.Timeout,
		RateLimit: cfg.TMDB.RateLimit,
		RateBurst: cfg.TMDB.RateBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("init tmdb client: %w", err)
	}

	policy := queue.PolicyFromConfig(cfg.Queue)
	a := &App{
		Config:   cfg,
		DB:       db,
		Records:  repository.NewCatalogRepository(db),
		Metadata: queue.NewStore(db, domain.QueueMetadataSync, policy),
		Rehost:   queue.NewStore(db, domain.QueueAssetRehost, policy),
	}

	a.Reconciler = service.NewReconciler(a.Records, catalog, cfg.Matcher.FetchTrailers)
	matcher := service.NewMatcher(catalog, cfg.Matcher)
	a.Sync = service.NewSyncWorker(a.Metadata, a.Records, matcher, a.Reconciler, cfg.Queue.JobTimeout)

	a.RehostWorker = buildRehostWorker(ctx, cfg, a)
	durableHost := cfg.Rehost.DurableHost
	if a.RehostWorker != nil {
		durableHost = a.RehostWorker.DurableHost()
	}
	a.Maintenance = service.NewMaintenance(a.Records, a.Metadata, a.Rehost, durableHost)
	return a, nil
}

func buildRehostWorker(ctx context.Context, cfg *config.Config, a *App) *service.RehostWorker {
	if cfg.Storage.Endpoint == "" || cfg.Rehost.TransferURL == "" {
		logger.CtxWarn(ctx, "Asset rehosting disabled: storage endpoint or transfer URL not configured")
		return nil
	}
	store, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.CtxWarn(ctx, "Asset rehosting disabled: storage init failed: %v", err)
		return nil
	}
	if err := store.CheckBucket(ctx); err != nil {
		logger.CtxWarn(ctx, "Storage bucket check failed, continuing: %v", err)
	}
	transfer, err := service.NewTransferClient(cfg.Rehost)
	if err != nil {
		logger.CtxWarn(ctx, "Asset rehosting disabled: %v", err)
		return nil
	}
	return service.NewRehostWorker(
		a.Rehost,
		a.Records,
		service.NewSourceResolver(cfg.Rehost),
		transfer,
		store,
		cfg.Rehost.DurableHost,
		cfg.Queue.JobTimeout,
	)
}

// Queue returns the store for a pipeline name.
func (a *App) Queue(name domain.QueueName) (*queue.Store, error) {
	switch name {
	case domain.QueueMetadataSync:
		return a.Metadata, nil
	case domain.QueueAssetRehost:
		return a.Rehost, nil
	default:
		return nil, fmt.Errorf("unknown pipeline %q", name)
	}
}

// HandlerDeps adapts the components for the HTTP handlers.
func (a *App) HandlerDeps() handler.Deps {
	return handler.Deps{
		Queues: map[domain.QueueName]handler.JobQueue{
			domain.QueueMetadataSync: a.Metadata,
			domain.QueueAssetRehost:  a.Rehost,
		},
		Maintenance: a.Maintenance,
		Sync:        a.Sync,
		Rehost:      a.RehostWorker,
		Reconciler:  a.Reconciler,
		Records:     a.Records,
		BatchSize:   a.Config.Queue.BatchSize,
	}
}

// Close releases the database connection pool.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
