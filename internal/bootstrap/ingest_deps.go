// Package bootstrap wires configuration, adapters, and services into
// a runnable pipeline.
package bootstrap

import (
	"context"

	"ingest_server/adapter/out/auth"
	"ingest_server/adapter/out/persistence"
	"ingest_server/adapter/out/provider"
	"ingest_server/adapter/out/storage"
	"ingest_server/adapter/out/trigger"
	"ingest_server/adapter/out/vector"
	"ingest_server/config"
	"ingest_server/core/port/out"
	"ingest_server/core/service/extraction"
	"ingest_server/core/service/indexing"
	"ingest_server/core/service/ingestion"
	"ingest_server/core/service/jobs"
	"ingest_server/infra/database"
	"ingest_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

// Dependencies holds every wired component of the pipeline.
type Dependencies struct {
	Config *config.Config
	Log    *logger.Logger

	SQLDB    *sqlx.DB
	VectorDB *pgxpool.Pool

	// Outbound adapters
	JobRepo   out.JobRepository
	Discovery out.EmailDiscovery
	Registry  out.AttachmentRegistry
	Store     out.ObjectStore
	Tokens    out.TokenExchanger
	Trigger   out.OrchestratorTrigger

	// Services
	JobService   *jobs.JobService
	Orchestrator *ingestion.Orchestrator
	Extractor    *extraction.Extractor
	Indexer      *indexing.Indexer
}

// NewDependencies connects every backend and builds the service
// graph. The returned cleanup closes the database handles.
func NewDependencies(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Dependencies, func(), error) {
	retry := &database.RetryConfig{Attempts: cfg.DBConnectAttempts, DelaySec: cfg.DBConnectDelaySec}

	sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL, retry, log)
	if err != nil {
		return nil, nil, err
	}

	vectorDB, err := database.NewPostgres(ctx, cfg.VectorDatabaseURL, retry, log)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	cleanup := func() {
		vectorDB.Close()
		sqlDB.Close()
	}

	store, err := storage.NewS3Adapter(ctx, cfg.S3Bucket, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	jobRepo := persistence.NewJobAdapter(sqlDB, log)
	discovery := persistence.NewDiscoveryAdapter(sqlDB, log)
	registry := persistence.NewAttachmentAdapter(sqlDB, log)
	tokens := auth.NewTokenAdapter(cfg.TokenEndpoint, log)
	triggerAdapter := trigger.NewTriggerAdapter(cfg.TriggerURL, cfg.TriggerUsername, cfg.TriggerPassword, log)

	sources := func(ctx context.Context, accessToken string) (out.AttachmentSource, error) {
		return provider.NewAttachmentSource(ctx, cfg, accessToken, log)
	}

	preprocessor, err := indexing.NewPreprocessor(cfg.MaxTokens, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	embedder := vector.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	vectorIndex := vector.NewPGVectorAdapter(vectorDB, cfg.EmbeddingDim, cfg.IndexLists, log)

	return &Dependencies{
		Config:    cfg,
		Log:       log,
		SQLDB:     sqlDB,
		VectorDB:  vectorDB,
		JobRepo:   jobRepo,
		Discovery: discovery,
		Registry:  registry,
		Store:     store,
		Tokens:    tokens,
		Trigger:   triggerAdapter,

		JobService: jobs.NewJobService(jobRepo, triggerAdapter, log),
		Orchestrator: ingestion.NewOrchestrator(
			discovery, store, registry, sources,
			cfg.WorkerCount, cfg.WorkerChanSize, log),
		Extractor: extraction.NewExtractor(cfg.DownloadDir, cfg.WorkerCount, log),
		Indexer: indexing.NewIndexer(
			preprocessor, embedder, vectorIndex,
			cfg.CollectionAtToken, cfg.CollectionDotToken, log),
	}, cleanup, nil
}
