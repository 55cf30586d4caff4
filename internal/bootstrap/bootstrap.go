package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Turnstyle/ria-hunter-sub009/internal/config"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/usecase"
	"github.com/Turnstyle/ria-hunter-sub009/internal/infrastructure/llm/openai"
	"github.com/Turnstyle/ria-hunter-sub009/internal/infrastructure/queue/nats"
	"github.com/Turnstyle/ria-hunter-sub009/internal/infrastructure/repository/postgres"
	"github.com/Turnstyle/ria-hunter-sub009/internal/infrastructure/resilience"
	redisusage "github.com/Turnstyle/ria-hunter-sub009/internal/infrastructure/usage/redis"
	"github.com/Turnstyle/ria-hunter-sub009/internal/infrastructure/vector/qdrant"
)

// App is the composition root shared by the api, worker and seed binaries.
type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue ports.ReindexQueue

	SearchUC  ports.FirmSearchService
	AnswerUC  ports.AnswerService
	StreamUC  ports.StreamService
	QuotaUC   ports.QuotaService
	ReindexUC ports.ReindexService
	IngestUC  ports.ProfileIngestor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	firmRepo := postgres.NewFirmRepository(db)
	if err := firmRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	narrativeRepo := postgres.NewNarrativeRepository(db)
	accountRepo := postgres.NewAccountRepository(db)

	usageStore, err := redisusage.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init usage store: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = usageStore.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init reindex queue: %w", err)
	}

	llm := openai.New(openai.Options{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		PlanModel:  cfg.OpenAIPlanModel,
		GenModel:   cfg.OpenAIGenModel,
		EmbedModel: cfg.OpenAIEmbedModel,
		Executor:   executor,
	})
	planner := openai.NewPlanner(llm)
	embedder := openai.NewEmbedder(llm)
	generator := openai.NewGenerator(llm)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.VectorScoreThreshold)

	decomposeUC := usecase.NewDecomposeUseCase(planner, cfg.DefaultResultLimit, log)
	retrieveUC := usecase.NewRetrieveUseCase(firmRepo, embedder, index, cfg.VectorSearchLimit, cfg.AggregationOverFetch, log)
	searchUC := usecase.NewSearchUseCase(decomposeUC, retrieveUC, log)

	return &App{
		Config: cfg,
		Log:    log,
		Queue:  queue,

		SearchUC: searchUC,
		AnswerUC: usecase.NewAnswerUseCase(searchUC, generator, log),
		StreamUC: usecase.NewStreamUseCase(searchUC, generator,
			time.Duration(cfg.StreamHeartbeatSeconds)*time.Second, log),
		QuotaUC: usecase.NewQuotaUseCase(accountRepo, usageStore,
			int(cfg.MonthlyFreeLimit), int(cfg.ShareBonusMax), int(cfg.AnonymousLimit), log),
		ReindexUC: usecase.NewReindexUseCase(firmRepo, narrativeRepo, embedder, index, queue, log),
		IngestUC:  usecase.NewProfileIngestUseCase(firmRepo, queue, log),

		closeFn: func() {
			queue.Close()
			_ = usageStore.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
