package ports

import (
	"context"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

// FirmRepository reads and writes ria_profiles rows.
type FirmRepository interface {
	FilterFirms(ctx context.Context, q domain.FirmQuery) ([]domain.FirmRow, error)
	FirmByCRD(ctx context.Context, crd int64) (*domain.FirmRow, error)
	UpsertProfile(ctx context.Context, row *domain.FirmRow) error
	ListCRDs(ctx context.Context) ([]int64, error)
}

// NarrativeRepository persists generated firm narratives.
type NarrativeRepository interface {
	UpsertNarrative(ctx context.Context, crd int64, text string) error
	NarrativesByCRD(ctx context.Context, crds []int64) (map[int64]string, error)
}

// AccountStore reads subscription and share-bonus state for a caller.
type AccountStore interface {
	Account(ctx context.Context, userID string) (*domain.Account, error)
}

// UsageStore maintains monthly request counters for authenticated callers.
type UsageStore interface {
	MonthlyUsage(ctx context.Context, userID, period string) (int64, error)
	IncrementMonthly(ctx context.Context, userID, period string) (int64, error)
}

// QueryPlanner decomposes a free-text question into a structured plan.
type QueryPlanner interface {
	PlanQuery(ctx context.Context, question string) (domain.QueryPlan, error)
}

// Embedder builds vectors for narratives and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NarrativeIndex stores narrative vectors and performs semantic search.
type NarrativeIndex interface {
	IndexNarrative(ctx context.Context, n domain.Narrative) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.NarrativeHit, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, sources []domain.AggregatedFirm) (string, error)
	StreamAnswer(ctx context.Context, question string, sources []domain.AggregatedFirm, emit func(token string) error) error
}

// ReindexQueue publishes/consumes narrative rebuild jobs.
type ReindexQueue interface {
	PublishReindex(ctx context.Context, job domain.ReindexJob) error
	SubscribeReindex(ctx context.Context, handler func(context.Context, domain.ReindexJob) error) error
}
