package ports

import (
	"context"
	"io"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

// FirmSearchService is the inbound contract for structured+semantic search.
type FirmSearchService interface {
	Search(ctx context.Context, question string, overrides *domain.StructuredFilters) (*domain.SearchResult, error)
}

// AnswerService is the inbound contract for synchronous answer generation.
type AnswerService interface {
	Answer(ctx context.Context, question string, overrides *domain.StructuredFilters) (*domain.Answer, error)
}

// StreamService is the inbound contract for incremental answer delivery. The
// returned channel always terminates with a complete event and is closed by
// the producer.
type StreamService interface {
	Stream(ctx context.Context, question string, overrides *domain.StructuredFilters) <-chan domain.StreamEvent
}

// QuotaService decides whether a caller may proceed and records consumption.
type QuotaService interface {
	CheckUser(ctx context.Context, userID string) domain.QuotaDecision
	CheckAnonymous(count int64) domain.QuotaDecision
	ChargeUser(ctx context.Context, userID string) error
}

// ReindexService rebuilds firm narratives, directly or via the queue.
type ReindexService interface {
	ProcessCRD(ctx context.Context, crd int64) error
	Enqueue(ctx context.Context, crds []int64) (int, error)
	EnqueueAll(ctx context.Context) (int, error)
}

// ProfileIngestor is the inbound contract for bulk profile loading.
type ProfileIngestor interface {
	LoadProfiles(ctx context.Context, r io.Reader) (*domain.IngestReport, error)
}
