package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
)

// ReindexUseCase rebuilds a firm's narrative and its embedding. The worker
// consumes jobs from the queue and calls ProcessCRD; Enqueue and EnqueueAll
// are the producer side used by ingest and the admin endpoint.
type ReindexUseCase struct {
	firms      ports.FirmRepository
	narratives ports.NarrativeRepository
	embedder   ports.Embedder
	index      ports.NarrativeIndex
	queue      ports.ReindexQueue
	log        *slog.Logger
}

func NewReindexUseCase(
	firms ports.FirmRepository,
	narratives ports.NarrativeRepository,
	embedder ports.Embedder,
	index ports.NarrativeIndex,
	queue ports.ReindexQueue,
	log *slog.Logger,
) *ReindexUseCase {
	return &ReindexUseCase{
		firms:      firms,
		narratives: narratives,
		embedder:   embedder,
		index:      index,
		queue:      queue,
		log:        log,
	}
}

// ProcessCRD regenerates one firm's narrative, embeds it, and writes both the
// vector index entry and the persisted narrative text.
func (uc *ReindexUseCase) ProcessCRD(ctx context.Context, crd int64) error {
	firm, err := uc.firms.FirmByCRD(ctx, crd)
	if err != nil {
		return fmt.Errorf("load firm %d: %w", crd, err)
	}

	text := buildNarrative(firm)
	vectors, err := uc.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed narrative for crd=%d: %w", crd, err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embed narrative for crd=%d: got %d vectors", crd, len(vectors))
	}

	if err := uc.index.IndexNarrative(ctx, domain.Narrative{
		CRD:       firm.CRD,
		LegalName: firm.LegalName,
		State:     firm.State,
		Text:      text,
		Vector:    vectors[0],
	}); err != nil {
		return fmt.Errorf("index narrative for crd=%d: %w", crd, err)
	}

	if err := uc.narratives.UpsertNarrative(ctx, firm.CRD, text); err != nil {
		return fmt.Errorf("persist narrative for crd=%d: %w", crd, err)
	}

	uc.log.Info("narrative reindexed", "crd", firm.CRD, "chars", len(text))
	return nil
}

// Enqueue publishes one job per CRD and reports how many made it onto the
// queue before the first failure.
func (uc *ReindexUseCase) Enqueue(ctx context.Context, crds []int64) (int, error) {
	for i, crd := range crds {
		if err := uc.queue.PublishReindex(ctx, domain.ReindexJob{CRD: crd}); err != nil {
			return i, fmt.Errorf("enqueue reindex crd=%d: %w", crd, err)
		}
	}
	return len(crds), nil
}

func (uc *ReindexUseCase) EnqueueAll(ctx context.Context) (int, error) {
	crds, err := uc.firms.ListCRDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list firm crds: %w", err)
	}
	return uc.Enqueue(ctx, crds)
}

// buildNarrative renders the profile sentence the embeddings are built from.
// The shape is deliberately stable: changing it means every firm needs a
// reindex before search quality recovers.
func buildNarrative(firm *domain.FirmRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a registered investment adviser", firm.LegalName)
	if firm.City != "" || firm.State != "" {
		fmt.Fprintf(&b, " located in %s", joinLocation(firm.City, firm.State))
	}
	fmt.Fprintf(&b, " with CRD number %d", firm.CRD)
	if firm.AUM > 0 {
		fmt.Fprintf(&b, ", managing %s in assets", formatAUM(firm.AUM))
	}
	if firm.PrivateFundCount > 0 {
		fmt.Fprintf(&b, ", advising %d private funds", firm.PrivateFundCount)
		if firm.PrivateFundAUM > 0 {
			fmt.Fprintf(&b, " totaling %s", formatAUM(firm.PrivateFundAUM))
		}
	}
	if firm.Services != "" {
		fmt.Fprintf(&b, ", offering services including %s", strings.ToLower(firm.Services))
	}
	b.WriteString(".")
	return b.String()
}
