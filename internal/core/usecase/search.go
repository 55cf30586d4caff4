package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

type SearchUseCase struct {
	decomposer *DecomposeUseCase
	retriever  *RetrieveUseCase
	log        *slog.Logger
}

func NewSearchUseCase(decomposer *DecomposeUseCase, retriever *RetrieveUseCase, log *slog.Logger) *SearchUseCase {
	return &SearchUseCase{
		decomposer: decomposer,
		retriever:  retriever,
		log:        log,
	}
}

// Search resolves a free-text question into aggregated firms: decompose,
// retrieve raw rows through the relaxation ladder, merge affiliates, rank and
// truncate to the requested count.
func (uc *SearchUseCase) Search(ctx context.Context, question string, overrides *domain.StructuredFilters) (*domain.SearchResult, error) {
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}

	plan := uc.decomposer.Decompose(ctx, question)
	plan.Filters = applyOverrides(plan.Filters, overrides)

	outcome, err := uc.retriever.Retrieve(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("retrieve firms: %w", err)
	}

	firms := aggregateFirms(outcome.rows)
	rankFirms(firms, outcome.order)
	firms = truncateFirms(firms, plan.Limit)

	uc.log.Info("search completed",
		"raw_rows", len(outcome.rows),
		"firms", len(firms),
		"relaxation", string(outcome.relaxation),
		"fallback_plan", plan.Fallback,
	)

	return &domain.SearchResult{
		Firms:          firms,
		Total:          len(firms),
		Relaxation:     outcome.relaxation,
		ResolvedRegion: outcome.region,
		Plan:           plan,
	}, nil
}

// applyOverrides lets explicit body filters win over the decomposed ones,
// field by field.
func applyOverrides(filters domain.StructuredFilters, overrides *domain.StructuredFilters) domain.StructuredFilters {
	if overrides == nil {
		return filters
	}
	if overrides.Location != nil {
		filters.Location = overrides.Location
	}
	if overrides.MinAUM != nil {
		filters.MinAUM = overrides.MinAUM
	}
	if overrides.MaxAUM != nil {
		filters.MaxAUM = overrides.MaxAUM
	}
	if len(overrides.Services) > 0 {
		filters.Services = overrides.Services
	}
	return sanitizeFilters(filters)
}
