package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
)

type RetrieveUseCase struct {
	firms       ports.FirmRepository
	embedder    ports.Embedder
	index       ports.NarrativeIndex
	vectorLimit int
	overFetch   int
	log         *slog.Logger
}

func NewRetrieveUseCase(
	firms ports.FirmRepository,
	embedder ports.Embedder,
	index ports.NarrativeIndex,
	vectorLimit int,
	overFetch int,
	log *slog.Logger,
) *RetrieveUseCase {
	if vectorLimit <= 0 {
		vectorLimit = 50
	}
	if overFetch <= 0 {
		overFetch = 5
	}
	return &RetrieveUseCase{
		firms:       firms,
		embedder:    embedder,
		index:       index,
		vectorLimit: vectorLimit,
		overFetch:   overFetch,
		log:         log,
	}
}

// retrievalOutcome carries raw rows plus how they were obtained.
type retrievalOutcome struct {
	rows       []domain.FirmRow
	relaxation domain.RelaxationLevel
	region     string
	order      domain.Superlative
}

// Retrieve resolves a plan into raw firm rows. The structured and vector legs
// run concurrently; structured intent is authoritative when both exist. Only
// an error on the primary structured query is fatal; every relaxation rung
// and the whole vector leg swallow failures.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, plan domain.QueryPlan) (retrievalOutcome, error) {
	outcome := retrievalOutcome{order: detectSuperlative(plan.SemanticQuery)}

	var loc domain.Location
	if plan.Filters.Location != nil {
		loc = normalizeLocation(*plan.Filters.Location)
		outcome.region = loc.Region
	}

	vector := uc.startVectorLeg(ctx, plan.SemanticQuery)

	fetchLimit := plan.Limit * uc.overFetch
	base := domain.FirmQuery{
		StateVariants: loc.StateVariants,
		CityVariants:  loc.CityVariants,
		MinAUM:        plan.Filters.MinAUM,
		MaxAUM:        plan.Filters.MaxAUM,
		Services:      plan.Filters.Services,
		Order:         outcome.order,
		Limit:         fetchLimit,
	}

	structured := !plan.Filters.Empty()
	if structured {
		rows, err := uc.firms.FilterFirms(ctx, base)
		if err != nil {
			return outcome, fmt.Errorf("filter firms: %w", err)
		}
		source := domain.SourceFiltersOnly
		if plan.SemanticQuery != "" {
			source = domain.SourceVectorAndFilters
		}
		tagRows(rows, source)
		outcome.rows = rows
	} else {
		leg := vector.wait()
		q := domain.FirmQuery{Order: outcome.order, Limit: fetchLimit}
		source := domain.SourceFiltersOnly
		if leg.searched {
			if len(leg.crds) == 0 {
				return outcome, nil
			}
			q.CRDs = leg.crds
			source = domain.SourceVectorOnly
		}
		rows, err := uc.firms.FilterFirms(ctx, q)
		if err != nil {
			return outcome, fmt.Errorf("filter firms: %w", err)
		}
		tagRows(rows, source)
		outcome.rows = rows
		return outcome, nil
	}

	if len(outcome.rows) > 0 {
		return outcome, nil
	}

	// relaxation rung a: drop the city filter, keep everything else
	if len(base.CityVariants) > 0 && len(base.StateVariants) > 0 {
		relaxed := base
		relaxed.CityVariants = nil
		rows, err := uc.firms.FilterFirms(ctx, relaxed)
		if err != nil {
			uc.log.Warn("state-only relaxation failed", "error", err)
		} else if len(rows) > 0 {
			tagRows(rows, domain.SourceFiltersOnly)
			outcome.rows = rows
			outcome.relaxation = domain.RelaxationStateOnly
			outcome.region = loc.State
			return outcome, nil
		}
	}

	// relaxation rung b: pure vector candidates, no structured filters
	if leg := vector.wait(); len(leg.crds) > 0 {
		rows, err := uc.firms.FilterFirms(ctx, domain.FirmQuery{
			CRDs:  leg.crds,
			Order: outcome.order,
			Limit: fetchLimit,
		})
		if err != nil {
			uc.log.Warn("vector-only relaxation failed", "error", err)
		} else if len(rows) > 0 {
			tagRows(rows, domain.SourceVectorOnly)
			outcome.rows = rows
			outcome.relaxation = domain.RelaxationVectorOnly
			return outcome, nil
		}
	}

	// an empty set is a correct answer, not a failure
	outcome.relaxation = domain.RelaxationNone
	return outcome, nil
}

type vectorLeg struct {
	ch     chan vectorResult
	done   bool
	result vectorResult
}

type vectorResult struct {
	crds     []int64
	searched bool
}

// startVectorLeg embeds the semantic query and searches the narrative index
// concurrently with the structured leg. Failures degrade to an absent result.
func (uc *RetrieveUseCase) startVectorLeg(ctx context.Context, semanticQuery string) *vectorLeg {
	leg := &vectorLeg{}
	if semanticQuery == "" {
		leg.done = true
		return leg
	}

	leg.ch = make(chan vectorResult, 1)
	go func() {
		queryVector, err := uc.embedder.EmbedQuery(ctx, semanticQuery)
		if err != nil {
			uc.log.Warn("embed query failed", "error", err)
			leg.ch <- vectorResult{}
			return
		}
		hits, err := uc.index.Search(ctx, queryVector, uc.vectorLimit)
		if err != nil {
			uc.log.Warn("vector search failed", "error", err)
			leg.ch <- vectorResult{}
			return
		}
		crds := make([]int64, 0, len(hits))
		for _, hit := range hits {
			crds = append(crds, hit.CRD)
		}
		leg.ch <- vectorResult{crds: crds, searched: true}
	}()
	return leg
}

func (l *vectorLeg) wait() vectorResult {
	if !l.done {
		l.result = <-l.ch
		l.done = true
	}
	return l.result
}

func tagRows(rows []domain.FirmRow, source domain.MatchSource) {
	for i := range rows {
		rows[i].Source = source
	}
}

func detectSuperlative(text string) domain.Superlative {
	if strings.Contains(strings.ToLower(text), "smallest") {
		return domain.SuperlativeSmallest
	}
	return domain.SuperlativeLargest
}
