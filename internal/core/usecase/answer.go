package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
)

type AnswerUseCase struct {
	search    *SearchUseCase
	generator ports.AnswerGenerator
	log       *slog.Logger
}

func NewAnswerUseCase(search *SearchUseCase, generator ports.AnswerGenerator, log *slog.Logger) *AnswerUseCase {
	return &AnswerUseCase{
		search:    search,
		generator: generator,
		log:       log,
	}
}

// Answer runs the full pipeline and narrates the result. A failed search is
// fatal, a failed generation is not: the retrieved firms still exist, so we
// fall back to a locally assembled summary and mark the answer degraded.
func (uc *AnswerUseCase) Answer(ctx context.Context, question string, overrides *domain.StructuredFilters) (*domain.Answer, error) {
	result, err := uc.search.Search(ctx, question, overrides)
	if err != nil {
		return nil, err
	}

	if len(result.Firms) == 0 {
		return &domain.Answer{
			Text:    noMatchText(result.ResolvedRegion),
			Sources: []domain.AggregatedFirm{},
			Search:  *result,
		}, nil
	}

	text, err := uc.generator.GenerateAnswer(ctx, question, result.Firms)
	if err != nil {
		uc.log.Warn("answer generation failed, degrading", "error", err)
		return &domain.Answer{
			Text:     fallbackAnswer(result),
			Sources:  result.Firms,
			Search:   *result,
			Degraded: true,
		}, nil
	}

	return &domain.Answer{
		Text:    text,
		Sources: result.Firms,
		Search:  *result,
	}, nil
}

func noMatchText(region string) string {
	if region != "" {
		return fmt.Sprintf("No registered investment advisers matched your criteria in %s. Try broadening the location or loosening the AUM range.", region)
	}
	return "No registered investment advisers matched your criteria. Try rephrasing the question or loosening the filters."
}

// fallbackAnswer renders the retrieved firms without the LLM. Plain and
// listy, but grounded in the same records a generated answer would cite.
func fallbackAnswer(result *domain.SearchResult) string {
	var b strings.Builder
	if result.ResolvedRegion != "" {
		fmt.Fprintf(&b, "Here are registered investment advisers in %s:\n", result.ResolvedRegion)
	} else {
		b.WriteString("Here are the registered investment advisers that matched:\n")
	}
	for i, firm := range result.Firms {
		fmt.Fprintf(&b, "%d. %s", i+1, firm.Name)
		if firm.City != "" || firm.State != "" {
			fmt.Fprintf(&b, " (%s)", joinLocation(firm.City, firm.State))
		}
		if firm.TotalAUM > 0 {
			fmt.Fprintf(&b, " managing %s in assets", formatAUM(firm.TotalAUM))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinLocation(city, state string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}

// formatAUM renders dollar amounts the way the narratives do.
func formatAUM(aum int64) string {
	switch {
	case aum >= 1_000_000_000:
		return fmt.Sprintf("$%.1f billion", float64(aum)/1e9)
	case aum >= 1_000_000:
		return fmt.Sprintf("$%.1f million", float64(aum)/1e6)
	default:
		return fmt.Sprintf("$%d", aum)
	}
}
