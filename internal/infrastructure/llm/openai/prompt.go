package openai

import (
	"fmt"
	"strings"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

const decompositionInstruction = `You decompose questions about Registered Investment Advisers into a search plan.
Return a strict JSON object with exactly two keys:
semantic_query (string): the question rephrased for semantic search over firm profiles.
structured_filters (object): {"location": string or null, "min_aum": number or null, "max_aum": number or null, "services": array of strings or null}.
AUM values are whole US dollars. Location is "City, ST" or a bare state.
No markdown, no extra keys, no commentary.`

const answerInstruction = `You answer questions about Registered Investment Advisers using only the firm records provided.
Cite firms by name. If the records do not support an answer, say so directly. Keep the answer concise.`

func buildAnswerPrompt(question string, sources []domain.AggregatedFirm) string {
	var contextBuilder strings.Builder
	for idx, firm := range sources {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] %s | %s, %s | AUM %s | private funds: %d (%s) | records merged: %d\n",
			idx+1,
			firm.Name,
			firm.City,
			firm.State,
			formatUSD(firm.TotalAUM),
			firm.PrivateFundCount,
			formatUSD(firm.PrivateFundAUM),
			firm.GroupSize,
		))
	}

	return fmt.Sprintf(`Question:
%s

Firm records:
%s`, question, contextBuilder.String())
}

// formatUSD renders a dollar amount the way the firm narratives do:
// billions and millions to one decimal, smaller values in full.
func formatUSD(amount int64) string {
	switch {
	case amount >= 1_000_000_000:
		return fmt.Sprintf("$%.1f billion", float64(amount)/1e9)
	case amount >= 1_000_000:
		return fmt.Sprintf("$%.1f million", float64(amount)/1e6)
	default:
		return fmt.Sprintf("$%d", amount)
	}
}
