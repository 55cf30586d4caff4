package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
)

const maxResultLimit = 100

type DecomposeUseCase struct {
	planner      ports.QueryPlanner
	defaultLimit int
	log          *slog.Logger
}

func NewDecomposeUseCase(planner ports.QueryPlanner, defaultLimit int, log *slog.Logger) *DecomposeUseCase {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &DecomposeUseCase{
		planner:      planner,
		defaultLimit: defaultLimit,
		log:          log,
	}
}

// Decompose turns a free-text question into a QueryPlan. The LLM gets two
// attempts with the same prompt; after that the deterministic heuristic
// parser takes over. Decompose never fails: worst case the plan carries the
// raw question as its semantic query.
func (uc *DecomposeUseCase) Decompose(ctx context.Context, question string) domain.QueryPlan {
	question = strings.TrimSpace(question)

	for attempt := 1; attempt <= 2; attempt++ {
		plan, err := uc.planner.PlanQuery(ctx, question)
		if err == nil {
			return uc.finishPlan(question, plan)
		}
		uc.log.Warn("query decomposition attempt failed",
			"attempt", attempt,
			"error", err,
		)
	}

	uc.log.Info("falling back to heuristic decomposition")
	return uc.finishPlan(question, heuristicPlan(question))
}

// finishPlan validates shape once so downstream components never re-check it.
func (uc *DecomposeUseCase) finishPlan(question string, plan domain.QueryPlan) domain.QueryPlan {
	plan.SemanticQuery = strings.TrimSpace(plan.SemanticQuery)
	if plan.SemanticQuery == "" {
		plan.SemanticQuery = question
	}

	if n, ok := parseTopN(question); ok {
		plan.Limit = n
	}
	if plan.Limit <= 0 {
		plan.Limit = uc.defaultLimit
	}
	if plan.Limit > maxResultLimit {
		plan.Limit = maxResultLimit
	}

	plan.Filters = sanitizeFilters(plan.Filters)
	return plan
}

func sanitizeFilters(f domain.StructuredFilters) domain.StructuredFilters {
	if f.Location != nil {
		trimmed := collapseSpaces(*f.Location)
		if trimmed == "" {
			f.Location = nil
		} else {
			f.Location = &trimmed
		}
	}
	if f.MinAUM != nil && *f.MinAUM <= 0 {
		f.MinAUM = nil
	}
	if f.MaxAUM != nil && *f.MaxAUM <= 0 {
		f.MaxAUM = nil
	}
	if f.MinAUM != nil && f.MaxAUM != nil && *f.MinAUM > *f.MaxAUM {
		f.MinAUM, f.MaxAUM = f.MaxAUM, f.MinAUM
	}

	services := f.Services[:0]
	for _, s := range f.Services {
		s = collapseSpaces(s)
		if s != "" {
			services = append(services, strings.ToLower(s))
		}
	}
	if len(services) == 0 {
		f.Services = nil
	} else {
		f.Services = services
	}
	return f
}

// heuristicPlan is the deterministic fallback decomposer. It only relies on
// regexes and fixed vocabularies, so it cannot fail.
func heuristicPlan(question string) domain.QueryPlan {
	plan := domain.QueryPlan{
		SemanticQuery: question,
		Fallback:      true,
	}

	if loc := detectLocation(question); loc != "" {
		plan.Filters.Location = &loc
	}

	minAUM, maxAUM := parseAUMBounds(question)
	plan.Filters.MinAUM = minAUM
	plan.Filters.MaxAUM = maxAUM

	if mentionsPrivatePlacements(question) {
		plan.Filters.Services = []string{"private placements"}
	}
	return plan
}

var (
	topNPattern    = regexp.MustCompile(`(?i)\btop\s+(\d{1,3})\b`)
	leadingNNouns  = regexp.MustCompile(`(?i)\b(\d{1,3})\s+(?:largest|biggest|smallest|top)\b`)
	aumWithDollar  = regexp.MustCompile(`(?i)(over|above|more than|at least|greater than|under|below|less than|at most)?\s*\$\s*(\d[\d,]*(?:\.\d+)?)\s*(thousand|trillion|million|billion|mm|bn|tn|k|m|b|t)?\b`)
	aumWithSuffix  = regexp.MustCompile(`(?i)\b(over|above|more than|at least|greater than|under|below|less than|at most)\s+(\d[\d,]*(?:\.\d+)?)\s+(thousand|million|billion|trillion)\b`)
	wordLikeCode   = regexp.MustCompile(`^[A-Z]{2}$`)
	privatePlacementTerms = []string{
		"private placement", "private fund", "private equity",
		"hedge fund", "alternative investment",
		"506(b)", "506(c)", "reg d", "regulation d",
	}
	// ambiguousStateCodes are codes that double as ordinary English words and
	// are only trusted right after a location preposition.
	ambiguousStateCodes = map[string]struct{}{
		"IN": {}, "OR": {}, "ME": {}, "OK": {}, "HI": {}, "DE": {},
		"LA": {}, "OH": {}, "CO": {}, "AL": {}, "MD": {}, "PA": {},
	}
	locationPrepositions = map[string]struct{}{
		"in": {}, "near": {}, "around": {}, "from": {},
	}
)

func parseTopN(question string) (int, bool) {
	for _, re := range []*regexp.Regexp{topNPattern, leadingNNouns} {
		if m := re.FindStringSubmatch(question); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				if n > maxResultLimit {
					n = maxResultLimit
				}
				return n, true
			}
		}
	}
	return 0, false
}

// detectLocation scans for, in priority order: a known metro surface form, a
// full state name, and finally a bare 2-letter state code. Codes are only
// accepted upper-cased, and ambiguous ones (IN, OR, ...) additionally need a
// preceding preposition so the word "in" never reads as Indiana.
func detectLocation(question string) string {
	upper := strings.ToUpper(question)

	for _, alias := range metroAliasOrder {
		m := metroByAlias[alias]
		for _, phrase := range metroScanPhrases(m) {
			if containsPhrase(upper, phrase) {
				return m.city + ", " + m.state
			}
		}
	}

	for _, name := range stateNamesByLength {
		if containsPhrase(upper, strings.ToUpper(name)) {
			return name
		}
	}

	tokens := strings.Fields(question)
	for i, token := range tokens {
		trimmed := strings.Trim(token, ".,;:!?()")
		if !wordLikeCode.MatchString(trimmed) {
			continue
		}
		if _, ok := stateNames[trimmed]; !ok {
			continue
		}
		if _, ambiguous := ambiguousStateCodes[trimmed]; ambiguous {
			if i == 0 {
				continue
			}
			prev := strings.ToLower(strings.Trim(tokens[i-1], ".,;:!?()"))
			if _, ok := locationPrepositions[prev]; !ok {
				continue
			}
		}
		return trimmed
	}
	return ""
}

func metroScanPhrases(m metro) []string {
	return cityVariants(m.city)
}

// containsPhrase is a word-boundary substring match on upper-cased text.
func containsPhrase(upper, phrase string) bool {
	from := 0
	for {
		idx := strings.Index(upper[from:], phrase)
		if idx < 0 {
			return false
		}
		idx += from
		end := idx + len(phrase)
		beforeOK := idx == 0 || !isWordChar(upper[idx-1])
		afterOK := end == len(upper) || !isWordChar(upper[end])
		if beforeOK && afterOK {
			return true
		}
		from = idx + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

var stateNamesByLength = buildStateNamesByLength()

// longest first so "West Virginia" beats "Virginia".
func buildStateNamesByLength() []string {
	names := make([]string, 0, len(stateNames))
	for _, name := range stateNames {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

func parseAUMBounds(question string) (minAUM, maxAUM *int64) {
	apply := func(direction, amount, suffix string) {
		value, ok := parseAmount(amount, suffix)
		if !ok {
			return
		}
		switch strings.ToLower(direction) {
		case "under", "below", "less than", "at most":
			if maxAUM == nil {
				maxAUM = &value
			}
		default:
			if minAUM == nil {
				minAUM = &value
			}
		}
	}

	for _, m := range aumWithDollar.FindAllStringSubmatch(question, -1) {
		apply(m[1], m[2], m[3])
	}
	for _, m := range aumWithSuffix.FindAllStringSubmatch(question, -1) {
		apply(m[1], m[2], m[3])
	}
	return minAUM, maxAUM
}

func parseAmount(amount, suffix string) (int64, bool) {
	value, err := strconv.ParseFloat(strings.ReplaceAll(amount, ",", ""), 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k", "thousand":
		value *= 1e3
	case "m", "mm", "million":
		value *= 1e6
	case "b", "bn", "billion":
		value *= 1e9
	case "t", "tn", "trillion":
		value *= 1e12
	}
	return int64(value), true
}

func mentionsPrivatePlacements(question string) bool {
	lower := strings.ToLower(question)
	for _, term := range privatePlacementTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
