package usecase

import (
	"sort"
	"strings"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

// entitySuffixes are stripped from the end of a normalized name exactly once.
// Recursive stripping would over-merge unrelated firms sharing a prefix.
var entitySuffixes = map[string]struct{}{
	"INC": {}, "LLC": {}, "LLP": {}, "LP": {}, "CORP": {},
	"CORPORATION": {}, "COMPANY": {}, "CO": {},
}

// normalizeFirmName reduces a legal name to its grouping key: uppercase,
// & -> AND, punctuation stripped, whitespace collapsed, one trailing entity
// suffix removed.
func normalizeFirmName(name string) string {
	n := strings.ToUpper(name)
	n = strings.ReplaceAll(n, "&", " AND ")
	n = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '\'', '’':
			return -1
		}
		return r
	}, n)
	n = collapseSpaces(n)

	if idx := strings.LastIndex(n, " "); idx >= 0 {
		if _, ok := entitySuffixes[n[idx+1:]]; ok {
			n = n[:idx]
		}
	}
	return n
}

type firmGroup struct {
	agg         domain.AggregatedFirm
	cityCounts  map[string]int
	stateCounts map[string]int
	cityOrder   []string
	stateOrder  []string
}

// aggregateFirms merges rows sharing a normalized legal name into one firm
// per group, in first-seen order. Metric fields are summed; the displayed
// name is the longest original spelling; city/state are the group mode with
// ties broken by first appearance.
func aggregateFirms(rows []domain.FirmRow) []domain.AggregatedFirm {
	groups := make(map[string]*firmGroup, len(rows))
	var order []string

	for _, row := range rows {
		key := normalizeFirmName(row.LegalName)
		g, ok := groups[key]
		if !ok {
			g = &firmGroup{
				cityCounts:  make(map[string]int),
				stateCounts: make(map[string]int),
			}
			g.agg.Source = row.Source
			groups[key] = g
			order = append(order, key)
		}

		if len(row.LegalName) > len(g.agg.Name) {
			g.agg.Name = row.LegalName
		}
		g.agg.TotalAUM += row.AUM
		g.agg.PrivateFundCount += row.PrivateFundCount
		g.agg.PrivateFundAUM += row.PrivateFundAUM
		g.agg.GroupSize++
		g.agg.CRDNumbers = append(g.agg.CRDNumbers, row.CRD)

		if _, seen := g.cityCounts[row.City]; !seen {
			g.cityOrder = append(g.cityOrder, row.City)
		}
		g.cityCounts[row.City]++
		if _, seen := g.stateCounts[row.State]; !seen {
			g.stateOrder = append(g.stateOrder, row.State)
		}
		g.stateCounts[row.State]++
	}

	out := make([]domain.AggregatedFirm, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.agg.City = modeValue(g.cityCounts, g.cityOrder)
		g.agg.State = modeValue(g.stateCounts, g.stateOrder)
		out = append(out, g.agg)
	}
	return out
}

// modeValue picks the most frequent value; on a tie the value seen first
// wins.
func modeValue(counts map[string]int, order []string) string {
	best := ""
	bestCount := 0
	for _, v := range order {
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

// rankFirms orders aggregated firms by total AUM, descending for largest
// queries and ascending for smallest. The sort is stable so equal firms keep
// their first-seen order.
func rankFirms(firms []domain.AggregatedFirm, order domain.Superlative) {
	asc := order == domain.SuperlativeSmallest
	sort.SliceStable(firms, func(i, j int) bool {
		if asc {
			return firms[i].TotalAUM < firms[j].TotalAUM
		}
		return firms[i].TotalAUM > firms[j].TotalAUM
	})
}

func truncateFirms(firms []domain.AggregatedFirm, limit int) []domain.AggregatedFirm {
	if limit > 0 && len(firms) > limit {
		return firms[:limit]
	}
	return firms
}
