package domain

import "time"

type MatchSource string

const (
	SourceVectorAndFilters MatchSource = "vector+filters"
	SourceFiltersOnly      MatchSource = "filters-only"
	SourceVectorOnly       MatchSource = "vector-only"
)

// FirmRow is one raw ria_profiles record as returned by the structured store.
type FirmRow struct {
	CRD              int64       `json:"crd_number"`
	CIK              *int64      `json:"cik,omitempty"`
	LegalName        string      `json:"legal_name"`
	City             string      `json:"city"`
	State            string      `json:"state"`
	AUM              int64       `json:"aum"`
	PrivateFundCount int         `json:"private_fund_count"`
	PrivateFundAUM   int64       `json:"private_fund_aum"`
	Services         string      `json:"services,omitempty"`
	FilingDate       time.Time   `json:"form_adv_date"`
	Source           MatchSource `json:"match_source"`
}

// AggregatedFirm merges FirmRows that share a normalized legal name.
// AUM and fund metrics are sums across the group, never averages.
type AggregatedFirm struct {
	Name             string      `json:"name"`
	City             string      `json:"city"`
	State            string      `json:"state"`
	TotalAUM         int64       `json:"total_aum"`
	PrivateFundCount int         `json:"private_fund_count"`
	PrivateFundAUM   int64       `json:"private_fund_aum"`
	GroupSize        int         `json:"group_size"`
	CRDNumbers       []int64     `json:"crd_numbers"`
	Source           MatchSource `json:"match_source"`
}
