package domain

type RelaxationLevel string

const (
	RelaxationNone       RelaxationLevel = ""
	RelaxationStateOnly  RelaxationLevel = "state-only"
	RelaxationVectorOnly RelaxationLevel = "vector-only"
)

type Superlative string

const (
	SuperlativeLargest  Superlative = "largest"
	SuperlativeSmallest Superlative = "smallest"
)

// StructuredFilters are the optional literal constraints extracted from a
// question. Nil means the field was not requested.
type StructuredFilters struct {
	Location *string  `json:"location,omitempty"`
	MinAUM   *int64   `json:"min_aum,omitempty"`
	MaxAUM   *int64   `json:"max_aum,omitempty"`
	Services []string `json:"services,omitempty"`
}

func (f StructuredFilters) Empty() bool {
	return f.Location == nil && f.MinAUM == nil && f.MaxAUM == nil && len(f.Services) == 0
}

// QueryPlan is the decomposed form of a free-text question. It is built once
// per request and read-only afterwards.
type QueryPlan struct {
	SemanticQuery string            `json:"semantic_query"`
	Filters       StructuredFilters `json:"structured_filters"`
	Limit         int               `json:"limit,omitempty"`
	Fallback      bool              `json:"fallback,omitempty"`
}

// Location is the expanded variant set for a city and/or state filter.
// Variants are upper-cased match forms in deterministic order.
type Location struct {
	City          string
	State         string
	Region        string
	CityVariants  []string
	StateVariants []string
}

// FirmQuery is the literal filter set handed to the structured store. Variant
// slices use OR semantics within a field; a non-empty CRD set restricts the
// result to those identifiers.
type FirmQuery struct {
	StateVariants []string
	CityVariants  []string
	MinAUM        *int64
	MaxAUM        *int64
	Services      []string
	CRDs          []int64
	Order         Superlative
	Limit         int
}

// SearchResult is the retrieval outcome for one request, including how far
// the relaxation ladder had to go to produce it.
type SearchResult struct {
	Firms          []AggregatedFirm `json:"results"`
	Total          int              `json:"total"`
	Relaxation     RelaxationLevel  `json:"relaxation_level,omitempty"`
	ResolvedRegion string           `json:"resolved_region,omitempty"`
	Plan           QueryPlan        `json:"decomposition"`
}

func (r SearchResult) Relaxed() bool {
	return r.Relaxation != RelaxationNone
}
