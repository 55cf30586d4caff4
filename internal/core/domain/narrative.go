package domain

// Narrative is the generated profile text for one firm together with its
// embedding, ready for indexing. LegalName and State ride along as index
// payload so hits stay debuggable without a profile lookup.
type Narrative struct {
	CRD       int64
	LegalName string
	State     string
	Text      string
	Vector    []float32
}

// NarrativeHit is one vector search match.
type NarrativeHit struct {
	CRD   int64   `json:"crd_number"`
	Score float64 `json:"score"`
}

// ReindexJob asks the worker to rebuild one firm's narrative and embedding.
type ReindexJob struct {
	CRD int64 `json:"crd_number"`
}

// IngestReport summarizes one profile load run.
type IngestReport struct {
	Loaded   int `json:"loaded"`
	Skipped  int `json:"skipped"`
	Enqueued int `json:"enqueued"`
}
