package domain

// Answer is a generated response grounded in the retrieved firm records.
// Degraded marks answers assembled locally after a generation failure.
type Answer struct {
	Text     string           `json:"answer"`
	Sources  []AggregatedFirm `json:"sources"`
	Search   SearchResult     `json:"-"`
	Degraded bool             `json:"degraded,omitempty"`
}

type StreamEventType string

const (
	EventConnected StreamEventType = "connected"
	EventToken     StreamEventType = "token"
	EventComplete  StreamEventType = "complete"
)

// StreamEvent is one element of the incremental answer sequence. Heartbeat
// tokens carry no content and exist only to keep intermediaries from timing
// out an idle connection.
type StreamEvent struct {
	Type      StreamEventType
	Content   string
	Heartbeat bool
	Answer    *Answer
}
