package events

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	TypeSearchCompleted          = "search.completed"
	TypeRecommendationsGenerated = "recommendations.generated"
)

// Event is the envelope written to the broker.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Source        string          `json:"source"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// SearchCompleted is the payload of a search.completed event.
type SearchCompleted struct {
	Query         string   `json:"query"`
	Sources       []string `json:"sources"`
	FailedSources []string `json:"failed_sources,omitempty"`
	ResultCount   int      `json:"result_count"`
	Cached        bool     `json:"cached"`
	DurationMS    int64    `json:"duration_ms"`
}

// RecommendationsGenerated is the payload of a recommendations.generated event.
type RecommendationsGenerated struct {
	UserID          string `json:"user_id,omitempty"`
	Algorithm       string `json:"algorithm"`
	Count           int    `json:"count"`
	TotalCandidates int    `json:"total_candidates"`
}
