// Package recommend produces scored paper recommendations from a user's
// interaction history using content, collaborative, citation or hybrid
// candidate generation over the aggregated search and fetch operations.
package recommend

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/events"
	"github.com/helixir/scholar-aggregator/internal/observability"
)

// Algorithm names a candidate generation strategy.
type Algorithm string

const (
	AlgorithmContent       Algorithm = "content"
	AlgorithmCollaborative Algorithm = "collaborative"
	AlgorithmCitation      Algorithm = "citation"
	AlgorithmHybrid        Algorithm = "hybrid"
)

// Algorithms lists the supported algorithms in hybrid merge order.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmContent, AlgorithmCollaborative, AlgorithmCitation, AlgorithmHybrid}
}

// ParseAlgorithm maps a name to an Algorithm. The empty name is hybrid.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if a == "" {
		return AlgorithmHybrid, nil
	}
	if !slices.Contains(Algorithms(), a) {
		return "", domain.NewValidationError("algorithm",
			fmt.Sprintf("unknown algorithm %q (want content, collaborative, citation or hybrid)", name))
	}
	return a, nil
}

// DefaultLimit applies when a request carries a non-positive limit.
const DefaultLimit = 10

// PaperFinder is the search and fetch surface recommendations are built on.
// *fetcher.Orchestrator satisfies it.
type PaperFinder interface {
	Search(ctx context.Context, query string, sources []string, limit int) ([]*domain.Paper, error)
	Fetch(ctx context.Context, identifier, source string) (*domain.Paper, error)
}

// Recommendation is a candidate paper with its score and provenance.
type Recommendation struct {
	*domain.Paper
	Score         float64   `json:"recommendation_score"`
	Reason        string    `json:"recommendation_reason"`
	Confidence    float64   `json:"recommendation_confidence"`
	Diversity     float64   `json:"diversity_score"`
	RecommendedAt time.Time `json:"recommended_at"`
}

// Request asks for recommendations.
type Request struct {
	UserID      string
	LikedPapers []string
	ReadPapers  []string
	Interests   []string
	Limit       int
	Algorithm   Algorithm
}

// Response carries a recommendation batch and the profile it came from.
type Response struct {
	Recommendations []Recommendation `json:"recommendations"`
	AlgorithmUsed   Algorithm        `json:"algorithm_used"`
	UserProfile     UserProfile      `json:"user_profile"`
	GeneratedAt     time.Time        `json:"generated_at"`
	TotalCandidates int              `json:"total_candidates"`
}

// Config tunes the engine.
type Config struct {
	// ReferenceYear anchors the content recency term when the profile has
	// no temporal preference. Zero means the clock's year.
	ReferenceYear int
	// Now is the engine clock. Defaults to time.Now.
	Now func() time.Time
}

// Engine generates recommendations. It holds no per-user state.
type Engine struct {
	finder  PaperFinder
	cfg     Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	events  *events.Emitter
}

// NewEngine creates an engine. metrics and emitter may be nil.
func NewEngine(finder PaperFinder, cfg Config, logger zerolog.Logger, metrics *observability.Metrics, emitter *events.Emitter) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		finder:  finder,
		cfg:     cfg,
		logger:  observability.ComponentLogger(logger, "recommend"),
		metrics: metrics,
		events:  emitter,
	}
}

// GetRecommendations builds a profile from req and runs the requested
// algorithm. Provider failures shrink the candidate set rather than failing
// the call; only an unknown algorithm or a done context is an error.
func (e *Engine) GetRecommendations(ctx context.Context, req Request) (*Response, error) {
	algorithm, err := ParseAlgorithm(string(req.Algorithm))
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	lookup := newPaperLookup(e.finder)
	profile := BuildProfile(ctx, lookup, req)
	run := &run{engine: e, profile: profile, lookup: lookup}

	var recs []Recommendation
	switch algorithm {
	case AlgorithmContent:
		recs, err = run.content(ctx, limit)
	case AlgorithmCollaborative:
		recs, err = run.collaborative(ctx, limit)
	case AlgorithmCitation:
		recs, err = run.citation(ctx, limit)
	default:
		recs, err = run.hybrid(ctx, limit)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []Recommendation{}
	}

	now := e.cfg.Now()
	Enrich(recs, now)

	e.metrics.RecordRecommendations(string(algorithm))
	l := observability.WithRecommendationContext(e.logger, req.UserID, string(algorithm))
	l.Info().
		Int("count", len(recs)).
		Int("interests", len(req.Interests)).
		Int("sampled_papers", profile.SampledPapers).
		Msg("recommendations generated")
	e.publishGenerated(ctx, req.UserID, algorithm, len(recs))

	return &Response{
		Recommendations: recs,
		AlgorithmUsed:   algorithm,
		UserProfile:     profile,
		GeneratedAt:     now,
		TotalCandidates: len(recs),
	}, nil
}

func (e *Engine) publishGenerated(ctx context.Context, userID string, algorithm Algorithm, count int) {
	aggregate := userID
	if aggregate == "" {
		aggregate = "anonymous"
	}
	err := e.events.Dispatch(ctx, events.EmitParams{
		AggregateID:   aggregate,
		EventType:     events.TypeRecommendationsGenerated,
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		Payload: events.RecommendationsGenerated{
			UserID:          userID,
			Algorithm:       string(algorithm),
			Count:           count,
			TotalCandidates: count,
		},
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to publish recommendation event")
	}
}

func (e *Engine) referenceYear() int {
	if e.cfg.ReferenceYear != 0 {
		return e.cfg.ReferenceYear
	}
	return e.cfg.Now().Year()
}

// paperLookup memoizes fetches for the lifetime of one request so the
// profile and the algorithms share metadata. Safe for concurrent use.
type paperLookup struct {
	finder PaperFinder

	mu     sync.Mutex
	papers map[string]*domain.Paper
}

func newPaperLookup(finder PaperFinder) *paperLookup {
	return &paperLookup{finder: finder, papers: make(map[string]*domain.Paper)}
}

// get returns the paper for id, or nil when it is absent or the fetch
// failed. Failures are not memoized.
func (l *paperLookup) get(ctx context.Context, id string) (*domain.Paper, error) {
	l.mu.Lock()
	p, ok := l.papers[id]
	l.mu.Unlock()
	if ok {
		return p, nil
	}

	p, err := l.finder.Fetch(ctx, id, "")
	if err != nil {
		return nil, err
	}
	if p != nil {
		l.mu.Lock()
		l.papers[id] = p
		l.mu.Unlock()
	}
	return p, nil
}
