package httpserver

import (
	"net/http"

	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/recommend"
)

type recommendationsRequest struct {
	UserID      string   `json:"user_id" validate:"max=256"`
	LikedPapers []string `json:"liked_papers" validate:"max=100,dive,required"`
	ReadPapers  []string `json:"read_papers" validate:"max=500,dive,required"`
	Interests   []string `json:"interests" validate:"max=20,dive,required,max=200"`
	Limit       int      `json:"limit" validate:"omitempty,min=1,max=100"`
	Algorithm   string   `json:"algorithm" validate:"omitempty,oneof=content collaborative citation hybrid"`
}

type evaluateRequest struct {
	Recommendations []recommend.Recommendation `json:"recommendations" validate:"required,min=1,max=500"`
	Feedback        []bool                     `json:"feedback" validate:"max=500"`
}

// getRecommendations handles POST /api/v1/recommendations.
func (s *Server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	if req.UserID != "" {
		ctx = observability.WithUserID(ctx, req.UserID)
	}

	resp, err := s.recommender.GetRecommendations(ctx, recommend.Request{
		UserID:      req.UserID,
		LikedPapers: req.LikedPapers,
		ReadPapers:  req.ReadPapers,
		Interests:   req.Interests,
		Limit:       req.Limit,
		Algorithm:   recommend.Algorithm(req.Algorithm),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// evaluateRecommendations handles POST /api/v1/recommendations/evaluate.
func (s *Server) evaluateRecommendations(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	metrics, err := recommend.Evaluate(req.Recommendations, req.Feedback)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}
