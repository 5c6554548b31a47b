package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/search"
)

// Validation constants.
const (
	defaultSearchLimit = 10
	maxQueryLength     = 10000
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

type searchParams struct {
	Query   string   `json:"q" validate:"required,max=10000"`
	Sources []string `json:"sources" validate:"max=16,dive,required"`
	Limit   int      `json:"limit" validate:"min=1,max=100"`
}

type batchFetchRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required,max=512"`
}

type parseQueryRequest struct {
	Query string `json:"query" validate:"required,max=10000"`
}

type advancedSearchRequest struct {
	Query          string   `json:"query" validate:"required,max=10000"`
	Sources        []string `json:"sources" validate:"max=16,dive,required"`
	Limit          int      `json:"limit" validate:"omitempty,min=1,max=100"`
	SemanticSearch bool     `json:"semantic_search"`
	RankingMethod  string   `json:"ranking_method" validate:"omitempty,oneof=relevance date citations"`
	DateRangeStart *int     `json:"date_range_start" validate:"omitnil,min=1900,max=2030"`
	DateRangeEnd   *int     `json:"date_range_end" validate:"omitnil,min=1900,max=2030"`
	Authors        []string `json:"authors" validate:"max=50,dive,required"`
	Journals       []string `json:"journals" validate:"max=50,dive,required"`
	MinCitations   *int     `json:"min_citations" validate:"omitnil,min=0"`
	OpenAccessOnly bool     `json:"open_access_only"`
	SourcesFilter  []string `json:"sources_filter" validate:"max=16,dive,required"`
}

// filters converts the flat request fields into search filters. It returns
// nil when no filter field is set.
func (r *advancedSearchRequest) filters() *search.Filters {
	f := &search.Filters{
		Authors:        r.Authors,
		Journals:       r.Journals,
		MinCitations:   r.MinCitations,
		OpenAccessOnly: r.OpenAccessOnly,
		Sources:        r.SourcesFilter,
	}
	if r.DateRangeStart != nil || r.DateRangeEnd != nil {
		f.DateRange = &search.DateRange{Start: r.DateRangeStart, End: r.DateRangeEnd}
	}
	if f.IsZero() {
		return nil
	}
	return f
}

// listSources handles GET /api/v1/sources.
func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources := s.papers.AvailableSources()
	writeJSON(w, http.StatusOK, sourcesResponse{Sources: sources, Count: len(sources)})
}

// searchPapers handles GET /api/v1/search.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := searchParams{
		Query:   strings.TrimSpace(q.Get("q")),
		Sources: splitList(q.Get("sources")),
		Limit:   defaultSearchLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		params.Limit = limit
	}
	if !s.validateRequest(w, &params) {
		return
	}

	papers, err := s.papers.Search(r.Context(), params.Query, params.Sources, params.Limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:   params.Query,
		Sources: params.Sources,
		Papers:  papersOrEmpty(papers),
		Count:   len(papers),
	})
}

// fetchPaper handles GET /api/v1/papers/{id}.
func (s *Server) fetchPaper(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	source := strings.TrimSpace(r.URL.Query().Get("source"))

	paper, err := s.papers.Fetch(r.Context(), id, source)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if paper == nil {
		writeError(w, http.StatusNotFound, "paper not found")
		return
	}

	writeJSON(w, http.StatusOK, paper)
}

// batchFetch handles POST /api/v1/papers/batch.
func (s *Server) batchFetch(w http.ResponseWriter, r *http.Request) {
	var req batchFetchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	papers, err := s.papers.BatchFetch(r.Context(), req.IDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batchFetchResponse{
		Papers:    papersOrEmpty(papers),
		Requested: len(req.IDs),
		Found:     len(papers),
		Missing:   missingIDs(req.IDs, papers),
	})
}

// advancedSearch handles POST /api/v1/search/advanced.
func (s *Server) advancedSearch(w http.ResponseWriter, r *http.Request) {
	var req advancedSearchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if req.DateRangeStart != nil && req.DateRangeEnd != nil && *req.DateRangeStart > *req.DateRangeEnd {
		writeError(w, http.StatusBadRequest, "date_range_start must not be after date_range_end")
		return
	}

	resp, err := s.advanced.AdvancedSearch(r.Context(), search.Request{
		Query:       req.Query,
		Sources:     req.Sources,
		Limit:       req.Limit,
		Filters:     req.filters(),
		Semantic:    req.SemanticSearch,
		RankingMode: search.RankingMode(req.RankingMethod),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseQuery handles POST /api/v1/search/parse.
func (s *Server) parseQuery(w http.ResponseWriter, r *http.Request) {
	var req parseQueryRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	clean, filters := search.ParseQuery(req.Query)
	writeJSON(w, http.StatusOK, parseQueryResponse{
		OriginalQuery: req.Query,
		CleanQuery:    clean,
		Filters:       filters,
	})
}

// decodeAndValidate reads a size-limited JSON body into dst and validates it.
// It writes a 400 response and returns false on any failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return s.validateRequest(w, dst)
}

// validateRequest runs the struct validator and writes the first failure.
func (s *Server) validateRequest(w http.ResponseWriter, v any) bool {
	err := s.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		writeDomainError(w, validationFailure(v, verrs[0]))
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid request")
	return false
}

// validationFailure turns a validator field error into a domain error
// named after the field's JSON key.
func validationFailure(v any, fe validator.FieldError) *domain.ValidationError {
	field := jsonFieldName(v, fe.StructField())
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		msg = fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		msg = fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		msg = "is invalid"
	}
	if fe.Kind() == reflect.Slice && (fe.Tag() == "min" || fe.Tag() == "max") {
		msg += " entries"
	}
	return domain.NewValidationError(field, msg)
}

func jsonFieldName(v any, structField string) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(structField); ok {
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(structField)
}

// splitList parses a comma separated query parameter, dropping blanks.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrNoValidSources):
		writeError(w, http.StatusBadRequest, "no valid sources specified")
	case errors.Is(err, domain.ErrNoProviders):
		writeError(w, http.StatusServiceUnavailable, "no providers available")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
