// Package chi exposes the HTTP API on a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/domain"
	cataloguc "github.com/verdantlab/floramatch/internal/usecase/catalog"
	healthuc "github.com/verdantlab/floramatch/internal/usecase/health"
	questionuc "github.com/verdantlab/floramatch/internal/usecase/question"
	recommenduc "github.com/verdantlab/floramatch/internal/usecase/recommend"
	reviewuc "github.com/verdantlab/floramatch/internal/usecase/review"
)

const maxSelections = 50

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the use case services to HTTP handlers.
type Server struct {
	questions     *questionuc.Service
	recommend     *recommenduc.Service
	catalog       *cataloguc.Service
	review        *reviewuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	questions *questionuc.Service,
	recommend *recommenduc.Service,
	catalog *cataloguc.Service,
	review *reviewuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		questions: questions,
		recommend: recommend,
		catalog:   catalog,
		review:    review,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		partialWriteHandler,
		sentinelHandler(domain.ErrInvalidRating, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrAnswerNotFound, http.StatusBadRequest, ErrorCodeAnswerNotFound),
		sentinelHandler(domain.ErrSubmissionNotFound, http.StatusNotFound, ErrorCodeSubmissionNotFound),
		sentinelHandler(domain.ErrPlantNotFound, http.StatusNotFound, ErrorCodePlantNotFound),
		sentinelHandler(domain.ErrUnmappedValue, http.StatusUnprocessableEntity, ErrorCodeUnmappedValue),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrEmptyCatalog, http.StatusServiceUnavailable, ErrorCodeCatalogEmpty),
	}
	return s
}

// Routes registers every API route on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/questions", s.ListQuestions)
	r.Post("/recommendations/lexical", s.RecommendLexical)
	r.Post("/recommendations/semantic", s.RecommendSemantic)
	r.Post("/recommendations/{submissionID}/rating", s.RateSubmission)
	r.Get("/recommendations", s.ListRecommendations)
	r.Delete("/recommendations", s.PurgeRecommendations)
	r.Post("/admin/corpus/refresh", s.RefreshCorpus)
	r.Get("/plants", s.ListPlants)
	r.Get("/plants/{plantID}", s.GetPlant)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// ListQuestions handles GET /questions.
func (s *Server) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.questions.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]QuestionResponse, len(questions))
	for i, q := range questions {
		items[i] = questionToResponse(q)
	}

	writeJSON(w, http.StatusOK, items)
}

// RecommendLexical handles POST /recommendations/lexical.
func (s *Server) RecommendLexical(w http.ResponseWriter, r *http.Request) {
	var selections []AnswerSelection
	if err := json.NewDecoder(r.Body).Decode(&selections); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(selections) > maxSelections {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			"too many questionnaire selections")
		return
	}

	counts, err := s.countsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	answerIDs := make([]int64, len(selections))
	for i, sel := range selections {
		answerIDs[i] = sel.AnswerID
	}

	result, err := s.recommend.RecommendLexical(r.Context(), answerIDs, counts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RecommendationResponse{
		SubmissionID: result.SubmissionID,
		Algorithm:    string(result.Algorithm),
		Tiers:        tiersToResponse(result.Tiers),
	})
}

// RecommendSemantic handles POST /recommendations/semantic.
func (s *Server) RecommendSemantic(w http.ResponseWriter, r *http.Request) {
	var req SemanticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.FreeText == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "free_text is required")
		return
	}

	counts, err := s.countsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	result, err := s.recommend.RecommendSemantic(r.Context(), req.FreeText, counts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RecommendationResponse{
		SubmissionID: result.SubmissionID,
		Algorithm:    string(result.Algorithm),
		Tiers:        tiersToResponse(result.Tiers),
	})
}

// RateSubmission handles POST /recommendations/{submissionID}/rating.
func (s *Server) RateSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := strconv.ParseInt(chi.URLParam(r, "submissionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid submission id")
		return
	}

	rating, err := strconv.Atoi(r.URL.Query().Get("rating"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "rating must be an integer")
		return
	}

	if err := s.review.Rate(r.Context(), submissionID, rating); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRecommendations handles GET /recommendations.
func (s *Server) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	includeUnrated := r.URL.Query().Get("include_unrated") == "true"

	history, err := s.review.History(r.Context(), includeUnrated)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historyToResponse(history))
}

// PurgeRecommendations handles DELETE /recommendations.
func (s *Server) PurgeRecommendations(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.review.Purge(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PurgeResponse{Deleted: deleted})
}

// RefreshCorpus handles POST /admin/corpus/refresh.
func (s *Server) RefreshCorpus(w http.ResponseWriter, r *http.Request) {
	plants, err := s.recommend.RefreshCorpus(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{Plants: plants})
}

// ListPlants handles GET /plants.
func (s *Server) ListPlants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := cataloguc.Filter{
		Name:       q.Get("name"),
		Growth:     q.Get("growth"),
		Soil:       q.Get("soil"),
		Sunlight:   q.Get("sun"),
		Watering:   q.Get("water"),
		Fertilizer: q.Get("fertilizer"),
	}

	var err error
	if filter.Skip, err = intQueryParam(r, "skip", 0); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	if filter.Limit, err = intQueryParam(r, "limit", 0); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	plants, err := s.catalog.List(r.Context(), filter)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]PlantResponse, len(plants))
	for i, p := range plants {
		items[i] = plantToResponse(p)
	}

	writeJSON(w, http.StatusOK, PlantListResponse{Items: items, Count: len(items)})
}

// GetPlant handles GET /plants/{plantID}.
func (s *Server) GetPlant(w http.ResponseWriter, r *http.Request) {
	plantID, err := strconv.ParseInt(chi.URLParam(r, "plantID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid plant id")
		return
	}

	plant, err := s.catalog.Get(r.Context(), plantID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plantToResponse(plant))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// countsFromQuery reads the optional per-tier count overrides. Absent
// parameters keep the default; the service clamps the final values.
func (s *Server) countsFromQuery(r *http.Request) (recommenduc.Counts, error) {
	counts := s.recommend.Defaults()
	var err error
	if counts.Perfect, err = intQueryParam(r, "num_perfect", counts.Perfect); err != nil {
		return recommenduc.Counts{}, err
	}
	if counts.Good, err = intQueryParam(r, "num_good", counts.Good); err != nil {
		return recommenduc.Counts{}, err
	}
	if counts.Mismatch, err = intQueryParam(r, "num_bad", counts.Mismatch); err != nil {
		return recommenduc.Counts{}, err
	}
	return counts, nil
}

func intQueryParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRating,
		domain.ErrAnswerNotFound,
		domain.ErrSubmissionNotFound,
		domain.ErrPlantNotFound,
		domain.ErrUnmappedValue,
		domain.ErrPartialWrite,
		domain.ErrEmbeddingProviderError,
		domain.ErrEmptyCatalog,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// partialWriteHandler handles ErrPartialWrite with the recorded/total counts.
func partialWriteHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrPartialWrite) {
		return false
	}
	var pwe *domain.PartialWriteError
	if errors.As(err, &pwe) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"code":     ErrorCodePartialWrite,
			"message":  msg,
			"recorded": pwe.Recorded,
			"total":    pwe.Total,
		})
		return true
	}
	writeError(w, http.StatusInternalServerError, ErrorCodePartialWrite, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
