package chi

import (
	"time"

	"github.com/verdantlab/floramatch/internal/domain"
	"github.com/verdantlab/floramatch/internal/repository/record"
)

// ErrorCode enumerates machine-readable API error codes.
type ErrorCode string

const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeUnmappedValue          ErrorCode = "unmapped_value"
	ErrorCodeAnswerNotFound         ErrorCode = "answer_not_found"
	ErrorCodeSubmissionNotFound     ErrorCode = "submission_not_found"
	ErrorCodePlantNotFound          ErrorCode = "plant_not_found"
	ErrorCodePartialWrite           ErrorCode = "partial_write"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeCatalogEmpty           ErrorCode = "catalog_empty"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the uniform API error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AnswerSelection is one questionnaire selection in a lexical request body.
type AnswerSelection struct {
	QuestionID int64 `json:"question_id"`
	AnswerID   int64 `json:"answer_id"`
}

// SemanticRequest is the free-text request body.
type SemanticRequest struct {
	FreeText string `json:"free_text"`
}

// PlantResponse is one catalog entry as served to clients.
type PlantResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Growth        string `json:"growth"`
	Soil          string `json:"soil"`
	Sunlight      string `json:"sunlight"`
	Watering      string `json:"watering"`
	Fertilization string `json:"fertilization"`
	ImageURL      string `json:"image_url,omitempty"`
}

// LexicalDiagnosticsResponse explains a BM25 candidate.
type LexicalDiagnosticsResponse struct {
	MatchedTerms   []string `json:"matched_terms"`
	UnmatchedTerms []string `json:"unmatched_terms"`
	MatchCount     int      `json:"match_count"`
	MaxMatches     int      `json:"max_matches"`
	MatchRatio     float64  `json:"match_ratio"`
}

// SemanticDiagnosticsResponse explains an embedding candidate.
type SemanticDiagnosticsResponse struct {
	CosineDistance float64 `json:"cosine_distance"`
	GapToBest      float64 `json:"gap_to_best"`
}

// MetadataResponse carries per-candidate scoring provenance.
type MetadataResponse struct {
	ScoreRaw        float64                      `json:"score_raw"`
	ScoreNormalized float64                      `json:"score_normalized"`
	Percentile      float64                      `json:"percentile"`
	DenseRank       int                          `json:"dense_rank"`
	Lexical         *LexicalDiagnosticsResponse  `json:"lexical,omitempty"`
	Semantic        *SemanticDiagnosticsResponse `json:"semantic,omitempty"`
}

// RecommendedPlantResponse is one surfaced candidate with its metadata.
type RecommendedPlantResponse struct {
	Plant    PlantResponse    `json:"plant"`
	Metadata MetadataResponse `json:"metadata"`
}

// TierResponse is one quality bucket of a recommendation run.
type TierResponse struct {
	Tier  string                     `json:"tier"`
	Items []RecommendedPlantResponse `json:"items"`
}

// RecommendationResponse is one completed run.
type RecommendationResponse struct {
	SubmissionID int64          `json:"submission_id"`
	Algorithm    string         `json:"algorithm"`
	Tiers        []TierResponse `json:"tiers"`
}

// QuestionResponse is one questionnaire entry.
type QuestionResponse struct {
	ID       int64            `json:"id"`
	Category string           `json:"category"`
	Text     string           `json:"text"`
	Options  []AnswerResponse `json:"options"`
}

// AnswerResponse is one selectable answer option.
type AnswerResponse struct {
	ID    int64  `json:"id"`
	Value string `json:"value"`
}

// RecordResponse is one stored recommendation row.
type RecordResponse struct {
	ID        int64            `json:"id"`
	Tier      string           `json:"tier"`
	Algorithm string           `json:"algorithm"`
	PlantID   int64            `json:"plant_id"`
	Metadata  MetadataResponse `json:"metadata"`
}

// HistoryEntryResponse is one submission with everything surfaced for it.
type HistoryEntryResponse struct {
	SubmissionID int64            `json:"submission_id"`
	FreeText     string           `json:"free_text,omitempty"`
	Rating       *int             `json:"rating,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Records      []RecordResponse `json:"records"`
}

// HistoryResponse is the full recommendation history.
type HistoryResponse struct {
	Items []HistoryEntryResponse `json:"items"`
	Total int                    `json:"total"`
}

// PurgeResponse reports how many submissions a purge removed.
type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// RefreshResponse reports how many plants a corpus refresh embedded.
type RefreshResponse struct {
	Plants int `json:"plants"`
}

// PlantListResponse is one catalog page.
type PlantListResponse struct {
	Items []PlantResponse `json:"items"`
	Count int             `json:"count"`
}

// HealthResponse aggregates component health checks.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func plantToResponse(p domain.Plant) PlantResponse {
	return PlantResponse{
		ID:            p.ID,
		Name:          p.Name,
		Growth:        p.Growth,
		Soil:          p.Soil,
		Sunlight:      p.Sunlight,
		Watering:      p.Watering,
		Fertilization: p.Fertilization,
		ImageURL:      p.ImageURL,
	}
}

func metadataToResponse(m domain.Metadata) MetadataResponse {
	resp := MetadataResponse{
		ScoreRaw:        m.ScoreRaw,
		ScoreNormalized: m.ScoreNormalized,
		Percentile:      m.Percentile,
		DenseRank:       m.DenseRank,
	}
	if m.Lexical != nil {
		resp.Lexical = &LexicalDiagnosticsResponse{
			MatchedTerms:   m.Lexical.MatchedTerms,
			UnmatchedTerms: m.Lexical.UnmatchedTerms,
			MatchCount:     m.Lexical.MatchCount,
			MaxMatches:     m.Lexical.MaxMatches,
			MatchRatio:     m.Lexical.MatchRatio,
		}
	}
	if m.Semantic != nil {
		resp.Semantic = &SemanticDiagnosticsResponse{
			CosineDistance: m.Semantic.CosineDistance,
			GapToBest:      m.Semantic.GapToBest,
		}
	}
	return resp
}

func tiersToResponse(tiers []domain.TierResult) []TierResponse {
	out := make([]TierResponse, len(tiers))
	for i, tier := range tiers {
		items := make([]RecommendedPlantResponse, len(tier.Items))
		for j, item := range tier.Items {
			items[j] = RecommendedPlantResponse{
				Plant:    plantToResponse(item.Plant),
				Metadata: metadataToResponse(item.Meta),
			}
		}
		out[i] = TierResponse{Tier: string(tier.Tier), Items: items}
	}
	return out
}

func questionToResponse(q domain.Question) QuestionResponse {
	options := make([]AnswerResponse, len(q.Options))
	for i, o := range q.Options {
		options[i] = AnswerResponse{ID: o.ID, Value: o.Value}
	}
	return QuestionResponse{
		ID:       q.ID,
		Category: string(q.Category),
		Text:     q.Text,
		Options:  options,
	}
}

func historyToResponse(history []record.SubmissionHistory) HistoryResponse {
	items := make([]HistoryEntryResponse, len(history))
	for i, h := range history {
		records := make([]RecordResponse, len(h.Records))
		for j, rec := range h.Records {
			records[j] = RecordResponse{
				ID:        rec.ID,
				Tier:      string(rec.Tier),
				Algorithm: string(rec.Algorithm),
				PlantID:   rec.PlantID,
				Metadata:  metadataToResponse(rec.Meta),
			}
		}
		items[i] = HistoryEntryResponse{
			SubmissionID: h.Submission.ID,
			FreeText:     h.Submission.FreeText,
			Rating:       h.Submission.Rating,
			CreatedAt:    h.Submission.CreatedAt,
			Records:      records,
		}
	}
	return HistoryResponse{Items: items, Total: len(items)}
}
