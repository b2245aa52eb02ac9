package chi

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/domain"
	"github.com/verdantlab/floramatch/internal/rank"
	"github.com/verdantlab/floramatch/internal/repository/record"
	cataloguc "github.com/verdantlab/floramatch/internal/usecase/catalog"
	healthuc "github.com/verdantlab/floramatch/internal/usecase/health"
	questionuc "github.com/verdantlab/floramatch/internal/usecase/question"
	recommenduc "github.com/verdantlab/floramatch/internal/usecase/recommend"
	reviewuc "github.com/verdantlab/floramatch/internal/usecase/review"
)

// --- Mocks ---

type mockPlants struct {
	plants []domain.Plant
	err    error
}

func (m *mockPlants) List(_ context.Context) ([]domain.Plant, error) {
	return m.plants, m.err
}

func (m *mockPlants) Get(_ context.Context, id int64) (domain.Plant, error) {
	if m.err != nil {
		return domain.Plant{}, m.err
	}
	for _, p := range m.plants {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Plant{}, domain.ErrPlantNotFound
}

type mockQuestions struct {
	questions []domain.Question
	err       error
}

func (m *mockQuestions) List(_ context.Context) ([]domain.Question, error) {
	return m.questions, m.err
}

type mockAnswers struct {
	resolved []domain.StructuredAnswer
	err      error
}

func (m *mockAnswers) ResolveAnswers(_ context.Context, _ []int64) ([]domain.StructuredAnswer, error) {
	return m.resolved, m.err
}

type mockRecorder struct {
	submissionID int64
	recordErr    error
}

func (m *mockRecorder) CreateSubmission(_ context.Context, _ string, _ []int64) (int64, error) {
	return m.submissionID, nil
}

func (m *mockRecorder) RecordRecommendations(_ context.Context, _ int64, _ domain.Algorithm, _ []domain.TierResult) error {
	return m.recordErr
}

type mockHistory struct {
	rateErr error
	history []record.SubmissionHistory
	purged  int64
}

func (m *mockHistory) RateSubmission(_ context.Context, _ int64, _ int) error {
	return m.rateErr
}

func (m *mockHistory) ListAll(_ context.Context, _ bool) ([]record.SubmissionHistory, error) {
	return m.history, nil
}

func (m *mockHistory) PurgeAll(_ context.Context) (int64, error) {
	return m.purged, nil
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

type stubEmbedder struct{}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

// --- Fixtures ---

func testCatalog() []domain.Plant {
	plant := func(id int64, name, watering, img string) domain.Plant {
		return domain.Plant{
			ID: id, Name: name,
			Growth: "fast", Soil: "sandy", Sunlight: "full sunlight",
			Watering: watering, Fertilization: "no", ImageURL: img,
		}
	}
	return []domain.Plant{
		plant(1, "Aloe", "water weekly", ""),
		plant(2, "Lavender", "water weekly", "https://img.example/lavender.jpg"),
		plant(3, "Fern", "keep soil moist", ""),
		plant(4, "Monstera", "regular watering", ""),
		plant(5, "Palm", "regular watering", ""),
		plant(6, "Cactus", "regular, moist soil", ""),
	}
}

type serverFixture struct {
	plants   *mockPlants
	answers  *mockAnswers
	recorder *mockRecorder
	history  *mockHistory
	db       *stubPinger
}

func newTestRouter(t *testing.T, f *serverFixture) http.Handler {
	t.Helper()

	semantic := rank.NewSemanticScorer(&stubEmbedder{})
	partitioner := rank.NewPartitioner(rank.DefaultTierConfig(), rand.New(rand.NewSource(1)))

	server := NewServer(
		questionuc.New(&mockQuestions{questions: []domain.Question{
			{ID: 1, Category: domain.CategoryWater, Text: "How much watering can you commit to?",
				Options: []domain.Answer{{ID: 1, Value: "low"}, {ID: 2, Value: "high"}}},
		}}),
		recommenduc.New(f.plants, f.answers, f.recorder, semantic, partitioner, zap.NewNop()),
		cataloguc.New(f.plants),
		reviewuc.New(f.history, zap.NewNop()),
		healthuc.New(f.db, nil, nil, nil),
		zap.NewNop(),
	)

	r := chirouter.NewRouter()
	server.Routes(r)
	return r
}

func defaultFixture() *serverFixture {
	return &serverFixture{
		plants:   &mockPlants{plants: testCatalog()},
		answers:  &mockAnswers{resolved: []domain.StructuredAnswer{{Category: domain.CategoryWater, Value: "low"}}},
		recorder: &mockRecorder{submissionID: 42},
		history:  &mockHistory{},
		db:       &stubPinger{},
	}
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestListQuestions(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "GET", "/questions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var questions []QuestionResponse
	if err := json.NewDecoder(rr.Body).Decode(&questions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(questions) != 1 || questions[0].Category != "water" || len(questions[0].Options) != 2 {
		t.Errorf("questions = %+v", questions)
	}
}

func TestRecommendLexical(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "POST",
		"/recommendations/lexical?num_perfect=2&num_good=2&num_bad=2",
		`[{"question_id": 1, "answer_id": 1}]`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp RecommendationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SubmissionID != 42 {
		t.Errorf("submission_id = %d, want 42", resp.SubmissionID)
	}
	if resp.Algorithm != "bm25" {
		t.Errorf("algorithm = %q, want bm25", resp.Algorithm)
	}
	if len(resp.Tiers) != 3 {
		t.Fatalf("got %d tiers, want 3", len(resp.Tiers))
	}
	if resp.Tiers[0].Tier != "perfect" || len(resp.Tiers[0].Items) != 2 {
		t.Errorf("perfect tier = %+v", resp.Tiers[0])
	}
	if resp.Tiers[0].Items[0].Metadata.Lexical == nil {
		t.Error("lexical diagnostics missing")
	}
}

func TestRecommendLexical_BadBody(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "POST", "/recommendations/lexical", `{"not": "an array"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestRecommendLexical_BadCount(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "POST", "/recommendations/lexical?num_perfect=lots", `[]`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestRecommendLexical_UnmappedValue_422(t *testing.T) {
	f := defaultFixture()
	f.plants.plants[0].Watering = "mist with unicorn tears"
	handler := newTestRouter(t, f)

	rr := doRequest(t, handler, "POST", "/recommendations/lexical", `[]`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != ErrorCodeUnmappedValue {
		t.Errorf("code = %s, want %s", errResp.Code, ErrorCodeUnmappedValue)
	}
}

func TestRecommendLexical_EmptyCatalog_503(t *testing.T) {
	f := defaultFixture()
	f.plants.plants = nil
	handler := newTestRouter(t, f)

	rr := doRequest(t, handler, "POST", "/recommendations/lexical", `[]`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestRecommendLexical_PartialWrite_500(t *testing.T) {
	f := defaultFixture()
	f.recorder.recordErr = domain.NewPartialWrite(3, 9, errors.New("disk full"))
	handler := newTestRouter(t, f)

	rr := doRequest(t, handler, "POST", "/recommendations/lexical", `[]`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["recorded"] != float64(3) || body["total"] != float64(9) {
		t.Errorf("partial write body = %v", body)
	}
}

func TestRecommendSemantic_MissingText(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "POST", "/recommendations/semantic", `{"free_text": ""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestRecommendSemantic_BeforeRefresh_503(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "POST", "/recommendations/semantic", `{"free_text": "a sunny plant"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestRecommendSemantic_AfterRefresh(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	if rr := doRequest(t, handler, "POST", "/admin/corpus/refresh", ""); rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rr.Code)
	}

	rr := doRequest(t, handler, "POST", "/recommendations/semantic?num_perfect=1", `{"free_text": "a sunny plant"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp RecommendationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Algorithm != "embedding" {
		t.Errorf("algorithm = %q, want embedding", resp.Algorithm)
	}
	if len(resp.Tiers[0].Items) != 1 || resp.Tiers[0].Items[0].Metadata.Semantic == nil {
		t.Errorf("perfect tier = %+v", resp.Tiers[0])
	}
}

func TestRateSubmission(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "POST", "/recommendations/42/rating?rating=4", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
}

func TestRateSubmission_Invalid(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"non-numeric id", "/recommendations/abc/rating?rating=4", http.StatusBadRequest},
		{"missing rating", "/recommendations/42/rating", http.StatusBadRequest},
		{"rating out of range", "/recommendations/42/rating?rating=9", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, handler, "POST", tt.target, "")
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRateSubmission_Unknown_404(t *testing.T) {
	f := defaultFixture()
	f.history.rateErr = domain.ErrSubmissionNotFound
	handler := newTestRouter(t, f)

	rr := doRequest(t, handler, "POST", "/recommendations/999/rating?rating=4", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestListRecommendations(t *testing.T) {
	rating := 5
	f := defaultFixture()
	f.history.history = []record.SubmissionHistory{
		{
			Submission: domain.Submission{ID: 2, FreeText: "a sunny plant", Rating: &rating},
			Records: []domain.RecommendationRecord{
				{ID: 10, SubmissionID: 2, Tier: domain.TierPerfect, Algorithm: domain.AlgorithmEmbedding, PlantID: 4},
			},
		},
	}
	handler := newTestRouter(t, f)

	rr := doRequest(t, handler, "GET", "/recommendations?include_unrated=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp HistoryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].SubmissionID != 2 || len(resp.Items[0].Records) != 1 {
		t.Errorf("history = %+v", resp)
	}
	if resp.Items[0].Rating == nil || *resp.Items[0].Rating != 5 {
		t.Errorf("rating = %v, want 5", resp.Items[0].Rating)
	}
}

func TestPurgeRecommendations(t *testing.T) {
	f := defaultFixture()
	f.history.purged = 12
	handler := newTestRouter(t, f)

	rr := doRequest(t, handler, "DELETE", "/recommendations", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp PurgeResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Deleted != 12 {
		t.Errorf("deleted = %d, want 12", resp.Deleted)
	}
}

func TestListPlants(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "GET", "/plants?water=water+weekly", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp PlantListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestListPlants_BadPagination(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "GET", "/plants?limit=ten", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestGetPlant(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "GET", "/plants/2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp PlantResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != 2 || resp.Name != "Lavender" {
		t.Errorf("plant = %+v, want Lavender", resp)
	}
}

func TestGetPlant_Unknown_404(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "GET", "/plants/999", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != ErrorCodePlantNotFound {
		t.Errorf("code = %s, want %s", errResp.Code, ErrorCodePlantNotFound)
	}
}

func TestGetPlant_BadID(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "GET", "/plants/aloe", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	handler := newTestRouter(t, defaultFixture())

	rr := doRequest(t, handler, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealthCheck_Degraded_503(t *testing.T) {
	f := defaultFixture()
	f.db.err = errors.New("db gone")
	handler := newTestRouter(t, f)

	rr := doRequest(t, handler, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}
