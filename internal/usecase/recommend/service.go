// Package recommend orchestrates one ranking run end to end: corpus
// preparation, scoring, tier partitioning, metadata enrichment, image
// preference and persistence.
package recommend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/domain"
	"github.com/verdantlab/floramatch/internal/metrics"
	"github.com/verdantlab/floramatch/internal/rank"
)

const (
	defaultTierCount = 3
	maxTierCount     = 10
)

// Counts holds the requested number of candidates per tier.
type Counts struct {
	Perfect  int
	Good     int
	Mismatch int
}

// Result is one completed ranking run.
type Result struct {
	SubmissionID int64
	Algorithm    domain.Algorithm
	Tiers        []domain.TierResult
}

// Service runs the recommendation pipeline for both algorithms.
type Service struct {
	plants      PlantLister
	answers     AnswerResolver
	recorder    Recorder
	semantic    *rank.SemanticScorer
	partitioner *rank.Partitioner
	logger      *zap.Logger

	defaultCount int
	maxCount     int
}

// New creates a recommendation service.
func New(
	plants PlantLister,
	answers AnswerResolver,
	recorder Recorder,
	semantic *rank.SemanticScorer,
	partitioner *rank.Partitioner,
	logger *zap.Logger,
) *Service {
	return &Service{
		plants:       plants,
		answers:      answers,
		recorder:     recorder,
		semantic:     semantic,
		partitioner:  partitioner,
		logger:       logger,
		defaultCount: defaultTierCount,
		maxCount:     maxTierCount,
	}
}

// WithLimits overrides the default and maximum per-tier counts.
func (s *Service) WithLimits(defaultCount, maxCount int) *Service {
	if defaultCount > 0 {
		s.defaultCount = defaultCount
	}
	if maxCount > 0 {
		s.maxCount = maxCount
	}
	return s
}

// Defaults returns the per-tier counts applied when a request leaves them
// unset.
func (s *Service) Defaults() Counts {
	return Counts{Perfect: s.defaultCount, Good: s.defaultCount, Mismatch: s.defaultCount}
}

// clamp bounds every count to [0, max]. Zero is a valid empty-tier request.
func (s *Service) clamp(c Counts) Counts {
	bound := func(n int) int {
		if n < 0 {
			return 0
		}
		if n > s.maxCount {
			return s.maxCount
		}
		return n
	}
	return Counts{Perfect: bound(c.Perfect), Good: bound(c.Good), Mismatch: bound(c.Mismatch)}
}

// RecommendLexical runs a BM25 ranking over the structured questionnaire
// selections and persists the outcome.
func (s *Service) RecommendLexical(ctx context.Context, answerIDs []int64, counts Counts) (Result, error) {
	start := time.Now()

	result, err := s.recommendLexical(ctx, answerIDs, s.clamp(counts))
	s.observeRun(domain.AlgorithmBM25, start, err)
	return result, err
}

func (s *Service) recommendLexical(ctx context.Context, answerIDs []int64, counts Counts) (Result, error) {
	plants, err := s.plants.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list catalog: %w", err)
	}

	docs, err := rank.BuildLexicalCorpus(plants)
	if err != nil {
		return Result{}, err
	}
	scorer, err := rank.NewBM25Scorer(docs)
	if err != nil {
		return Result{}, err
	}

	resolved, err := s.answers.ResolveAnswers(ctx, answerIDs)
	if err != nil {
		return Result{}, err
	}
	query := domain.StructuredQuery{Answers: resolved}

	v, err := scorer.Score(ctx, query)
	if err != nil {
		return Result{}, err
	}

	queryTokens := rank.BuildLexicalQuery(query)
	enrich := func(i int) domain.ScoredPlant {
		return domain.ScoredPlant{
			Plant: plants[i],
			Meta:  rank.EnrichLexical(v, i, docs[i], queryTokens),
		}
	}

	tiers := s.partition(v, counts, enrich)

	submissionID, err := s.record(ctx, "", answerIDs, domain.AlgorithmBM25, tiers)
	if err != nil {
		return Result{}, err
	}

	return Result{SubmissionID: submissionID, Algorithm: domain.AlgorithmBM25, Tiers: tiers}, nil
}

// RecommendSemantic runs an embedding ranking over sanitized free text and
// persists the outcome.
func (s *Service) RecommendSemantic(ctx context.Context, freeText string, counts Counts) (Result, error) {
	start := time.Now()

	result, err := s.recommendSemantic(ctx, freeText, s.clamp(counts))
	s.observeRun(domain.AlgorithmEmbedding, start, err)
	return result, err
}

func (s *Service) recommendSemantic(ctx context.Context, freeText string, counts Counts) (Result, error) {
	sanitized := rank.SanitizeFreeText(freeText)
	query := domain.FreeTextQuery{Text: sanitized}

	// The vector and the catalog snapshot it was scored against come back as
	// an aligned pair, so a refresh landing mid-run cannot shift indices.
	v, plants, err := s.semantic.ScoreSnapshot(ctx, query)
	if err != nil {
		return Result{}, err
	}

	enrich := func(i int) domain.ScoredPlant {
		return domain.ScoredPlant{
			Plant: plants[i],
			Meta:  rank.EnrichSemantic(v, i),
		}
	}

	tiers := s.partition(v, counts, enrich)

	submissionID, err := s.record(ctx, sanitized, nil, domain.AlgorithmEmbedding, tiers)
	if err != nil {
		return Result{}, err
	}

	return Result{SubmissionID: submissionID, Algorithm: domain.AlgorithmEmbedding, Tiers: tiers}, nil
}

// RefreshCorpus rebuilds the semantic corpus from the current catalog.
func (s *Service) RefreshCorpus(ctx context.Context) (int, error) {
	plants, err := s.plants.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list catalog: %w", err)
	}
	if err := s.semantic.Refresh(ctx, plants); err != nil {
		return 0, err
	}

	s.logger.Info("semantic corpus refreshed", zap.Int("plants", len(plants)))
	return len(plants), nil
}

// partition cuts the score vector into tiers in domain.Tiers presentation
// order and applies enrichment and image preference per tier.
func (s *Service) partition(v domain.ScoreVector, counts Counts, enrich func(i int) domain.ScoredPlant) []domain.TierResult {
	requested := map[domain.Tier]int{
		domain.TierPerfect:  counts.Perfect,
		domain.TierGood:     counts.Good,
		domain.TierMismatch: counts.Mismatch,
	}
	selectIndices := map[domain.Tier]func(domain.ScoreVector, int) []int{
		domain.TierPerfect:  s.partitioner.Perfect,
		domain.TierGood:     s.partitioner.Good,
		domain.TierMismatch: s.partitioner.Mismatch,
	}

	tiers := make([]domain.TierResult, 0, len(domain.Tiers))
	for _, tier := range domain.Tiers {
		n := requested[tier]
		indices := selectIndices[tier](v, n)
		items := make([]domain.ScoredPlant, 0, len(indices))
		for _, i := range indices {
			items = append(items, enrich(i))
		}
		tiers = append(tiers, domain.TierResult{Tier: tier, Items: rank.PreferImages(items, n)})
	}
	return tiers
}

func (s *Service) record(
	ctx context.Context,
	freeText string,
	answerIDs []int64,
	algorithm domain.Algorithm,
	tiers []domain.TierResult,
) (int64, error) {
	submissionID, err := s.recorder.CreateSubmission(ctx, freeText, answerIDs)
	if err != nil {
		return 0, fmt.Errorf("create submission: %w", err)
	}

	if err := s.recorder.RecordRecommendations(ctx, submissionID, algorithm, tiers); err != nil {
		return 0, err
	}

	for _, tier := range tiers {
		metrics.RecommendationTierSize.
			WithLabelValues(string(algorithm), string(tier.Tier)).
			Observe(float64(len(tier.Items)))
	}

	return submissionID, nil
}

func (s *Service) observeRun(algorithm domain.Algorithm, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecommendationRunsTotal.WithLabelValues(string(algorithm), status).Inc()
	if err == nil {
		metrics.RecommendationRunDuration.
			WithLabelValues(string(algorithm)).
			Observe(time.Since(start).Seconds())
	}
}
