package recommend

import (
	"context"

	"github.com/verdantlab/floramatch/internal/domain"
)

// PlantLister serves the catalog the corpora are built from.
type PlantLister interface {
	List(ctx context.Context) ([]domain.Plant, error)
}

// AnswerResolver maps selected answer ids to structured query values.
type AnswerResolver interface {
	ResolveAnswers(ctx context.Context, answerIDs []int64) ([]domain.StructuredAnswer, error)
}

// Recorder persists a submission and the recommendations surfaced for it.
type Recorder interface {
	CreateSubmission(ctx context.Context, freeText string, answerIDs []int64) (int64, error)
	RecordRecommendations(ctx context.Context, submissionID int64, algorithm domain.Algorithm, tiers []domain.TierResult) error
}
