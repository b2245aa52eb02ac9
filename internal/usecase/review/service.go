// Package review manages the recommendation history: rating submissions,
// listing past runs and purging the record.
package review

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/domain"
	"github.com/verdantlab/floramatch/internal/metrics"
	"github.com/verdantlab/floramatch/internal/repository/record"
)

const (
	minRating = 1
	maxRating = 5
)

// HistoryStore reads and mutates the stored recommendation history.
type HistoryStore interface {
	RateSubmission(ctx context.Context, submissionID int64, rating int) error
	ListAll(ctx context.Context, includeUnrated bool) ([]record.SubmissionHistory, error)
	PurgeAll(ctx context.Context) (int64, error)
}

// Service exposes the history operations.
type Service struct {
	store  HistoryStore
	logger *zap.Logger
}

// New creates a review service.
func New(store HistoryStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Rate attaches a 1-5 rating to a submission.
func (s *Service) Rate(ctx context.Context, submissionID int64, rating int) error {
	if rating < minRating || rating > maxRating {
		return fmt.Errorf("rating %d outside [%d, %d]: %w", rating, minRating, maxRating, domain.ErrInvalidRating)
	}

	if err := s.store.RateSubmission(ctx, submissionID, rating); err != nil {
		return err
	}

	metrics.RatingsTotal.WithLabelValues(strconv.Itoa(rating)).Inc()
	s.logger.Info("submission rated",
		zap.Int64("submission_id", submissionID),
		zap.Int("rating", rating))
	return nil
}

// History returns the stored recommendation runs, newest first.
func (s *Service) History(ctx context.Context, includeUnrated bool) ([]record.SubmissionHistory, error) {
	return s.store.ListAll(ctx, includeUnrated)
}

// Purge deletes the entire history and returns the number of submissions
// removed.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	deleted, err := s.store.PurgeAll(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.Info("recommendation history purged", zap.Int64("submissions", deleted))
	return deleted, nil
}
