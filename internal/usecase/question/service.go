// Package question serves the questionnaire.
package question

import (
	"context"
	"fmt"

	"github.com/verdantlab/floramatch/internal/domain"
)

// Lister reads the stored questionnaire.
type Lister interface {
	List(ctx context.Context) ([]domain.Question, error)
}

// Service exposes the questionnaire to clients.
type Service struct {
	questions Lister
}

// New creates a question service.
func New(questions Lister) *Service {
	return &Service{questions: questions}
}

// List returns every question with its answer options, in seeded order.
func (s *Service) List(ctx context.Context) ([]domain.Question, error) {
	questions, err := s.questions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questionnaire: %w", err)
	}
	return questions, nil
}
