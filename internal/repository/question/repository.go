// Package question persists the questionnaire and resolves answer
// selections to structured query values.
package question

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/domain"
)

// Repository reads and seeds the questionnaire.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a question repository.
func New(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// seedQuestion is one questionnaire entry with its selectable values in
// presentation order. Every question also offers "don't care".
type seedQuestion struct {
	category domain.Category
	text     string
	values   []string
}

var seedQuestions = []seedQuestion{
	{
		category: domain.CategoryWater,
		text:     "How much watering can you commit to?",
		values:   []string{"low", "moderate", "high"},
	},
	{
		category: domain.CategorySun,
		text:     "What kind of sunlight does your spot get?",
		values:   []string{"full", "partial", "indirect"},
	},
	{
		category: domain.CategorySoil,
		text:     "What soil do you have available?",
		values:   []string{"drained", "sandy", "moist", "loamy", "acidic"},
	},
	{
		category: domain.CategoryFertilizer,
		text:     "Are you willing to fertilize?",
		values:   []string{"yes", "no"},
	},
	{
		category: domain.CategoryGrowth,
		text:     "How fast should the plant grow?",
		values:   []string{"slow", "moderate", "fast"},
	},
}

// Seed inserts the questionnaire when the questions table is empty.
func (r *Repository) Seed(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range seedQuestions {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO questions (category, text) VALUES (?, ?)`,
			string(q.category), q.text)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.category, err)
		}
		questionID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("question id for %s: %w", q.category, err)
		}

		for _, value := range append(q.values, domain.DontCare) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO answers (question_id, value) VALUES (?, ?)`,
				questionID, value); err != nil {
				return fmt.Errorf("insert answer %s=%s: %w", q.category, value, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	r.logger.Info("seeded questionnaire", zap.Int("questions", len(seedQuestions)))
	return nil
}

// List returns the questionnaire with answer options, in seeded order.
func (r *Repository) List(ctx context.Context) ([]domain.Question, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT q.id, q.category, q.text, a.id, a.value
		FROM questions q
		JOIN answers a ON a.question_id = q.id
		ORDER BY q.id, a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	byID := map[int64]int{}

	for rows.Next() {
		var (
			qID, aID     int64
			category     string
			text, aValue string
		)
		if err := rows.Scan(&qID, &category, &text, &aID, &aValue); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}

		idx, ok := byID[qID]
		if !ok {
			questions = append(questions, domain.Question{
				ID:       qID,
				Category: domain.Category(category),
				Text:     text,
			})
			idx = len(questions) - 1
			byID[qID] = idx
		}
		questions[idx].Options = append(questions[idx].Options, domain.Answer{
			ID:         aID,
			QuestionID: qID,
			Category:   domain.Category(category),
			Value:      aValue,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return questions, nil
}

// ResolveAnswers maps selected answer ids to structured query values. Every
// id must exist; unknown ids fail the whole resolution with
// domain.ErrAnswerNotFound.
func (r *Repository) ResolveAnswers(ctx context.Context, answerIDs []int64) ([]domain.StructuredAnswer, error) {
	if len(answerIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(answerIDs)), ",")
	args := make([]any, len(answerIDs))
	for i, id := range answerIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT a.id, q.category, a.value
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE a.id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]domain.StructuredAnswer, len(answerIDs))
	for rows.Next() {
		var (
			id       int64
			category string
			value    string
		)
		if err := rows.Scan(&id, &category, &value); err != nil {
			return nil, fmt.Errorf("scan answer row: %w", err)
		}
		found[id] = domain.StructuredAnswer{
			Category: domain.Category(category),
			Value:    value,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}

	// Preserve selection order; report the first unknown id.
	resolved := make([]domain.StructuredAnswer, 0, len(answerIDs))
	for _, id := range answerIDs {
		a, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("answer id %d: %w", id, domain.ErrAnswerNotFound)
		}
		resolved = append(resolved, a)
	}

	return resolved, nil
}
