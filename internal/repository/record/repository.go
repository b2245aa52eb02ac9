// Package record persists submissions and the recommendations surfaced for
// them.
package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/domain"
)

// Repository writes and reads the recommendation history.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a record repository.
func New(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// CreateSubmission stores one user query and its selected answer ids,
// returning the submission id.
func (r *Repository) CreateSubmission(ctx context.Context, freeText string, answerIDs []int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin submission transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (free_text, created_at_unix_ms) VALUES (?, ?)`,
		freeText, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("submission id: %w", err)
	}

	for _, answerID := range answerIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO submission_answers (submission_id, answer_id) VALUES (?, ?)`,
			id, answerID); err != nil {
			return 0, fmt.Errorf("insert submission answer %d: %w", answerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit submission: %w", err)
	}

	return id, nil
}

// RecordRecommendations writes one recommendation row plus its metadata per
// surfaced candidate. Rows are written individually: a mid-batch failure
// leaves the already-written prefix durable and reports how far it got via
// PartialWriteError.
func (r *Repository) RecordRecommendations(
	ctx context.Context,
	submissionID int64,
	algorithm domain.Algorithm,
	tiers []domain.TierResult,
) error {
	total := 0
	for _, tier := range tiers {
		total += len(tier.Items)
	}

	recorded := 0
	for _, tier := range tiers {
		for _, item := range tier.Items {
			if err := r.recordOne(ctx, submissionID, algorithm, tier.Tier, item); err != nil {
				r.logger.Error("recommendation write failed mid-batch",
					zap.Int64("submission_id", submissionID),
					zap.Int("recorded", recorded),
					zap.Int("total", total),
					zap.Error(err))
				return domain.NewPartialWrite(recorded, total, err)
			}
			recorded++
		}
	}

	return nil
}

func (r *Repository) recordOne(
	ctx context.Context,
	submissionID int64,
	algorithm domain.Algorithm,
	tier domain.Tier,
	item domain.ScoredPlant,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO recommendations (submission_id, tier, algorithm, plant_id)
		VALUES (?, ?, ?, ?)
	`, submissionID, string(tier), string(algorithm), item.Plant.ID)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	recID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recommendation id: %w", err)
	}

	diagnostics, err := marshalDiagnostics(item.Meta)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recommendation_metadata
			(recommendation_id, score_raw, score_normalized, percentile, dense_rank, diagnostics_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, recID, item.Meta.ScoreRaw, item.Meta.ScoreNormalized, item.Meta.Percentile,
		item.Meta.DenseRank, diagnostics); err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// RateSubmission attaches a rating to an existing submission.
func (r *Repository) RateSubmission(ctx context.Context, submissionID int64, rating int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET rating = ? WHERE id = ?`, rating, submissionID)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rating rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

// SubmissionHistory is one submission with everything surfaced for it.
type SubmissionHistory struct {
	Submission domain.Submission
	Records    []domain.RecommendationRecord
}

// ListAll returns the full recommendation history, newest submission first.
// When includeUnrated is false, submissions without a rating are skipped.
func (r *Repository) ListAll(ctx context.Context, includeUnrated bool) ([]SubmissionHistory, error) {
	query := `
		SELECT id, free_text, rating, created_at_unix_ms
		FROM submissions
	`
	if !includeUnrated {
		query += ` WHERE rating IS NOT NULL`
	}
	query += ` ORDER BY created_at_unix_ms DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var history []SubmissionHistory
	for rows.Next() {
		var (
			s         domain.Submission
			rating    sql.NullInt64
			createdMS int64
		)
		if err := rows.Scan(&s.ID, &s.FreeText, &rating, &createdMS); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if rating.Valid {
			v := int(rating.Int64)
			s.Rating = &v
		}
		s.CreatedAt = time.UnixMilli(createdMS)
		history = append(history, SubmissionHistory{Submission: s})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	for i := range history {
		records, err := r.recordsFor(ctx, history[i].Submission.ID)
		if err != nil {
			return nil, err
		}
		history[i].Records = records
	}

	return history, nil
}

func (r *Repository) recordsFor(ctx context.Context, submissionID int64) ([]domain.RecommendationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rec.id, rec.tier, rec.algorithm, rec.plant_id,
			m.score_raw, m.score_normalized, m.percentile, m.dense_rank, m.diagnostics_json
		FROM recommendations rec
		JOIN recommendation_metadata m ON m.recommendation_id = rec.id
		WHERE rec.submission_id = ?
		ORDER BY rec.id
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var records []domain.RecommendationRecord
	for rows.Next() {
		var (
			rec         domain.RecommendationRecord
			tier, algo  string
			diagnostics string
		)
		if err := rows.Scan(&rec.ID, &tier, &algo, &rec.PlantID,
			&rec.Meta.ScoreRaw, &rec.Meta.ScoreNormalized, &rec.Meta.Percentile,
			&rec.Meta.DenseRank, &diagnostics); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		rec.SubmissionID = submissionID
		rec.Tier = domain.Tier(tier)
		rec.Algorithm = domain.Algorithm(algo)
		if err := unmarshalDiagnostics(diagnostics, &rec.Meta); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}

	return records, nil
}

// PurgeAll deletes the entire recommendation history and returns the number
// of submissions removed. Metadata and recommendation rows cascade.
func (r *Repository) PurgeAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions`)
	if err != nil {
		return 0, fmt.Errorf("purge submissions: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}

	r.logger.Info("purged recommendation history", zap.Int64("submissions", deleted))
	return deleted, nil
}

// diagnosticsPayload is the stored JSON shape of the algorithm-specific
// metadata half.
type diagnosticsPayload struct {
	Lexical  *domain.LexicalDiagnostics  `json:"lexical,omitempty"`
	Semantic *domain.SemanticDiagnostics `json:"semantic,omitempty"`
}

func marshalDiagnostics(meta domain.Metadata) (string, error) {
	data, err := json.Marshal(diagnosticsPayload{Lexical: meta.Lexical, Semantic: meta.Semantic})
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	return string(data), nil
}

func unmarshalDiagnostics(data string, meta *domain.Metadata) error {
	var payload diagnosticsPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	meta.Lexical = payload.Lexical
	meta.Semantic = payload.Semantic
	return nil
}
