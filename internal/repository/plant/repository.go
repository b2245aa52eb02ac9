// Package plant persists and serves the plant catalog.
package plant

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/domain"
)

// Repository reads and seeds the plant catalog.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a plant repository.
func New(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// List returns the whole catalog ordered by id. The order is the corpus
// order every scoring run aligns to.
func (r *Repository) List(ctx context.Context) ([]domain.Plant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, growth, soil, sunlight, watering, fertilization, image_url
		FROM plants ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query plants: %w", err)
	}
	defer rows.Close()

	var plants []domain.Plant
	for rows.Next() {
		var p domain.Plant
		if err := rows.Scan(&p.ID, &p.Name, &p.Growth, &p.Soil, &p.Sunlight,
			&p.Watering, &p.Fertilization, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		plants = append(plants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plants: %w", err)
	}

	return plants, nil
}

// Get returns one plant by id.
func (r *Repository) Get(ctx context.Context, id int64) (domain.Plant, error) {
	var p domain.Plant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, growth, soil, sunlight, watering, fertilization, image_url
		FROM plants WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Growth, &p.Soil, &p.Sunlight,
		&p.Watering, &p.Fertilization, &p.ImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Plant{}, domain.ErrPlantNotFound
		}
		return domain.Plant{}, fmt.Errorf("query plant %d: %w", id, err)
	}
	return p, nil
}

// Count returns the catalog size.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count plants: %w", err)
	}
	return n, nil
}

// SeedFromCSV loads the catalog dataset when the plants table is empty.
// Expected columns: name, growth, soil, sunlight, watering, fertilization,
// image_url (optional). A header row is detected and skipped.
func (r *Repository) SeedFromCSV(ctx context.Context, path string) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		r.logger.Debug("catalog already seeded", zap.Int("plants", count))
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // image_url column is optional

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	seeded := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read dataset line %d: %w", line, err)
		}
		if line == 1 && record[0] == "name" {
			continue
		}
		if len(record) < 6 {
			return fmt.Errorf("dataset line %d: expected at least 6 columns, got %d", line, len(record))
		}

		imageURL := ""
		if len(record) > 6 {
			imageURL = record[6]
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO plants (name, growth, soil, sunlight, watering, fertilization, image_url)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, record[0], record[1], record[2], record[3], record[4], record[5], imageURL)
		if err != nil {
			return fmt.Errorf("insert plant %q: %w", record[0], err)
		}
		seeded++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	r.logger.Info("seeded plant catalog", zap.Int("plants", seeded), zap.String("dataset", path))
	return nil
}
