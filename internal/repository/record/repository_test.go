package record

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/domain"
	"github.com/verdantlab/floramatch/internal/storage"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), 5000, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// Satisfy the plant_id foreign key for recommendation rows.
	_, err = store.DB().Exec(`
		INSERT INTO plants (id, name, growth, soil, sunlight, watering, fertilization)
		VALUES (1, 'Aloe', 'slow', 'sandy', 'full sunlight', 'water when soil is dry', 'no'),
		       (2, 'Monstera', 'fast', 'well-drained', 'indirect sunlight', 'water when topsoil is dry', 'balanced')
	`)
	require.NoError(t, err)

	return New(store.DB(), zap.NewNop())
}

func sampleTiers() []domain.TierResult {
	return []domain.TierResult{
		{Tier: domain.TierPerfect, Items: []domain.ScoredPlant{
			{
				Plant: domain.Plant{ID: 1},
				Meta: domain.Metadata{
					ScoreRaw: 9.1, ScoreNormalized: 1.0, Percentile: 0.667, DenseRank: 1,
					Lexical: &domain.LexicalDiagnostics{
						MatchedTerms:   []string{"water_low"},
						UnmatchedTerms: []string{"soil_sandy"},
						MatchCount:     1, MaxMatches: 2, MatchRatio: 0.5,
					},
				},
			},
		}},
		{Tier: domain.TierMismatch, Items: []domain.ScoredPlant{
			{
				Plant: domain.Plant{ID: 2},
				Meta:  domain.Metadata{ScoreRaw: 0.2, DenseRank: 2},
			},
		}},
	}
}

func TestCreateSubmissionAndRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	subID, err := repo.CreateSubmission(ctx, "", nil)
	require.NoError(t, err)
	require.Positive(t, subID)

	err = repo.RecordRecommendations(ctx, subID, domain.AlgorithmBM25, sampleTiers())
	require.NoError(t, err)

	history, err := repo.ListAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, subID, history[0].Submission.ID)
	require.Nil(t, history[0].Submission.Rating)
	require.Len(t, history[0].Records, 2)

	first := history[0].Records[0]
	require.Equal(t, domain.TierPerfect, first.Tier)
	require.Equal(t, domain.AlgorithmBM25, first.Algorithm)
	require.Equal(t, int64(1), first.PlantID)
	require.Equal(t, 9.1, first.Meta.ScoreRaw)
	require.NotNil(t, first.Meta.Lexical)
	require.Equal(t, []string{"water_low"}, first.Meta.Lexical.MatchedTerms)
	require.Nil(t, first.Meta.Semantic)

	second := history[0].Records[1]
	require.Equal(t, domain.TierMismatch, second.Tier)
	require.Nil(t, second.Meta.Lexical)
}

func TestRecordRecommendations_PartialWrite(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	subID, err := repo.CreateSubmission(ctx, "", nil)
	require.NoError(t, err)

	tiers := sampleTiers()
	// Unknown plant id violates the foreign key on the second row.
	tiers[1].Items[0].Plant.ID = 999

	err = repo.RecordRecommendations(ctx, subID, domain.AlgorithmBM25, tiers)
	require.ErrorIs(t, err, domain.ErrPartialWrite)

	var pw *domain.PartialWriteError
	require.ErrorAs(t, err, &pw)
	require.Equal(t, 1, pw.Recorded)
	require.Equal(t, 2, pw.Total)

	// The durable prefix survives.
	history, err := repo.ListAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, history[0].Records, 1)
}

func TestRateSubmission(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	subID, err := repo.CreateSubmission(ctx, "a shade plant", nil)
	require.NoError(t, err)

	require.NoError(t, repo.RateSubmission(ctx, subID, 4))

	history, err := repo.ListAll(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, history[0].Submission.Rating)
	require.Equal(t, 4, *history[0].Submission.Rating)
}

func TestRateSubmission_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.RateSubmission(context.Background(), 12345, 5)
	require.ErrorIs(t, err, domain.ErrSubmissionNotFound)
}

func TestListAll_FiltersUnrated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rated, err := repo.CreateSubmission(ctx, "", nil)
	require.NoError(t, err)
	_, err = repo.CreateSubmission(ctx, "", nil)
	require.NoError(t, err)

	require.NoError(t, repo.RateSubmission(ctx, rated, 5))

	all, err := repo.ListAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)

	ratedOnly, err := repo.ListAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, ratedOnly, 1)
	require.Equal(t, rated, ratedOnly[0].Submission.ID)
}

func TestPurgeAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	subID, err := repo.CreateSubmission(ctx, "", nil)
	require.NoError(t, err)
	require.NoError(t, repo.RecordRecommendations(ctx, subID, domain.AlgorithmEmbedding, sampleTiers()))

	deleted, err := repo.PurgeAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	history, err := repo.ListAll(ctx, true)
	require.NoError(t, err)
	require.Empty(t, history)
}
