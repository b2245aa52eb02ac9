package rank

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/verdantlab/floramatch/internal/domain"
)

// SemanticScorer is the embedding ranking strategy: cosine similarity
// between precomputed catalog sentence embeddings and the per-request query
// embedding.
//
// Lifecycle: Refresh is called once at process start and again only on an
// explicit catalog-refresh trigger; between refreshes the corpus state is
// read-only, so concurrent Score calls need no coordination beyond the
// swap lock. Catalog changes without a refresh are an accepted staleness
// window.
type SemanticScorer struct {
	embedder domain.Embedder

	mu      sync.RWMutex
	plants  []domain.Plant
	vectors [][]float32
}

// NewSemanticScorer creates an embedding scorer. Refresh must run before
// the first Score call.
func NewSemanticScorer(embedder domain.Embedder) *SemanticScorer {
	return &SemanticScorer{embedder: embedder}
}

// Refresh rebuilds the corpus embeddings from the current catalog state.
// The previous corpus keeps serving readers until the swap.
func (s *SemanticScorer) Refresh(ctx context.Context, plants []domain.Plant) error {
	if len(plants) == 0 {
		return domain.ErrEmptyCatalog
	}

	sentences := BuildSentences(plants)
	res, err := domain.BatchEmbedAll(ctx, s.embedder, sentences)
	if err != nil {
		return fmt.Errorf("embed catalog: %w", err)
	}

	snapshot := make([]domain.Plant, len(plants))
	copy(snapshot, plants)

	s.mu.Lock()
	s.plants = snapshot
	s.vectors = res.Embeddings
	s.mu.Unlock()

	return nil
}


// Ready reports whether corpus embeddings have been built.
func (s *SemanticScorer) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors) > 0
}

// CorpusSize returns the number of embedded candidates.
func (s *SemanticScorer) CorpusSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Algorithm implements Scorer.
func (s *SemanticScorer) Algorithm() domain.Algorithm {
	return domain.AlgorithmEmbedding
}

// Score implements Scorer for free-text queries. Empty text scores every
// candidate 0 without calling the embedding provider.
func (s *SemanticScorer) Score(ctx context.Context, q domain.Query) (domain.ScoreVector, error) {
	v, _, err := s.ScoreSnapshot(ctx, q)
	return v, err
}

// ScoreSnapshot scores a free-text query and returns the catalog snapshot
// the vector aligns to. Vectors and snapshot are captured in one critical
// section: a Refresh landing while the query embedding is in flight swaps
// the corpus for later calls but cannot misalign this one.
func (s *SemanticScorer) ScoreSnapshot(ctx context.Context, q domain.Query) (domain.ScoreVector, []domain.Plant, error) {
	freeText, ok := q.(domain.FreeTextQuery)
	if !ok {
		return domain.ScoreVector{}, nil, domain.ErrQueryKind
	}

	s.mu.RLock()
	plants := s.plants
	vectors := s.vectors
	s.mu.RUnlock()

	if len(vectors) == 0 {
		return domain.ScoreVector{}, nil, domain.ErrEmptyCatalog
	}

	if freeText.IsEmpty() {
		return domain.NewScoreVector(make([]float64, len(vectors))), plants, nil
	}

	res, err := s.embedder.Embed(ctx, freeText.Text)
	if err != nil {
		return domain.ScoreVector{}, nil, fmt.Errorf("embed query: %w", err)
	}

	scores := make([]float64, len(vectors))
	for i, vec := range vectors {
		scores[i] = cosineSimilarity(vec, res.Embedding)
	}

	return domain.NewScoreVector(scores), plants, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// 0 when either vector is empty, zero, or the dimensions differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
