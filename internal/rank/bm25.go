package rank

import (
	"context"
	"math"

	"github.com/verdantlab/floramatch/internal/domain"
)

// Okapi BM25 smoothing constants.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// Scorer computes one relevance score per corpus candidate for a query.
// Implementations must be deterministic given identical corpus and query
// content within one service run.
type Scorer interface {
	Algorithm() domain.Algorithm
	Score(ctx context.Context, q domain.Query) (domain.ScoreVector, error)
}

// BM25Scorer is the lexical ranking strategy: Okapi BM25 over whitespace
// tokens with namespaced attribute vocabulary. Term statistics are computed
// once per corpus at construction; scoring itself is allocation-light.
type BM25Scorer struct {
	docs      []Document
	termFreqs []map[string]int
	docLens   []float64
	avgDocLen float64
	idf       map[string]float64
}

// NewBM25Scorer precomputes document frequencies and IDF values for the
// given corpus.
func NewBM25Scorer(corpus []Document) (*BM25Scorer, error) {
	if len(corpus) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	s := &BM25Scorer{
		docs:      corpus,
		termFreqs: make([]map[string]int, len(corpus)),
		docLens:   make([]float64, len(corpus)),
	}

	docFreqs := make(map[string]int)
	var totalLen float64

	for i, doc := range corpus {
		freqs := make(map[string]int, len(doc.Tokens))
		for _, tok := range doc.Tokens {
			freqs[tok]++
		}
		for tok := range freqs {
			docFreqs[tok]++
		}
		s.termFreqs[i] = freqs
		s.docLens[i] = float64(len(doc.Tokens))
		totalLen += float64(len(doc.Tokens))
	}

	s.avgDocLen = totalLen / float64(len(corpus))
	s.idf = calcIDF(docFreqs, len(corpus))

	return s, nil
}

// calcIDF computes per-term inverse document frequency. Terms present in
// more than half the corpus get a negative raw IDF; those are floored to
// epsilon times the average IDF so common terms still contribute a small
// positive weight.
func calcIDF(docFreqs map[string]int, corpusSize int) map[string]float64 {
	idf := make(map[string]float64, len(docFreqs))
	var idfSum float64
	var negative []string

	for term, freq := range docFreqs {
		v := math.Log(float64(corpusSize)-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		idf[term] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}

	eps := bm25Epsilon * idfSum / float64(len(docFreqs))
	for _, term := range negative {
		idf[term] = eps
	}

	return idf
}

// Algorithm implements Scorer.
func (s *BM25Scorer) Algorithm() domain.Algorithm {
	return domain.AlgorithmBM25
}

// Score implements Scorer for structured questionnaire queries. An empty
// query (all answers "don't care") scores every candidate 0, which is a
// valid degenerate run rather than an error.
func (s *BM25Scorer) Score(_ context.Context, q domain.Query) (domain.ScoreVector, error) {
	structured, ok := q.(domain.StructuredQuery)
	if !ok {
		return domain.ScoreVector{}, domain.ErrQueryKind
	}
	if structured.IsEmpty() {
		return domain.NewScoreVector(make([]float64, len(s.docs))), nil
	}

	tokens := BuildLexicalQuery(structured)

	scores := make([]float64, len(s.docs))
	for _, term := range tokens {
		idf, known := s.idf[term]
		if !known {
			continue
		}
		for i := range s.docs {
			f := float64(s.termFreqs[i][term])
			if f == 0 {
				continue
			}
			norm := f + bm25K1*(1-bm25B+bm25B*s.docLens[i]/s.avgDocLen)
			scores[i] += idf * f * (bm25K1 + 1) / norm
		}
	}

	return domain.NewScoreVector(scores), nil
}
