package rank

import (
	"testing"

	"github.com/verdantlab/floramatch/internal/domain"
)

func TestEnrichLexical(t *testing.T) {
	v := domain.NewScoreVector([]float64{10, 5, 0})
	doc := Document{PlantID: 1, Tokens: []string{
		"1", "Aloe", "growth_fast", "soil_sandy", "water_low", "sun_full", "fertilizer_yes",
	}}
	queryTokens := []string{"water_low", "sun_full", "soil_loamy"}

	meta := EnrichLexical(v, 0, doc, queryTokens)

	if meta.ScoreRaw != 10 {
		t.Errorf("ScoreRaw = %.2f, want 10", meta.ScoreRaw)
	}
	if meta.ScoreNormalized != 1.0 {
		t.Errorf("ScoreNormalized = %.2f, want 1.0", meta.ScoreNormalized)
	}
	if meta.Percentile != 0.667 {
		t.Errorf("Percentile = %.3f, want 0.667", meta.Percentile)
	}
	if meta.DenseRank != 1 {
		t.Errorf("DenseRank = %d, want 1", meta.DenseRank)
	}

	lex := meta.Lexical
	if lex == nil {
		t.Fatal("Lexical diagnostics missing")
	}
	if meta.Semantic != nil {
		t.Error("Semantic diagnostics present on a lexical run")
	}

	wantMatched := []string{"water_low", "sun_full"}
	if len(lex.MatchedTerms) != len(wantMatched) {
		t.Fatalf("MatchedTerms = %v, want %v", lex.MatchedTerms, wantMatched)
	}
	for i := range wantMatched {
		if lex.MatchedTerms[i] != wantMatched[i] {
			t.Errorf("MatchedTerms[%d] = %q, want %q", i, lex.MatchedTerms[i], wantMatched[i])
		}
	}

	wantUnmatched := []string{"growth_fast", "soil_sandy", "fertilizer_yes"}
	if len(lex.UnmatchedTerms) != len(wantUnmatched) {
		t.Fatalf("UnmatchedTerms = %v, want %v", lex.UnmatchedTerms, wantUnmatched)
	}

	if lex.MatchCount != 2 || lex.MaxMatches != 5 {
		t.Errorf("MatchCount/MaxMatches = %d/%d, want 2/5", lex.MatchCount, lex.MaxMatches)
	}
	if lex.MatchRatio != 0.4 {
		t.Errorf("MatchRatio = %.2f, want 0.40", lex.MatchRatio)
	}
}

func TestEnrichLexical_NoDescribableTokens(t *testing.T) {
	v := domain.NewScoreVector([]float64{0})
	doc := Document{PlantID: 1, Tokens: []string{"1", "Aloe"}}

	meta := EnrichLexical(v, 0, doc, []string{"water_low"})
	if meta.Lexical.MaxMatches != 0 || meta.Lexical.MatchRatio != 0 {
		t.Errorf("degenerate document: MaxMatches=%d MatchRatio=%.2f, want 0/0.00",
			meta.Lexical.MaxMatches, meta.Lexical.MatchRatio)
	}
}

func TestEnrichSemantic(t *testing.T) {
	v := domain.NewScoreVector([]float64{0.91, 0.85, 0.12})

	meta := EnrichSemantic(v, 1)

	if meta.ScoreRaw != 0.85 {
		t.Errorf("ScoreRaw = %.2f, want 0.85", meta.ScoreRaw)
	}
	if meta.DenseRank != 2 {
		t.Errorf("DenseRank = %d, want 2", meta.DenseRank)
	}

	sem := meta.Semantic
	if sem == nil {
		t.Fatal("Semantic diagnostics missing")
	}
	if meta.Lexical != nil {
		t.Error("Lexical diagnostics present on a semantic run")
	}
	if sem.CosineDistance != 0.15 {
		t.Errorf("CosineDistance = %.4f, want 0.15", sem.CosineDistance)
	}
	if sem.GapToBest != 0.06 {
		t.Errorf("GapToBest = %.4f, want 0.06", sem.GapToBest)
	}
}

func TestEnrichSemantic_BestCandidate(t *testing.T) {
	v := domain.NewScoreVector([]float64{0.91, 0.85})

	meta := EnrichSemantic(v, 0)
	if meta.Semantic.GapToBest != 0 {
		t.Errorf("GapToBest for the best candidate = %.4f, want 0", meta.Semantic.GapToBest)
	}
	if meta.DenseRank != 1 {
		t.Errorf("DenseRank = %d, want 1", meta.DenseRank)
	}
}
