package rank

import (
	"github.com/verdantlab/floramatch/internal/domain"
)

// EnrichLexical computes the provenance metadata for one surfaced candidate
// of a BM25 run: the shared score fields plus the matched/unmatched term
// partition of the candidate's describable tokens against the query tokens.
func EnrichLexical(v domain.ScoreVector, i int, doc Document, queryTokens []string) domain.Metadata {
	querySet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = struct{}{}
	}

	describable := doc.DescribableTokens()
	matched := make([]string, 0, len(describable))
	unmatched := make([]string, 0, len(describable))
	for _, tok := range describable {
		if _, ok := querySet[tok]; ok {
			matched = append(matched, tok)
		} else {
			unmatched = append(unmatched, tok)
		}
	}

	ratio := 0.0
	if len(describable) > 0 {
		ratio = domain.Round(float64(len(matched))/float64(len(describable)), 2)
	}

	return domain.Metadata{
		ScoreRaw:        v.At(i),
		ScoreNormalized: v.Normalized(i),
		Percentile:      v.Percentile(i),
		DenseRank:       v.DenseRank(i),
		Lexical: &domain.LexicalDiagnostics{
			MatchedTerms:   matched,
			UnmatchedTerms: unmatched,
			MatchCount:     len(matched),
			MaxMatches:     len(describable),
			MatchRatio:     ratio,
		},
	}
}

// EnrichSemantic computes the provenance metadata for one surfaced
// candidate of an embedding run.
func EnrichSemantic(v domain.ScoreVector, i int) domain.Metadata {
	return domain.Metadata{
		ScoreRaw:        v.At(i),
		ScoreNormalized: v.Normalized(i),
		Percentile:      v.Percentile(i),
		DenseRank:       v.DenseRank(i),
		Semantic: &domain.SemanticDiagnostics{
			CosineDistance: domain.Round(1-v.At(i), 4),
			GapToBest:      domain.Round(v.Max()-v.At(i), 4),
		},
	}
}
