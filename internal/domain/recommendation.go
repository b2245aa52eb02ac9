package domain

import "time"

// Tier labels one bucket of recommendation quality.
type Tier string

const (
	TierPerfect  Tier = "perfect"
	TierGood     Tier = "good"
	TierMismatch Tier = "mismatch"
)

// Tiers lists the buckets in presentation order.
var Tiers = []Tier{TierPerfect, TierGood, TierMismatch}

// Algorithm tags which ranking strategy produced a recommendation.
type Algorithm string

const (
	AlgorithmBM25      Algorithm = "bm25"
	AlgorithmEmbedding Algorithm = "embedding"
)

// LexicalDiagnostics is the lexical scorer's per-candidate explanation:
// which of the candidate's describable tokens the query matched.
type LexicalDiagnostics struct {
	MatchedTerms   []string
	UnmatchedTerms []string
	MatchCount     int
	MaxMatches     int
	MatchRatio     float64
}

// SemanticDiagnostics is the embedding scorer's per-candidate explanation.
type SemanticDiagnostics struct {
	CosineDistance float64
	GapToBest      float64
}

// Metadata is the provenance attached to every surfaced candidate. The
// shared fields are computed against the full score vector of the run;
// exactly one of the algorithm-specific diagnostics is set.
type Metadata struct {
	ScoreRaw        float64
	ScoreNormalized float64
	Percentile      float64
	DenseRank       int

	Lexical  *LexicalDiagnostics
	Semantic *SemanticDiagnostics
}

// ScoredPlant pairs a surfaced candidate with its run metadata.
type ScoredPlant struct {
	Plant Plant
	Meta  Metadata
}

// TierResult is the final, image-preferred ordering of one tier.
// Its length never exceeds the requested count for that tier.
type TierResult struct {
	Tier  Tier
	Items []ScoredPlant
}

// Submission is one recorded user query, structured or free text. A rating
// may be attached after the recommendations have been reviewed.
type Submission struct {
	ID        int64
	FreeText  string
	CreatedAt time.Time
	Rating    *int
}

// RecommendationRecord is the durable row written for one surfaced
// candidate. Created only after a completed ranking run, never mutated,
// deleted only by bulk purge.
type RecommendationRecord struct {
	ID           int64
	SubmissionID int64
	Tier         Tier
	Algorithm    Algorithm
	PlantID      int64
	Meta         Metadata
}
