package domain

import (
	"math"
	"sort"
)

// ScoreVector holds the raw relevance score of every corpus candidate for
// one scoring run, aligned with corpus order. It is computed freshly per
// request and immutable afterwards; the ascending copy is prepared once so
// percentile and rank lookups stay cheap.
type ScoreVector struct {
	scores    []float64
	ascending []float64
}

// NewScoreVector wraps raw per-candidate scores. The slice is copied.
func NewScoreVector(scores []float64) ScoreVector {
	s := make([]float64, len(scores))
	copy(s, scores)

	asc := make([]float64, len(scores))
	copy(asc, scores)
	sort.Float64s(asc)

	return ScoreVector{scores: s, ascending: asc}
}

// Len returns the number of scored candidates.
func (v ScoreVector) Len() int {
	return len(v.scores)
}

// At returns the raw score of the candidate at corpus index i.
func (v ScoreVector) At(i int) float64 {
	return v.scores[i]
}

// Min returns the lowest raw score. Zero for an empty vector.
func (v ScoreVector) Min() float64 {
	if len(v.ascending) == 0 {
		return 0
	}
	return v.ascending[0]
}

// Max returns the highest raw score. Zero for an empty vector.
func (v ScoreVector) Max() float64 {
	if len(v.ascending) == 0 {
		return 0
	}
	return v.ascending[len(v.ascending)-1]
}

// Normalized returns the min-max normalized score of candidate i rounded to
// two decimals. A single-valued vector normalizes to 0.0 for everyone.
func (v ScoreVector) Normalized(i int) float64 {
	spread := v.Max() - v.Min()
	if spread == 0 {
		return 0.0
	}
	return Round((v.scores[i]-v.Min())/spread, 2)
}

// Percentile returns the fraction of scores strictly below candidate i,
// rounded to three decimals.
func (v ScoreVector) Percentile(i int) float64 {
	if len(v.scores) == 0 {
		return 0.0
	}
	below := sort.SearchFloat64s(v.ascending, v.scores[i])
	return Round(float64(below)/float64(len(v.scores)), 3)
}

// DenseRank returns the 1-based rank of candidate i among distinct score
// values sorted descending. Tied scores share a rank.
func (v ScoreVector) DenseRank(i int) int {
	s := v.scores[i]
	rank := 1
	prev := math.Inf(1)
	for j := len(v.ascending) - 1; j >= 0; j-- {
		val := v.ascending[j]
		if val <= s {
			break
		}
		if val != prev {
			rank++
			prev = val
		}
	}
	return rank
}

// TopIndices returns the corpus indices of the n highest scores in
// descending score order. Ties break by ascending corpus index so results
// stay deterministic. n larger than the vector returns every index.
func (v ScoreVector) TopIndices(n int) []int {
	idx := make([]int, len(v.scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return v.scores[idx[a]] > v.scores[idx[b]]
	})
	if n < len(idx) {
		idx = idx[:n]
	}
	return idx
}

// PercentileValue returns the score at percentile p (0-100) using linear
// interpolation between the two nearest order statistics.
func (v ScoreVector) PercentileValue(p float64) float64 {
	n := len(v.ascending)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return v.ascending[0]
	}
	if p <= 0 {
		return v.ascending[0]
	}
	if p >= 100 {
		return v.ascending[n-1]
	}

	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	frac := rank - float64(lower)
	return v.ascending[lower] + frac*(v.ascending[lower+1]-v.ascending[lower])
}

// IndicesInRange returns every corpus index whose score falls within
// [lower, upper] inclusive, in ascending index order.
func (v ScoreVector) IndicesInRange(lower, upper float64) []int {
	var out []int
	for i, s := range v.scores {
		if s >= lower && s <= upper {
			out = append(out, i)
		}
	}
	return out
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(x*shift) / shift
}
