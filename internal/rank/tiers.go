package rank

import (
	"math/rand"
	"sync"

	"github.com/verdantlab/floramatch/internal/domain"
)

// TierConfig holds the percentile bands and padding for tier partitioning.
// Padding fetches extra candidates beyond the requested count so the later
// image-preference pass can trade a no-image candidate for an image-bearing
// one without shrinking the tier below the request.
type TierConfig struct {
	Padding          int
	GoodLowerPct     float64
	GoodUpperPct     float64
	MismatchLowerPct float64
	MismatchUpperPct float64
}

// DefaultTierConfig returns the deployed band defaults: good fits in the
// 70th-90th percentile, mismatches in the 5th-20th.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		Padding:          10,
		GoodLowerPct:     70,
		GoodUpperPct:     90,
		MismatchLowerPct: 5,
		MismatchUpperPct: 20,
	}
}

// Partitioner splits one run's score vector into tier candidate sets. The
// random source is injected so band sub-sampling is reproducible in tests.
type Partitioner struct {
	cfg TierConfig

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewPartitioner creates a partitioner with the given band config and
// random source.
func NewPartitioner(cfg TierConfig, rng *rand.Rand) *Partitioner {
	return &Partitioner{cfg: cfg, rng: rng}
}

// Perfect returns the corpus indices of the n+padding highest-scoring
// candidates, descending by score with ties broken by corpus index.
func (p *Partitioner) Perfect(v domain.ScoreVector, n int) []int {
	if n <= 0 {
		return nil
	}
	return v.TopIndices(n + p.cfg.Padding)
}

// Good returns up to n+padding candidate indices whose score falls inside
// the good percentile band.
func (p *Partitioner) Good(v domain.ScoreVector, n int) []int {
	return p.band(v, n, p.cfg.GoodLowerPct, p.cfg.GoodUpperPct)
}

// Mismatch returns up to n+padding candidate indices whose score falls
// inside the mismatch percentile band.
func (p *Partitioner) Mismatch(v domain.ScoreVector, n int) []int {
	return p.band(v, n, p.cfg.MismatchLowerPct, p.cfg.MismatchUpperPct)
}

// band collects every index inside the inclusive percentile band and, when
// the band holds more members than n+padding, keeps a uniform sample
// without replacement. Fewer members than requested is accepted, not an
// error; a degenerate score vector may collapse the band to a single value
// or leave it empty.
func (p *Partitioner) band(v domain.ScoreVector, n int, lowerPct, upperPct float64) []int {
	if n <= 0 {
		return nil
	}

	lower := v.PercentileValue(lowerPct)
	upper := v.PercentileValue(upperPct)
	members := v.IndicesInRange(lower, upper)

	limit := n + p.cfg.Padding
	if len(members) <= limit {
		return members
	}

	p.mu.Lock()
	p.rng.Shuffle(len(members), func(i, j int) {
		members[i], members[j] = members[j], members[i]
	})
	p.mu.Unlock()
	return members[:limit]
}
