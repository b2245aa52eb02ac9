package rank

import "github.com/verdantlab/floramatch/internal/domain"

// PreferImages stably partitions a candidate batch into image-bearing and
// imageless subsets, concatenates image-bearing first, and truncates to n.
// Relative arrival order survives within each subset; this is a preference
// pass, not a re-sort by score.
func PreferImages(items []domain.ScoredPlant, n int) []domain.ScoredPlant {
	if n <= 0 {
		return nil
	}

	withImage := make([]domain.ScoredPlant, 0, len(items))
	withoutImage := make([]domain.ScoredPlant, 0, len(items))
	for _, item := range items {
		if item.Plant.HasImage() {
			withImage = append(withImage, item)
		} else {
			withoutImage = append(withoutImage, item)
		}
	}

	out := append(withImage, withoutImage...)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
