package allocine

import (
	"cmp"
	"slices"
)

// Rank returns the n most awaited movies, highest WantToSeeCount first. Movies with equal counts
// keep their input order. The input slice is not modified.
func Rank(movies []Movie, n int) []Movie {
	ranked := slices.Clone(movies)
	slices.SortStableFunc(ranked, func(a, b Movie) int {
		return cmp.Compare(b.WantToSeeCount, a.WantToSeeCount)
	})

	n = max(n, 0)
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}
