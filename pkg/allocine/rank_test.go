package allocine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func moviesWithCounts(counts ...int) []Movie {
	movies := make([]Movie, 0, len(counts))
	for i, c := range counts {
		movies = append(movies, Movie{ID: string(rune('a' + i)), PosterURL: "u", WantToSeeCount: c})
	}
	return movies
}

func TestRank(t *testing.T) {
	input := moviesWithCounts(5, 80, 10, 80, 1)

	top := Rank(input, TopN)

	assert.Len(t, top, 3)
	assert.Equal(t, []int{80, 80, 10}, []int{top[0].WantToSeeCount, top[1].WantToSeeCount, top[2].WantToSeeCount})
	assert.Equal(t, "b", top[0].ID)
	assert.Equal(t, "d", top[1].ID)
	assert.Equal(t, "c", top[2].ID)

	assert.Equal(t, 5, input[0].WantToSeeCount, "input must not be reordered")
}

func TestRank_FewerThanN(t *testing.T) {
	top := Rank(moviesWithCounts(1, 2), TopN)
	assert.Len(t, top, 2)
	assert.Equal(t, 2, top[0].WantToSeeCount)

	assert.Empty(t, Rank(nil, TopN))
	assert.Empty(t, Rank(moviesWithCounts(1), 0))
}

func TestRank_Deterministic(t *testing.T) {
	input := moviesWithCounts(3, 3, 3, 3)
	assert.Equal(t, Rank(input, TopN), Rank(input, TopN))
	assert.Equal(t, "a", Rank(input, TopN)[0].ID)
}
