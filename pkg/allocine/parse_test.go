package allocine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func movieEntity(id any, posterURL string, count any) map[string]any {
	return map[string]any{
		"id":          id,
		"title":       "Movie " + posterURL,
		"poster":      map[string]any{"url": posterURL},
		"releaseDate": "2026-10-21",
		"social":      map[string]any{"user_note_i_want_to_see_count": count},
	}
}

func TestParseMovies_SkipsMalformedEntries(t *testing.T) {
	raw := map[string]any{
		"a": movieEntity("1", "https://img/a.jpg", float64(10)),
		"b": "not a movie",
		"c": map[string]any{"id": "3", "title": "No poster"},
		"d": movieEntity(float64(4), "https://img/d.jpg", float64(5)),
		"e": movieEntity("5", "https://img/e.jpg", "7"),
	}

	result, err := ParseMovies(raw)
	require.NoError(t, err)

	require.Len(t, result.Movies, 3)
	assert.Equal(t, []string{"1", "4", "5"}, []string{result.Movies[0].ID, result.Movies[1].ID, result.Movies[2].ID})
	assert.Equal(t, 7, result.Movies[2].WantToSeeCount)

	assert.ElementsMatch(t, []SkippedEntry{
		{Key: "b", Reason: ReasonNotObject},
		{Key: "c", Reason: ReasonMissingFields},
	}, result.Skipped)

	for _, m := range result.Movies {
		assert.NotEmpty(t, m.ID)
		assert.NotEmpty(t, m.PosterURL)
		assert.Empty(t, m.LocalPosterPath)
	}
}

func TestParseMovies_Defaults(t *testing.T) {
	raw := map[string]any{
		"x": map[string]any{
			"id":     "42",
			"poster": map[string]any{"url": "https://img/x.jpg"},
		},
	}

	result, err := ParseMovies(raw)
	require.NoError(t, err)
	require.Len(t, result.Movies, 1)

	assert.Equal(t, Movie{
		ID:             "42",
		Title:          "Unknown",
		PosterURL:      "https://img/x.jpg",
		ReleaseDate:    "",
		WantToSeeCount: 0,
	}, result.Movies[0])
}

func TestParseMovies_EntryTypeMismatch(t *testing.T) {
	raw := map[string]any{
		"bad-social": map[string]any{
			"id":     "1",
			"poster": map[string]any{"url": "u"},
			"social": []any{1},
		},
		"bad-count": movieEntity("2", "u", "lots"),
		"negative":  movieEntity("3", "u", float64(-1)),
		"nested-id": map[string]any{"id": map[string]any{}, "poster": map[string]any{"url": "u"}},
		"poster-str": map[string]any{
			"id":     "5",
			"poster": "https://img/5.jpg",
		},
		"ok": movieEntity("6", "u", float64(1)),
	}

	result, err := ParseMovies(raw)
	require.NoError(t, err)

	require.Len(t, result.Movies, 1)
	assert.Equal(t, "6", result.Movies[0].ID)
	assert.Len(t, result.Skipped, 5)
}

func TestParseMovies_Empty(t *testing.T) {
	result, err := ParseMovies(map[string]any{"a": 1.0, "b": nil})
	require.NoError(t, err)
	assert.Empty(t, result.Movies)
}

func TestParseMovies_NotAnObject(t *testing.T) {
	for _, raw := range []any{nil, []any{1}, "str", 3.0} {
		_, err := ParseMovies(raw)
		assert.ErrorIs(t, err, ErrParse)
	}
}

func TestParseMovies_NullSocialKeepsEntry(t *testing.T) {
	raw := map[string]any{
		"a": map[string]any{
			"id":     "1",
			"poster": map[string]any{"url": "https://img/a.jpg"},
			"social": nil,
		},
	}

	result, err := ParseMovies(raw)
	require.NoError(t, err)

	require.Len(t, result.Movies, 1)
	assert.Equal(t, 0, result.Movies[0].WantToSeeCount)
	assert.Empty(t, result.Skipped)
}

func TestParseMovies_EntitiesKeepPageOrder(t *testing.T) {
	raw := Entities{
		Keys: []string{"zz", "mm", "bb", "aa"},
		Values: map[string]any{
			"aa": movieEntity("4", "https://img/4.jpg", float64(50)),
			"bb": movieEntity("3", "https://img/3.jpg", float64(50)),
			"mm": movieEntity("2", "https://img/2.jpg", float64(50)),
			"zz": movieEntity("1", "https://img/1.jpg", float64(50)),
		},
	}

	result, err := ParseMovies(raw)
	require.NoError(t, err)

	ids := make([]string, 0, len(result.Movies))
	for _, m := range result.Movies {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
}

func TestParseMovies_EntitiesMissingKeys(t *testing.T) {
	raw := &Entities{
		Keys: []string{"b", "gone"},
		Values: map[string]any{
			"a": movieEntity("1", "https://img/1.jpg", float64(1)),
			"b": movieEntity("2", "https://img/2.jpg", float64(1)),
			"c": movieEntity("3", "https://img/3.jpg", float64(1)),
		},
	}

	result, err := ParseMovies(raw)
	require.NoError(t, err)

	require.Len(t, result.Movies, 3)
	assert.Equal(t, []string{"2", "1", "3"}, []string{result.Movies[0].ID, result.Movies[1].ID, result.Movies[2].ID})

	_, err = ParseMovies((*Entities)(nil))
	assert.ErrorIs(t, err, ErrParse)
}
