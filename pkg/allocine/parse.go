package allocine

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// SkippedEntry describes an entity that did not produce a Movie.
type SkippedEntry struct {
	Key    string
	Reason string
}

// ParseResult holds the movies parsed from the entities and the entries that were dropped.
type ParseResult struct {
	Movies  []Movie
	Skipped []SkippedEntry
}

// ReasonNotObject is the SkippedEntry reason for entities that are not JSON objects.
const ReasonNotObject = "not an object"

// ReasonMissingFields is the SkippedEntry reason for movies without id or poster url.
const ReasonMissingFields = "missing id or poster url"

// ParseMovies converts decoded entities into movies. Entities are visited in page order, a plain
// map in key order, and each entry is isolated: a malformed entry is reported in Skipped and never
// aborts the others. It fails with ErrParse only when raw itself is not an object.
func ParseMovies(raw any) (result *ParseResult, err error) {
	var keys []string
	var entities map[string]any

	switch e := raw.(type) {
	case Entities:
		keys, entities = e.orderedKeys(), e.Values
	case *Entities:
		if e == nil {
			return nil, fmt.Errorf("%w: nil entities", ErrParse)
		}
		keys, entities = e.orderedKeys(), e.Values
	default:
		m, ok := ValueOf(raw).object()
		if !ok {
			return nil, fmt.Errorf("%w: expected an entities object, got %T", ErrParse, raw)
		}
		keys, entities = slices.Sorted(maps.Keys(m)), m
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: failed to iterate entities: %v", ErrParse, r)
		}
	}()

	result = &ParseResult{Movies: make([]Movie, 0, len(keys))}
	for _, key := range keys {
		entry := ValueOf(entities[key])
		if !entry.IsObject() {
			result.Skipped = append(result.Skipped, SkippedEntry{Key: key, Reason: ReasonNotObject})
			continue
		}

		movie, err := parseMovie(entry)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedEntry{Key: key, Reason: err.Error()})
			continue
		}

		if movie.ID == "" || movie.PosterURL == "" {
			result.Skipped = append(result.Skipped, SkippedEntry{Key: key, Reason: ReasonMissingFields})
			continue
		}

		result.Movies = append(result.Movies, movie)
	}

	return result, nil
}

func parseMovie(entry Value) (movie Movie, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected entry shape: %v", r)
		}
	}()

	var errs []error
	field := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	var e error
	movie.ID, e = entry.Get("id").String("")
	field("id", e)
	movie.ID = strings.TrimSpace(movie.ID)

	movie.Title, e = entry.Get("title").String("Unknown")
	field("title", e)

	movie.PosterURL, e = posterURL(entry.Get("poster"))
	field("poster.url", e)

	movie.ReleaseDate, e = entry.Get("releaseDate").String("")
	field("releaseDate", e)

	movie.WantToSeeCount, e = wantToSeeCount(entry.Get("social"))
	field("social.user_note_i_want_to_see_count", e)

	if err := errors.Join(errs...); err != nil {
		return Movie{}, err
	}

	return movie, nil
}

func posterURL(poster Value) (string, error) {
	if !poster.IsObject() {
		return "", nil
	}
	u, err := poster.Get("url").String("")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(u), nil
}

func wantToSeeCount(social Value) (int, error) {
	if social.IsNull() {
		return 0, nil
	}
	if !social.IsObject() {
		return 0, fmt.Errorf("expected an object, got %T", social.v)
	}
	n, err := social.Get("user_note_i_want_to_see_count").Int(0)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
