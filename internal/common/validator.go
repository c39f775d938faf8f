package common

import (
	"errors"
	"regexp"
	"strings"
)

var movieIDRE = regexp.MustCompile(`^[A-Za-z0-9_=-]{1,128}$`)

// ValidateMovieID checks if the given Allocine movie ID is valid.
// Allocine ids are numeric or base64-like strings.
func ValidateMovieID(id string) error {
	if !movieIDRE.MatchString(id) {
		return errors.New("invalid movie id")
	}

	return nil
}

// PosterMovieID extracts the movie id from a poster path segment, accepting an optional .jpg suffix.
func PosterMovieID(segment string) (string, error) {
	id := strings.TrimSuffix(segment, ".jpg")
	if err := ValidateMovieID(id); err != nil {
		return "", err
	}

	return id, nil
}
