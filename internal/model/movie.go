// Package model defines the movie types shared by the store adapters, the
// repository, and the sync controller.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the textual form of a release date ("YYYY-MM-DD"), the same
// value an HTML date input produces.
const DateLayout = "2006-01-02"

// ErrBlankField is returned by [Candidate.Validate] when a required field is
// empty or whitespace-only.
var ErrBlankField = errors.New("all fields are required")

// Movie is a single record of the remote movie collection.
type Movie struct {
	// ID is the key generated by the remote store on creation. It is never
	// generated client-side and never changes.
	ID string `json:"-"`

	// Title is the movie's display title.
	Title string `json:"title"`

	// OpeningText is the opening crawl / synopsis text.
	OpeningText string `json:"openingText"`

	// ReleaseDate is kept as the text the store holds. List order never
	// depends on it.
	ReleaseDate string `json:"releaseDate"`
}

// Candidate is a movie that has not been created yet. It is what the form
// collaborator submits and what the store receives as the POST body.
type Candidate struct {
	Title       string `json:"title"`
	OpeningText string `json:"openingText"`
	ReleaseDate string `json:"releaseDate"`
}

// Validate reports whether every field carries non-whitespace text. The
// returned error wraps [ErrBlankField] and names the first blank field.
func (c Candidate) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"title", c.Title},
		{"opening text", c.OpeningText},
		{"release date", c.ReleaseDate},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is empty: %w", f.name, ErrBlankField)
		}
	}
	return nil
}

// Movie returns the record the store will hold once it assigns id.
func (c Candidate) Movie(id string) Movie {
	return Movie{
		ID:          id,
		Title:       c.Title,
		OpeningText: c.OpeningText,
		ReleaseDate: c.ReleaseDate,
	}
}

// ParseReleaseDate parses s in [DateLayout]. Surrounding whitespace is ignored.
func ParseReleaseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("release date %q must be YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}
