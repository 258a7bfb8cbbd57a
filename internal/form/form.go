// Package form collects a new movie from the terminal. It is the only place
// that checks field contents: every field must be non-blank and the release
// date must be a calendar date.
package form

import (
	"context"
	"fmt"

	"github.com/njoerd114/moviesync/internal/model"
)

// Form asks for the three movie fields in order.
type Form struct {
	p *Prompter
}

// New creates a Form that reads and writes through p.
func New(p *Prompter) *Form {
	return &Form{p: p}
}

// Collect prompts until every field is valid and returns the candidate. It
// stops early with the context's error when ctx is done between prompts, or
// with io.EOF when the input ends.
func (f *Form) Collect(ctx context.Context) (model.Candidate, error) {
	var c model.Candidate
	var err error

	if c.Title, err = f.field(ctx, "Title"); err != nil {
		return model.Candidate{}, err
	}
	if c.OpeningText, err = f.field(ctx, "Opening text"); err != nil {
		return model.Candidate{}, err
	}
	for {
		if c.ReleaseDate, err = f.field(ctx, "Release date (YYYY-MM-DD)"); err != nil {
			return model.Candidate{}, err
		}
		if _, err := model.ParseReleaseDate(c.ReleaseDate); err == nil {
			break
		}
		f.p.Printf("  (release date must be YYYY-MM-DD, e.g. 1977-05-25)\n")
	}

	if err := c.Validate(); err != nil {
		return model.Candidate{}, fmt.Errorf("collecting movie: %w", err)
	}
	return c, nil
}

func (f *Form) field(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.p.Required(label)
}
