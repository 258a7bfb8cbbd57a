// Package movies implements the movie repository on top of the store client
// and the counter guard: list, create, delete-one and delete-all.
//
// The store has no transactions. Every operation that touches both the
// collection and the counter does so with separate requests, collection
// first. When the collection write succeeds and the counter write fails, the
// collection change stands and the counter drifts; [Repository.RepairCounter]
// brings it back in line.
package movies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/njoerd114/moviesync/internal/model"
	"github.com/njoerd114/moviesync/internal/store"
)

// CollectionPath is the store path holding every movie keyed by its
// generated ID.
const CollectionPath = "movies"

// ErrInvalidID is returned for an ID that cannot name a single record.
var ErrInvalidID = errors.New("invalid movie id")

// Characters the store forbids in keys. A "/" would address a parent or a
// field instead of one record.
const forbiddenKeyChars = "/.#$[]"

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, forbiddenKeyChars) {
		return fmt.Errorf("%w %q: must not contain any of %q", ErrInvalidID, id, forbiddenKeyChars)
	}
	return nil
}

// Store is the subset of [store.Client] the repository needs.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, value any) (string, error)
	Delete(ctx context.Context, path string) error
}

// Counter is the capacity policy and counter bookkeeping.
// Implemented by [counter.Guard].
type Counter interface {
	CheckCapacity(ctx context.Context) error
	Current(ctx context.Context) (int, error)
	Increment(ctx context.Context) error
	Decrement(ctx context.Context) error
	Reset(ctx context.Context, value int) error
}

// Repository exposes the movie collection as an ordered list of records.
type Repository struct {
	store   Store
	counter Counter
	log     *slog.Logger
}

// NewRepository creates a Repository wired to the given store and counter.
func NewRepository(s Store, c Counter, logger *slog.Logger) *Repository {
	return &Repository{store: s, counter: c, log: logger}
}

// ListAll fetches the whole collection in the store's key order. An absent
// collection is an empty list, not an error.
func (r *Repository) ListAll(ctx context.Context) ([]model.Movie, error) {
	raw, err := r.store.Get(ctx, CollectionPath)
	if errors.Is(err, store.ErrNotFound) {
		return []model.Movie{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching movies: %w", err)
	}

	movies, err := decodeCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding movies: %w", err)
	}
	return movies, nil
}

// Create stores c as a new movie and returns it with its generated ID.
//
// When the counter is at the ceiling, Create returns an error wrapping
// [counter.ErrLimitReached] and performs no write. A counter update failure
// after the movie was stored is logged only: the movie exists and the call
// succeeds.
func (r *Repository) Create(ctx context.Context, c model.Candidate) (model.Movie, error) {
	if err := r.counter.CheckCapacity(ctx); err != nil {
		return model.Movie{}, err
	}

	id, err := r.store.Post(ctx, CollectionPath, c)
	if err != nil {
		return model.Movie{}, fmt.Errorf("creating movie %q: %w", c.Title, err)
	}
	movie := c.Movie(id)
	r.log.Info("movie created", "id", id, "title", c.Title)

	if err := r.counter.Increment(ctx); err != nil {
		r.log.Error("movie created but counter not incremented", "id", id, "error", err)
	}
	return movie, nil
}

// DeleteOne removes the movie with the given ID, then decrements the
// counter. A counter failure after the delete is logged only.
func (r *Repository) DeleteOne(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return fmt.Errorf("deleting movie: %w", err)
	}
	if err := r.store.Delete(ctx, CollectionPath+"/"+id); err != nil {
		return fmt.Errorf("deleting movie %s: %w", id, err)
	}
	r.log.Info("movie deleted", "id", id)

	if err := r.counter.Decrement(ctx); err != nil {
		r.log.Error("movie deleted but counter not decremented", "id", id, "error", err)
	}
	return nil
}

// ClearAll deletes the whole collection and resets the counter to 0. The
// counter is left untouched when the collection delete fails.
func (r *Repository) ClearAll(ctx context.Context) error {
	if err := r.store.Delete(ctx, CollectionPath); err != nil {
		return fmt.Errorf("deleting all movies: %w", err)
	}
	r.log.Info("all movies deleted")

	if err := r.counter.Reset(ctx, 0); err != nil {
		r.log.Error("movies cleared but counter not reset", "error", err)
	}
	return nil
}

// Drift reports the stored counter next to the real collection size.
func (r *Repository) Drift(ctx context.Context) (stored, actual int, err error) {
	stored, err = r.counter.Current(ctx)
	if err != nil {
		return 0, 0, err
	}
	movies, err := r.ListAll(ctx)
	if err != nil {
		return 0, 0, err
	}
	return stored, len(movies), nil
}

// RepairCounter overwrites the stored counter with the collection size and
// returns the value it replaced. It carries the same race window as every
// other counter update.
func (r *Repository) RepairCounter(ctx context.Context) (before, after int, err error) {
	before, after, err = r.Drift(ctx)
	if err != nil {
		return 0, 0, err
	}
	if before == after {
		return before, after, nil
	}
	if err := r.counter.Reset(ctx, after); err != nil {
		return before, before, err
	}
	r.log.Info("movie counter repaired", "from", before, "to", after)
	return before, after, nil
}
