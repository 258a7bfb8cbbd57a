// Package sync keeps the local movie list in step with the remote store and
// drives the visible state a UI renders from.
//
// [Controller] is the only component here. Every user trigger (load,
// refresh, add, delete, clear) goes through it; it sequences the repository
// call, the visible-state transitions, the single user notification, and the
// re-fetch that follows a successful mutation.
package sync

import (
	"context"

	"github.com/njoerd114/moviesync/internal/model"
)

// Repository provides the movie operations the controller sequences.
// Implemented by [movies.Repository].
type Repository interface {
	ListAll(ctx context.Context) ([]model.Movie, error)
	Create(ctx context.Context, c model.Candidate) (model.Movie, error)
	DeleteOne(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
}

// Notifier receives the user-facing outcome of each operation.
// Implemented by the sinks in package notify.
type Notifier interface {
	NotifySuccess(message string)
	NotifyError(message string)
}
