package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/njoerd114/moviesync/internal/counter"
	"github.com/njoerd114/moviesync/internal/model"
)

// --- Mock repository ---------------------------------------------------------

type mockRepo struct {
	mu      sync.Mutex
	movies  []model.Movie
	ceiling int
	nextID  int

	listErr   error
	createErr error
	deleteErr error
	clearErr  error

	// block, when set, is received from at the start of ListAll so a test
	// can hold a trigger in flight.
	block chan struct{}

	lists, creates, deletes, clears int
}

func newMockRepo(movies ...model.Movie) *mockRepo {
	return &mockRepo{movies: movies, ceiling: 5}
}

func (m *mockRepo) ListAll(ctx context.Context) ([]model.Movie, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]model.Movie{}, m.movies...), nil
}

func (m *mockRepo) Create(_ context.Context, c model.Candidate) (model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.movies) >= m.ceiling {
		return model.Movie{}, &counter.LimitError{Ceiling: m.ceiling, Current: len(m.movies)}
	}
	m.creates++
	if m.createErr != nil {
		return model.Movie{}, m.createErr
	}
	m.nextID++
	mv := c.Movie(fmt.Sprintf("id-%d", m.nextID))
	m.movies = append(m.movies, mv)
	return mv, nil
}

func (m *mockRepo) DeleteOne(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, mv := range m.movies {
		if mv.ID == id {
			m.movies = append(m.movies[:i], m.movies[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockRepo) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.movies = nil
	return nil
}

func (m *mockRepo) setListErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

func (m *mockRepo) listCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

// --- View recorder -----------------------------------------------------------

type viewLog struct {
	mu    sync.Mutex
	views []View
}

func (l *viewLog) record(v View) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.views = append(l.views, v)
}

func (l *viewLog) phases() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Phase, len(l.views))
	for i, v := range l.views {
		out[i] = v.Phase
	}
	return out
}
