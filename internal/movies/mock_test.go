package movies

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/njoerd114/moviesync/internal/counter"
	"github.com/njoerd114/moviesync/internal/model"
	"github.com/njoerd114/moviesync/internal/store"
)

// --- Mock store ------------------------------------------------------------

// mockStore keeps the collection as ordered keys plus values, and the
// counter as a raw JSON value, so it answers exactly like the remote store.
type mockStore struct {
	mu      sync.Mutex
	keys    []string
	values  map[string]model.Candidate
	counter string // "" means absent
	nextKey int

	// Failure injection, keyed by "METHOD path".
	fail map[string]error

	calls []string
}

func newMockStore() *mockStore {
	return &mockStore{values: make(map[string]model.Candidate), fail: make(map[string]error)}
}

func (m *mockStore) seed(counterRaw string, movies ...model.Movie) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range movies {
		m.keys = append(m.keys, mv.ID)
		m.values[mv.ID] = model.Candidate{Title: mv.Title, OpeningText: mv.OpeningText, ReleaseDate: mv.ReleaseDate}
	}
	m.counter = counterRaw
}

func (m *mockStore) record(method, path string) error {
	call := method + " " + path
	m.calls = append(m.calls, call)
	return m.fail[call]
}

func (m *mockStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GET", path); err != nil {
		return nil, err
	}

	switch path {
	case counter.Path:
		if m.counter == "" {
			return nil, store.ErrNotFound
		}
		return json.RawMessage(m.counter), nil
	case CollectionPath:
		if len(m.keys) == 0 {
			return nil, store.ErrNotFound
		}
		var b strings.Builder
		b.WriteString("{")
		for i, k := range m.keys {
			if i > 0 {
				b.WriteString(",")
			}
			v, _ := json.Marshal(m.values[k])
			fmt.Fprintf(&b, "%q:%s", k, v)
		}
		b.WriteString("}")
		return json.RawMessage(b.String()), nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) Post(_ context.Context, path string, value any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("POST", path); err != nil {
		return "", err
	}
	c, ok := value.(model.Candidate)
	if !ok {
		return "", fmt.Errorf("unexpected POST body %T", value)
	}
	m.nextKey++
	key := fmt.Sprintf("key-%03d", m.nextKey)
	m.keys = append(m.keys, key)
	m.values[key] = c
	return key, nil
}

func (m *mockStore) Put(_ context.Context, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("PUT", path); err != nil {
		return err
	}
	if path != counter.Path {
		return fmt.Errorf("unexpected PUT %s", path)
	}
	b, _ := json.Marshal(value)
	m.counter = string(b)
	return nil
}

func (m *mockStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DELETE", path); err != nil {
		return err
	}
	if path == CollectionPath {
		m.keys = nil
		m.values = make(map[string]model.Candidate)
		return nil
	}
	id := strings.TrimPrefix(path, CollectionPath+"/")
	for i, k := range m.keys {
		if k == id {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			delete(m.values, id)
			break
		}
	}
	return nil
}

func (m *mockStore) counterRaw() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter
}

func (m *mockStore) callCount(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *mockStore) failOn(call string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[call] = err
}
