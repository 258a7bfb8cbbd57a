package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njoerd114/moviesync/internal/config"
	"github.com/njoerd114/moviesync/internal/counter"
	"github.com/njoerd114/moviesync/internal/emulator"
	"github.com/njoerd114/moviesync/internal/movies"
)

type testEnv struct {
	db      *emulator.DB
	url     string
	cfgPath string
}

// newTestEnv starts an emulator and writes a config pointing at it.
func newTestEnv(t *testing.T, ceiling int) *testEnv {
	t.Helper()
	t.Setenv(config.EnvStoreURL, "")
	t.Setenv(config.EnvAuthToken, "")

	dir := t.TempDir()
	db, err := emulator.Open(filepath.Join(dir, "emulator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(emulator.NewServer(db, emulator.Options{}, logger))
	t.Cleanup(srv.Close)

	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("store_url: %q\nceiling: %d\nrequest_timeout: 5s\n", srv.URL, ceiling)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	return &testEnv{db: db, url: srv.URL, cfgPath: cfgPath}
}

type result struct {
	out    string
	errOut string
	err    error
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand(newApp(strings.NewReader(stdin), &out, &errOut))
	cmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func (e *testEnv) add(t *testing.T, title string) {
	t.Helper()
	r := e.run(t, "", "add", "--title", title, "--opening-text", "crawl", "--release-date", "1977-05-25")
	require.NoError(t, r.err, r.errOut)
}

func (e *testEnv) keys(t *testing.T) []string {
	t.Helper()
	entries, err := e.db.ListMovies(context.Background())
	require.NoError(t, err)
	keys := make([]string, len(entries))
	for i, en := range entries {
		keys[i] = en.Key
	}
	return keys
}

func (e *testEnv) storedCount(t *testing.T) int {
	t.Helper()
	raw, err := e.db.Counter(context.Background())
	require.NoError(t, err)
	require.NotNil(t, raw)
	var n int
	require.NoError(t, json.Unmarshal(raw, &n))
	return n
}

func TestList_Empty(t *testing.T) {
	env := newTestEnv(t, 5)

	r := env.run(t, "", "list")

	require.NoError(t, r.err)
	assert.Contains(t, r.out, "No movies found!")
}

func TestAdd_FlagsThenList(t *testing.T) {
	env := newTestEnv(t, 5)

	r := env.run(t, "", "add", "--title", "A New Hope", "--opening-text", "It is a period of civil war.", "--release-date", "1977-05-25")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "✓ Movie successfully added to database")
	assert.Contains(t, r.out, "Created ")
	assert.Equal(t, 1, env.storedCount(t))

	r = env.run(t, "", "list")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "A New Hope (1977-05-25)")
	assert.Contains(t, r.out, "id: "+env.keys(t)[0])
}

func TestAdd_PartialFlagsRejected(t *testing.T) {
	env := newTestEnv(t, 5)

	r := env.run(t, "", "add", "--title", "Only title")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "all required")

	r = env.run(t, "", "add", "--title", "T", "--opening-text", "O", "--release-date", "May 1977")
	require.Error(t, r.err)
	assert.Empty(t, env.keys(t))
}

func TestAdd_Interactive(t *testing.T) {
	env := newTestEnv(t, 5)

	r := env.run(t, "Empire\n\nCrawl text\n1980-05-21\n", "add")

	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "required")
	assert.Contains(t, r.out, "Empire (1980-05-21)")
	assert.Len(t, env.keys(t), 1)
}

func TestAdd_LimitReached(t *testing.T) {
	env := newTestEnv(t, 2)
	env.add(t, "A")
	env.add(t, "B")

	r := env.run(t, "", "add", "--title", "C", "--opening-text", "crawl", "--release-date", "2000-01-01")

	require.ErrorIs(t, r.err, counter.ErrLimitReached)
	assert.Contains(t, r.out, "✗ Limit of movies (2) reached on database.")
	assert.Len(t, env.keys(t), 2)
	assert.Equal(t, 2, env.storedCount(t))
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t, 5)
	env.add(t, "A")
	env.add(t, "B")
	first := env.keys(t)[0]

	r := env.run(t, "", "delete", first)

	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "✓ Movie successfully deleted from database")
	assert.NotContains(t, r.out, "Movies list updated!")
	assert.Equal(t, 1, env.storedCount(t))
	assert.NotContains(t, env.keys(t), first)
}

func TestDelete_PathLikeIDKeepsCollection(t *testing.T) {
	env := newTestEnv(t, 5)
	env.add(t, "A")
	env.add(t, "B")
	before := env.keys(t)

	r := env.run(t, "", "delete", "/")

	require.ErrorIs(t, r.err, movies.ErrInvalidID)
	assert.Equal(t, before, env.keys(t))
	assert.Equal(t, 2, env.storedCount(t))
}

func TestClear(t *testing.T) {
	env := newTestEnv(t, 5)
	env.add(t, "A")
	env.add(t, "B")

	r := env.run(t, "n\n", "clear")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Aborted.")
	assert.Len(t, env.keys(t), 2)

	r = env.run(t, "", "clear", "--yes")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "✓ All movies successfully deleted from database")
	assert.Contains(t, r.out, "No movies found!")
	assert.Empty(t, env.keys(t))
	assert.Equal(t, 0, env.storedCount(t))
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t, 5)
	env.add(t, "A")

	r := env.run(t, "", "refresh")

	require.NoError(t, r.err)
	assert.Equal(t, 1, strings.Count(r.out, "✓ Movies list updated!"))
	assert.Contains(t, r.out, "A (1977-05-25)")
}

func TestCountAndRepair(t *testing.T) {
	env := newTestEnv(t, 5)
	env.add(t, "A")
	require.NoError(t, env.db.PutCounter(context.Background(), json.RawMessage("4")))

	r := env.run(t, "", "count")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Counter:   4")
	assert.Contains(t, r.out, "Movies:    1")
	assert.Contains(t, r.out, "Drift:     +3")

	r = env.run(t, "", "repair-count")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Counter repaired: 4 → 1")
	assert.Equal(t, 1, env.storedCount(t))

	r = env.run(t, "", "repair-count")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Counter already correct (1)")
}

func TestWatch_Script(t *testing.T) {
	env := newTestEnv(t, 5)

	script := strings.Join([]string{
		"a", "Return", "Crawl", "1983-05-25",
		"d",
		"bogus",
		"r",
		"q",
	}, "\n") + "\n"
	r := env.run(t, script, "watch")

	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "No movies found!")
	assert.Contains(t, r.out, "✓ Movie successfully added to database")
	assert.Contains(t, r.out, "Return (1983-05-25)")
	assert.Contains(t, r.out, "usage: d <id>")
	assert.Contains(t, r.out, `unknown command "bogus"`)
	assert.Contains(t, r.out, "✓ Movies list updated!")
	assert.Len(t, env.keys(t), 1)
}

func TestWatch_EOFQuits(t *testing.T) {
	env := newTestEnv(t, 5)

	r := env.run(t, "", "watch")

	require.NoError(t, r.err)
	assert.Contains(t, r.out, "q          quit")
}

func TestList_StoreUnreachable(t *testing.T) {
	env := newTestEnv(t, 5)
	dead := httptest.NewServer(nil)
	deadURL := dead.URL
	dead.Close()
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(fmt.Sprintf("store_url: %q\n", deadURL)), 0o600))

	r := env.run(t, "", "list")

	require.Error(t, r.err)
	assert.Contains(t, r.out, "Something went wrong!")
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, 5)

	r := env.run(t, "", "version")

	require.NoError(t, r.err)
	assert.True(t, strings.HasPrefix(r.out, "moviesync dev "), r.out)
}
