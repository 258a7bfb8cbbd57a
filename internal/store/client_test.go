package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordedRequest captures what the fake store received.
type recordedRequest struct {
	Method      string
	Path        string
	Query       string
	Body        string
	ContentType string
}

// requestLog is safe to read from the test goroutine while the server
// goroutine appends.
type requestLog struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.reqs...)
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		log.mu.Lock()
		defer log.mu.Unlock()
		log.reqs = append(log.reqs, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.EscapedPath(),
			Query:       r.URL.RawQuery,
			Body:        string(b),
			ContentType: r.Header.Get("Content-Type"),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, token, nil, testLogger)
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsNonHTTPURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", "", nil, testLogger)
	assert.Error(t, err)
}

func TestClient_Get_ReturnsBody(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{"k1":{"title":"A"}}`)
	c := newTestClient(t, srv.URL, "")

	raw, err := c.Get(context.Background(), "movies")

	require.NoError(t, err)
	assert.JSONEq(t, `{"k1":{"title":"A"}}`, string(raw))
	require.Len(t, reqs.all(), 1)
	assert.Equal(t, http.MethodGet, reqs.all()[0].Method)
	assert.Equal(t, "/movies.json", reqs.all()[0].Path)
	assert.Empty(t, reqs.all()[0].Query)
}

func TestClient_Get_NullIsNotFound(t *testing.T) {
	for _, body := range []string{"null", "", "  null\n"} {
		srv, _ := newTestServer(t, http.StatusOK, body)
		c := newTestClient(t, srv.URL, "")

		_, err := c.Get(context.Background(), "movies")
		assert.ErrorIs(t, err, ErrNotFound, "body %q", body)
	}
}

func TestClient_Get_404IsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, `{"error":"missing"}`)
	c := newTestClient(t, srv.URL, "")

	_, err := c.Get(context.Background(), "moviesCount")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Non2xxIsStoreError(t *testing.T) {
	tests := []int{
		http.StatusMovedPermanently,
		http.StatusUnauthorized,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
	}
	for _, status := range tests {
		srv, _ := newTestServer(t, status, `{"error":"Permission denied"}`)
		c := newTestClient(t, srv.URL, "")

		err := c.Put(context.Background(), "moviesCount", 3)

		var se *StoreError
		require.ErrorAs(t, err, &se, "status %d", status)
		assert.Equal(t, status, se.Status)
		assert.Equal(t, "Permission denied", se.Message)
		assert.Equal(t, http.MethodPut, se.Method)
	}
}

func TestClient_AcceptsAny2xx(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNoContent, "")
	c := newTestClient(t, srv.URL, "")

	assert.NoError(t, c.Delete(context.Background(), "movies/k1"))
}

func TestClient_TransportError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, "null")
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, "")
	_, err := c.Get(context.Background(), "movies")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "movies", te.Path)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestClient_CancelledContextIsTransportError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, "null")
	c := newTestClient(t, srv.URL, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Delete(ctx, "movies")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Post_ReturnsGeneratedKey(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{"name":"-NabcXYZ"}`)
	c := newTestClient(t, srv.URL, "")

	key, err := c.Post(context.Background(), "movies", map[string]string{"title": "X"})

	require.NoError(t, err)
	assert.Equal(t, "-NabcXYZ", key)
	assert.JSONEq(t, `{"title":"X"}`, reqs.all()[0].Body)
	assert.Equal(t, "application/json", reqs.all()[0].ContentType)
}

func TestClient_Post_MissingKeyIsError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv.URL, "")

	_, err := c.Post(context.Background(), "movies", map[string]string{"title": "X"})
	assert.Error(t, err)
}

func TestClient_Put_SendsRawInteger(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `4`)
	c := newTestClient(t, srv.URL, "")

	require.NoError(t, c.Put(context.Background(), "moviesCount", 4))
	assert.Equal(t, "4", reqs.all()[0].Body)

	require.NoError(t, c.Put(context.Background(), "moviesCount", 0))
	assert.Equal(t, "0", reqs.all()[1].Body)
}

func TestClient_EndpointEscapingAndAuth(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, "null")
	c := newTestClient(t, srv.URL+"/", "s3cret")

	require.NoError(t, c.Delete(context.Background(), "movies/a b"))

	assert.Equal(t, "/movies/a%20b.json", reqs.all()[0].Path)
	assert.Equal(t, "auth=s3cret", reqs.all()[0].Query)
}

func TestClient_Ping(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, "null")
	c := newTestClient(t, srv.URL, "")
	assert.NoError(t, c.Ping(context.Background(), "moviesCount"))

	denied, reqs := newTestServer(t, http.StatusUnauthorized, `{"error":"Permission denied"}`)
	c = newTestClient(t, denied.URL, "")
	err := c.Ping(context.Background(), "moviesCount")

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Len(t, reqs.all(), 1, "permanent failures are not retried")
}
