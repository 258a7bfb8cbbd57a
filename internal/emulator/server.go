package emulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second

	// Limiters of clients not seen for limiterIdle are dropped, at most once
	// per limiterSweep.
	limiterIdle  = 3 * time.Minute
	limiterSweep = time.Minute
)

// forbiddenKeyChars may not appear in a record key.
const forbiddenKeyChars = ".#$[]"

// Options tunes the emulator's HTTP surface.
type Options struct {
	// AuthToken, when set, must match the "auth" query parameter of every
	// request. Mismatches get 401 like the hosted store.
	AuthToken string

	// RatePerSecond and Burst configure the per-client token bucket. A zero
	// RatePerSecond disables limiting.
	RatePerSecond float64
	Burst         int
}

// Server serves the movie collection and counter resources over HTTP.
type Server struct {
	db      *DB
	opts    Options
	log     *slog.Logger
	handler http.Handler

	mu        sync.Mutex
	limiters  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewServer wires the routes for db.
func NewServer(db *DB, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		db:       db,
		opts:     opts,
		log:      logger,
		limiters: make(map[string]*visitor),
		now:      time.Now,
	}

	router := httprouter.New()
	router.GET("/movies.json", s.listMovies)
	router.POST("/movies.json", s.createMovie)
	router.DELETE("/movies.json", s.deleteAllMovies)
	router.DELETE("/movies/:file", s.deleteMovie)
	router.GET("/moviesCount.json", s.getCounter)
	router.PUT("/moviesCount.json", s.putCounter)
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Deeper paths under the collection would address a field, or a key
		// holding an escaped "/".
		if strings.HasPrefix(r.URL.Path, "/movies/") {
			writeError(w, http.StatusBadRequest, "Invalid path: keys must be a single segment")
			return
		}
		writeError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.handler = s.logRequests(s.rateLimit(s.authenticate(router)))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("emulator listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving emulator: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("emulator shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down emulator: %w", err)
	}
	return nil
}

func (s *Server) listMovies(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries, err := s.db.ListMovies(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	// Written by hand so the keys keep insertion order.
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(e.Key)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(e.Body)
	}
	buf.WriteByte('}')
	writeRaw(w, http.StatusOK, buf.Bytes())
}

func (s *Server) createMovie(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	if body[0] != '{' {
		writeError(w, http.StatusBadRequest, "Invalid data; POST body must be an object")
		return
	}

	key, err := s.db.InsertMovie(r.Context(), body)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": key})
}

func (s *Server) deleteAllMovies(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.db.DeleteAllMovies(r.Context()); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) deleteMovie(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	key, ok := strings.CutSuffix(ps.ByName("file"), ".json")
	if !ok || key == "" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if strings.ContainsAny(key, forbiddenKeyChars) {
		writeError(w, http.StatusBadRequest, "Invalid path: key contains a forbidden character")
		return
	}
	if err := s.db.DeleteMovie(r.Context(), key); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) getCounter(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := s.db.Counter(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if body == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (s *Server) putCounter(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	if err := s.db.PutCounter(r.Context(), body); err != nil {
		s.internalError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("emulator request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal error")
}

// --- Middleware --------------------------------------------------------------

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken != "" && r.URL.Query().Get("auth") != s.opts.AuthToken {
			writeError(w, http.StatusUnauthorized, "Permission denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.RatePerSecond > 0 && !s.limiterFor(clientIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterSweep {
		for k, c := range s.limiters {
			if now.Sub(c.lastSeen) > limiterIdle {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	c, ok := s.limiters[ip]
	if !ok {
		burst := max(s.opts.Burst, 1)
		c = &visitor{limiter: rate.NewLimiter(rate.Limit(s.opts.RatePerSecond), burst)}
		s.limiters[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &recordingWriter{inner: w}
		next.ServeHTTP(rw, r)
		s.log.Debug("handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

type recordingWriter struct {
	inner      http.ResponseWriter
	statusCode int
}

func (r *recordingWriter) Header() http.Header {
	return r.inner.Header()
}

func (r *recordingWriter) Write(b []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	return r.inner.Write(b)
}

func (r *recordingWriter) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.inner.WriteHeader(statusCode)
}

// --- Helpers -----------------------------------------------------------------

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// readJSONBody reads a non-empty, syntactically valid JSON body. On failure
// it has already written the error response.
func readJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return nil, false
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || !json.Valid(b) {
		writeError(w, http.StatusBadRequest, "Invalid data; couldn't parse JSON object")
		return nil, false
	}
	return json.RawMessage(b), true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(`{"error":"Internal error"}`)
		status = http.StatusInternalServerError
	}
	writeRaw(w, status, b)
}

func writeRaw(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
