// Package store is a thin typed wrapper around the remote JSON document store
// (Firebase Realtime Database REST shape). Every resource is addressed by a
// slash-separated path; the client appends ".json" and the optional auth
// query parameter.
//
// The client makes exactly one attempt per call and keeps no cache. Failures
// come back as [*TransportError] (the request never got an HTTP answer) or
// [*StoreError] (any status outside 2xx). Absence of a resource is reported
// as [ErrNotFound].
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned by [Client.Get] when the resource does not exist.
// The store answers absent paths with 200 and a JSON null, so a null or
// empty body is treated the same as a 404.
var ErrNotFound = errors.New("resource not found")

// TransportError reports a request that failed before any HTTP response was
// received (DNS, refused connection, TLS, timeout, cancellation).
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport failure: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StoreError reports a response whose status is outside the 2xx range.
type StoreError struct {
	Method string
	Path   string
	Status int
	// Message is the store's own error text, when it sent one.
	Message string
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: store returned %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: store returned %d", e.Method, e.Path, e.Status)
}

// Client issues GET/POST/PUT/DELETE requests against the store. Create one
// with [NewClient]; it is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	token   string
	hc      *http.Client
	log     *slog.Logger
}

// NewClient creates a Client for the store rooted at baseURL. token, when
// non-empty, is sent as the "auth" query parameter on every request. A nil
// hc uses a fresh [http.Client] with no timeout.
func NewClient(baseURL, token string, hc *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse store URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("store URL %q must use http or https", baseURL)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: u, token: token, hc: hc, log: logger}, nil
}

// Get fetches the JSON value at path. It returns [ErrNotFound] when the
// resource is absent.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return json.RawMessage(trimmed), nil
}

// Post appends value under path and returns the key the store generated for
// it.
func (c *Client) Post(ctx context.Context, path string, value any) (string, error) {
	body, err := c.do(ctx, http.MethodPost, path, value)
	if err != nil {
		return "", err
	}
	var created struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("post %s: decode generated key: %w", path, err)
	}
	if created.Name == "" {
		return "", fmt.Errorf("post %s: store response carried no generated key", path)
	}
	return created.Name, nil
}

// Put overwrites the value at path.
func (c *Client) Put(ctx context.Context, path string, value any) error {
	_, err := c.do(ctx, http.MethodPut, path, value)
	return err
}

// Delete removes the value at path. Deleting an absent path succeeds.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// Ping checks that the store is reachable by reading path, retrying
// transient failures. An absent resource still proves reachability.
func (c *Client) Ping(ctx context.Context, path string) error {
	err := Retry(ctx, pingAttempts, func() error {
		_, err := c.Get(ctx, path)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// do performs a single request and returns the response body for 2xx
// answers.
func (c *Client) do(ctx context.Context, method, path string, value any) ([]byte, error) {
	var reqBody io.Reader
	if value != nil {
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s %s: create request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("store request failed", "method", method, "path", path, "error", err)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}
	c.log.Debug("store request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StoreError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: errorMessage(body),
		}
	}
	return body, nil
}

// endpoint builds <base>/<escaped path>.json[?auth=token].
func (c *Client) endpoint(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	u := *c.baseURL
	u.RawQuery = ""
	endpoint := u.String() + "/" + strings.Join(segments, "/") + ".json"
	if c.token != "" {
		endpoint += "?" + url.Values{"auth": {c.token}}.Encode()
	}
	return endpoint
}

// errorMessage extracts the store's {"error": "..."} text, if any.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error
}
