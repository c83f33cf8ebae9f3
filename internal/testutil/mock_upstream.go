// Package testutil provides testing utilities for the git feed proxy.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock upstream endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable fake git provider API.
//
// Unless a path has its own handler, every resource answers 200 with a
// per-path ETag and 304 when that ETag comes back in If-None-Match. The body
// reports the path and the version, and Bump changes the version.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	versions map[string]int

	requestCount      int
	conditionalCount  int
	notModifiedCount  int
	lastRequestHeader http.Header
}

// NewMockUpstream starts a new mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers: make(map[string]http.HandlerFunc),
		versions: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastRequestHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Client returns an HTTP client wired to the server.
func (m *MockUpstream) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.notModifiedCount = 0
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// Bump changes the representation of path, invalidating its ETag.
func (m *MockUpstream) Bump(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[path]++
}

// RequestCount returns the number of requests made to the server.
func (m *MockUpstream) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockUpstream) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// NotModifiedCount returns the number of 304s sent by the default handler.
func (m *MockUpstream) NotModifiedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notModifiedCount
}

// LastRequestHeader returns the headers of the latest request.
func (m *MockUpstream) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// defaultHandler serves versioned JSON with GitHub-like rate limit headers.
func (m *MockUpstream) defaultHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	version := m.versions[r.URL.Path]
	etag := `"` + r.URL.Path + "-v" + strconv.Itoa(version) + `"`
	notModified := r.Header.Get("If-None-Match") == etag
	if notModified {
		m.notModifiedCount++
	}
	m.mu.Unlock()

	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "4999")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	w.Header().Set("ETag", etag)

	if notModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"path":"` + r.URL.Path + `","version":` + strconv.Itoa(version) + `}`))
}
