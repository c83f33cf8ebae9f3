package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/criske/my-git-feed-server/pkg/cache"
)

// recordingStore is an in-memory cache.Store that counts its calls.
type recordingStore struct {
	mu      sync.Mutex
	data    map[string]string
	gets    int
	sets    []string
	exists  int
	failGet error
	failSet error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{data: make(map[string]string)}
}

func (s *recordingStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failGet != nil {
		return "", false, s.failGet
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *recordingStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	s.sets = append(s.sets, key)
	s.data[key] = value
	return nil
}

func (s *recordingStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists++
	_, ok := s.data[key]
	return ok, nil
}

func (s *recordingStore) Close() error { return nil }

// put seeds an entry without counting it as a write.
func (s *recordingStore) put(kind cache.Kind, uri, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[cache.NewKey(kind, uri).Raw()] = value
}

func (s *recordingStore) value(kind cache.Kind, uri string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[cache.NewKey(kind, uri).Raw()]
	return v, ok
}

// writes counts Set calls for the given kind.
func (s *recordingStore) writes(kind cache.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, raw := range s.sets {
		k, err := cache.ParseKey(raw)
		if err == nil && k.Kind == kind {
			n++
		}
	}
	return n
}

// scriptedCommand replays responses in order and records the headers it got.
type scriptedCommand struct {
	responses []*Response
	errs      []error
	calls     []Headers
}

func (c *scriptedCommand) Request(_ context.Context, _ string, headers Headers) (*Response, error) {
	i := len(c.calls)
	c.calls = append(c.calls, headers.Clone())
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		return nil, errors.New("unexpected request")
	}
	return c.responses[i], nil
}

func okResponse(body, etag string) *Response {
	h := Headers{}
	if etag != "" {
		h.Set(HeaderETag, etag)
	}
	return &Response{StatusCode: 200, Body: &body, Headers: h}
}

func status(code int, body string) *Response {
	r := &Response{StatusCode: code, Headers: Headers{}}
	if body != "" {
		r.Body = &body
	}
	return r
}

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func mustStamp(t *testing.T, at time.Time) string {
	t.Helper()
	return at.Format(timeLayout)
}

type message struct {
	Message string `json:"message"`
}
