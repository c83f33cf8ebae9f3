// Package server implements the HTTP surface of the git feed proxy.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/criske/my-git-feed-server/internal/provider"
	"github.com/criske/my-git-feed-server/pkg/client"
	"github.com/criske/my-git-feed-server/pkg/metrics"
	"github.com/criske/my-git-feed-server/pkg/pagination"
)

// ReadyChecker reports whether the cache store can serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Client     client.Client
	Tokens     provider.Tokens
	Pagination pagination.Config

	// BaseURL overrides provider.BaseURL, for tests.
	BaseURL func(provider.Provider) string

	// ReadyCheck is consulted by /health; nil = always ready.
	ReadyCheck ReadyChecker
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	if deps.BaseURL == nil {
		deps.BaseURL = provider.Provider.BaseURL
	}
	s := &server{deps: deps}

	r := chi.NewRouter()
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Get("/{provider}/batch", s.handleBatch)
		r.Get("/{provider}/pages/*", s.handlePages)
		r.Get("/{provider}/*", s.handleProxy)
	})

	return r
}

type server struct {
	deps Deps
}
