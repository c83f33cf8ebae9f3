package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/criske/my-git-feed-server/internal/provider"
	"github.com/criske/my-git-feed-server/pkg/client"
	"github.com/criske/my-git-feed-server/pkg/logging"
	"github.com/criske/my-git-feed-server/pkg/pagination"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gitfeed_http_requests_total",
	Help: "Total proxy API requests by provider and response code",
}, []string{"provider", "code"})

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

// handleProxy fetches one upstream resource through the cached client.
func (s *server) handleProxy(w http.ResponseWriter, r *http.Request) {
	p, uri, err := s.upstream(r)
	if err != nil {
		s.writeError(w, r, p, err)
		return
	}

	var body json.RawMessage
	if err := s.deps.Client.Authorized(s.deps.Tokens.Token(p)).Request(r.Context(), uri, &body); err != nil {
		s.writeError(w, r, p, err)
		return
	}
	httpRequestsTotal.WithLabelValues(string(p), "200").Inc()
	writeRaw(w, http.StatusOK, body)
}

// handlePages fetches every page of an upstream listing and returns the
// items as one array.
func (s *server) handlePages(w http.ResponseWriter, r *http.Request) {
	p, uri, err := s.upstream(r)
	if err != nil {
		s.writeError(w, r, p, err)
		return
	}

	// Pages are fetched concurrently, so no fast cache here.
	c := s.deps.Client.Authorized(s.deps.Tokens.Token(p))
	fetcher := pagination.NewBatchFetcher(pagination.NewClientPageFetcher(c, pagination.QueryPageURL("page")), s.deps.Pagination)

	pages, err := fetcher.FetchAllPages(r.Context(), uri)
	if err != nil {
		s.writeError(w, r, p, err)
		return
	}

	items := make([]json.RawMessage, 0)
	for _, page := range pagination.Ordered(pages) {
		res := gjson.ParseBytes(page)
		if !res.IsArray() {
			items = append(items, json.RawMessage(res.Raw))
			continue
		}
		res.ForEach(func(_, v gjson.Result) bool {
			items = append(items, json.RawMessage(v.Raw))
			return true
		})
	}
	httpRequestsTotal.WithLabelValues(string(p), "200").Inc()
	writeJSON(w, http.StatusOK, items)
}

// handleBatch fetches the resources named by repeated "path" query
// parameters, in order, and returns their bodies as an array. Repeated paths
// are fetched once per call.
func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	p := provider.Parse(chi.URLParam(r, "provider"))
	paths := r.URL.Query()["path"]
	if len(paths) == 0 {
		s.writeError(w, r, p, client.NewValidationError("at least one path query parameter is required"))
		return
	}
	if len(paths) > maxBatchPaths {
		s.writeError(w, r, p, client.NewValidationError("too many paths (max "+strconv.Itoa(maxBatchPaths)+")"))
		return
	}

	base, err := s.baseURL(p)
	if err != nil {
		s.writeError(w, r, p, err)
		return
	}

	// One fast cache per call, used from this goroutine only.
	c := s.deps.Client.FastCache().Authorized(s.deps.Tokens.Token(p))
	items := make([]json.RawMessage, 0, len(paths))
	for _, path := range paths {
		var body json.RawMessage
		if err := c.Request(r.Context(), joinURL(base, path, ""), &body); err != nil {
			s.writeError(w, r, p, err)
			return
		}
		items = append(items, body)
	}
	httpRequestsTotal.WithLabelValues(string(p), "200").Inc()
	writeJSON(w, http.StatusOK, items)
}

const maxBatchPaths = 100

// upstream resolves the provider and the upstream URI of a proxy request.
func (s *server) upstream(r *http.Request) (provider.Provider, string, error) {
	p := provider.Parse(chi.URLParam(r, "provider"))
	base, err := s.baseURL(p)
	if err != nil {
		return p, "", err
	}
	return p, joinURL(base, chi.URLParam(r, "*"), r.URL.RawQuery), nil
}

func (s *server) baseURL(p provider.Provider) (string, error) {
	base := s.deps.BaseURL(p)
	if p == provider.Unknown || base == "" {
		return "", client.NewValidationError("The provider is not supported")
	}
	return base, nil
}

func joinURL(base, path, rawQuery string) string {
	uri := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		uri += "?" + rawQuery
	}
	return uri
}

// StatusCode maps a pipeline error to the proxy response status.
func StatusCode(err error) int {
	var e *client.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case client.KindValidation:
		return http.StatusBadRequest
	case client.KindHTTP:
		if e.StatusCode >= 400 && e.StatusCode < 600 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	case client.KindRateLimit:
		return http.StatusTooManyRequests
	case client.KindIO, client.KindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, p provider.Provider, err error) {
	status := StatusCode(err)
	httpRequestsTotal.WithLabelValues(string(p), strconv.Itoa(status)).Inc()

	log.Warn().
		Err(err).
		Str("component", logging.ComponentServer).
		Str("provider", string(p)).
		Int("status", status).
		Str("request_id", RequestIDFromContext(r.Context())).
		Msg("Request failed")

	var e *client.Error
	if !errors.As(err, &e) {
		e = &client.Error{Kind: client.KindUnknown, Err: err}
	}
	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"type":"unknown","error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
