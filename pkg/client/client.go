// Package client provides the git feed request pipeline: a JSON request
// client with ETag caching, the grace-period mediator that avoids needless
// revalidation, and a request-scoped fast cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/criske/my-git-feed-server/pkg/cache"
	"github.com/criske/my-git-feed-server/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Client fetches JSON resources and decodes them into out, a non-nil pointer
// (as with json.Unmarshal).
type Client interface {
	// Request fetches uri, using the cache when possible.
	Request(ctx context.Context, uri string, out any, opts ...RequestOption) error

	// Authorized returns a client sharing the same cache and command but
	// sending the given token.
	Authorized(token AccessToken) Client

	// FastCache returns a client that memoizes decoded values per URI.
	// Meant for one sequential operation only; see FastCacheClient.
	FastCache() Client
}

// Request is the typed form of Client.Request.
func Request[T any](ctx context.Context, c Client, uri string, opts ...RequestOption) (T, error) {
	var v T
	if err := c.Request(ctx, uri, &v, opts...); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

type requestOptions struct {
	headers Headers
	mapper  Mapper
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

// WithHeaders adds extra request headers. Content-Type and the authorization
// header are always set by the client.
func WithHeaders(headers Headers) RequestOption {
	return func(o *requestOptions) {
		o.headers = headers
	}
}

// WithMapper sets the projection applied to 200 bodies before caching.
func WithMapper(mapper Mapper) RequestOption {
	return func(o *requestOptions) {
		o.mapper = mapper
	}
}

// Config holds the client configuration.
type Config struct {
	// Store holds ETags, canonical bodies and timestamps (REQUIRED).
	Store cache.Store

	// Command performs the upstream requests (REQUIRED).
	Command Command

	// GracePeriod during which cached responses are not revalidated.
	// Zero disables the grace-period mediator.
	GracePeriod time.Duration

	// Token sent with every request. Defaults to Unauthorized.
	Token AccessToken

	// Clock used for cache timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the configuration used by the proxy.
func DefaultConfig(store cache.Store, command Command) Config {
	return Config{
		Store:       store,
		Command:     command,
		GracePeriod: DefaultGracePeriod,
		Token:       Unauthorized,
	}
}

// New creates a RequestClient. Unless the grace period is zero, the store and
// command are wrapped by a GracePeriodMediator acting as both.
func New(cfg Config) (*RequestClient, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Command == nil {
		return nil, fmt.Errorf("request command is required")
	}
	if cfg.GracePeriod < 0 {
		return nil, fmt.Errorf("grace_period must be >= 0 (got %s)", cfg.GracePeriod)
	}
	if cfg.Token == nil {
		cfg.Token = Unauthorized
	}

	if cfg.GracePeriod == 0 {
		return NewRequestClient(cfg.Store, cfg.Command, cfg.Token), nil
	}

	var opts []MediatorOption
	if cfg.Clock != nil {
		opts = append(opts, WithClock(cfg.Clock))
	}
	mediator := NewGracePeriodMediator(cfg.Store, cfg.Command, cfg.GracePeriod, opts...)
	return NewRequestClient(mediator, mediator, cfg.Token), nil
}

// RequestClient is the Client backed by a cache.Store and a Command.
// It is safe for concurrent use as long as the store is.
type RequestClient struct {
	store   cache.Store
	command Command
	token   AccessToken
	logger  zerolog.Logger
}

// NewRequestClient creates a client over store and command. A nil token
// means Unauthorized.
func NewRequestClient(store cache.Store, command Command, token AccessToken) *RequestClient {
	if token == nil {
		token = Unauthorized
	}
	return &RequestClient{
		store:   store,
		command: command,
		token:   token,
		logger:  logging.NewLogger(logging.ComponentClient),
	}
}

// Authorized implements Client.
func (c *RequestClient) Authorized(token AccessToken) Client {
	return NewRequestClient(c.store, c.command, token)
}

// FastCache implements Client.
func (c *RequestClient) FastCache() Client {
	return NewFastCacheClient(c)
}

// Request implements Client.
//
// A 200 is mapped, cached (only when it carries an ETag) and decoded. A 304
// is decoded from the cached canonical body; if that body is gone the
// resource is fetched again without If-None-Match. Any other status is a
// KindHTTP error.
func (c *RequestClient) Request(ctx context.Context, uri string, out any, opts ...RequestOption) (err error) {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
		if err != nil {
			requestsTotal.WithLabelValues("error").Inc()
			errorsTotal.WithLabelValues(string(KindOf(err))).Inc()
		}
	}()

	logger := logging.ForURI(c.logger, uri)

	o := requestOptions{mapper: IdentityMapper}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mapper == nil {
		o.mapper = IdentityMapper
	}

	baseHeaders, err := c.baseHeaders(o.headers)
	if err != nil {
		return err
	}

	headers := baseHeaders
	etag, ok, err := c.store.Get(ctx, cache.NewKey(cache.KindETag, uri).Raw())
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Cache get error, requesting without etag")
	case ok:
		logger.Debug().Str("etag", etag).Msg("Checking cache validity with etag")
		headers = baseHeaders.Clone()
		headers.Set(HeaderIfNoneMatch, etag)
		conditionalRequestsSent.Inc()
	}

	resp, err := c.command.Request(ctx, uri, headers)
	if err != nil {
		return commandError(uri, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		logger.Info().Msg("Fetch from remote")
		requestsTotal.WithLabelValues("remote").Inc()
		return c.processResponse(ctx, uri, resp, o.mapper, out)

	case http.StatusNotModified:
		notModifiedResponses.Inc()
		cached, ok, err := c.store.Get(ctx, cache.NewKey(cache.KindResponse, uri).Raw())
		if err != nil {
			logger.Warn().Err(err).Msg("Cache get error on 304")
		}
		if ok {
			logger.Info().Msg("Fetch from cache")
			requestsTotal.WithLabelValues("cache").Inc()
			return decodeCanonical(uri, cached, out)
		}

		logger.Info().Msg("Missed cache result, re-fetching from remote")
		unconditional := baseHeaders.Clone()
		unconditional.Del(HeaderIfNoneMatch)
		resp, err = c.command.Request(ctx, uri, unconditional)
		if err != nil {
			return commandError(uri, err)
		}
		if resp.StatusCode != http.StatusOK {
			return NewHTTPError(uri, resp)
		}
		requestsTotal.WithLabelValues("refetch").Inc()
		return c.processResponse(ctx, uri, resp, o.mapper, out)

	default:
		logger.Warn().Int("status_code", resp.StatusCode).Msg("Upstream request error")
		return NewHTTPError(uri, resp)
	}
}

// baseHeaders merges extra with Content-Type and the authorization header.
func (c *RequestClient) baseHeaders(extra Headers) (Headers, error) {
	key, err := c.token.Key()
	if err != nil {
		return nil, err
	}
	value, err := c.token.Value()
	if err != nil {
		return nil, err
	}

	headers := extra.Clone()
	headers.Set(HeaderContentType, "application/json")
	headers.Set(key, value)
	return headers, nil
}

// processResponse maps a 200 body to its canonical form, caches it when the
// response has an ETag and decodes it into out.
func (c *RequestClient) processResponse(ctx context.Context, uri string, resp *Response, mapper Mapper, out any) error {
	logger := logging.ForURI(c.logger, uri)

	body := resp.BodyString()
	if !gjson.Valid(body) {
		return &Error{Kind: KindDecode, URI: uri, StatusCode: resp.StatusCode, Message: "response body is not valid JSON"}
	}

	mapped, err := mapper(JSONResponse{Body: gjson.Parse(body), Headers: resp.Headers})
	if err != nil {
		return &Error{Kind: KindDecode, URI: uri, StatusCode: resp.StatusCode, Message: "map response", Err: err}
	}
	canonical, err := json.Marshal(mapped)
	if err != nil {
		return &Error{Kind: KindDecode, URI: uri, StatusCode: resp.StatusCode, Message: "serialize mapped response", Err: err}
	}

	etag := resp.Headers.Get(HeaderETag)
	if etag == "" {
		logger.Info().Msg("No remote etag present, caching response skipped")
		return decodeCanonical(uri, string(canonical), out)
	}

	logger.Info().Str("etag", etag).Msg("Got remote etag, caching response")
	// Body before ETag: an ETag must not point to a body that was never written.
	if err := c.store.Set(ctx, cache.NewKey(cache.KindResponse, uri).Raw(), string(canonical)); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache response")
	} else if err := c.store.Set(ctx, cache.NewKey(cache.KindETag, uri).Raw(), etag); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache etag")
	}

	return decodeCanonical(uri, string(canonical), out)
}

// decodeCanonical unmarshals a canonical body into out. A nil out discards it.
func decodeCanonical(uri, canonical string, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(canonical), out); err != nil {
		return &Error{Kind: KindDecode, URI: uri, Message: "decode canonical body", Err: err}
	}
	return nil
}

// commandError keeps typed errors from the command chain and classifies the
// rest as transport failures.
func commandError(uri string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewIOError(uri, err)
}
