package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/criske/my-git-feed-server/pkg/logging"
)

// Command executes a single GET against uri. It does not cache, retry or
// interpret status codes: any status is a normal Response. Only transport
// failures are errors, reported as KindIO.
type Command interface {
	Request(ctx context.Context, uri string, headers Headers) (*Response, error)
}

// CommandFunc adapts a function to the Command interface.
type CommandFunc func(ctx context.Context, uri string, headers Headers) (*Response, error)

// Request calls f.
func (f CommandFunc) Request(ctx context.Context, uri string, headers Headers) (*Response, error) {
	return f(ctx, uri, headers)
}

// HTTPCommand is the net/http implementation of Command.
type HTTPCommand struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// HTTPCommandOption configures an HTTPCommand.
type HTTPCommandOption func(*HTTPCommand)

// WithUserAgent sets the User-Agent sent when the caller did not set one.
func WithUserAgent(userAgent string) HTTPCommandOption {
	return func(c *HTTPCommand) {
		c.userAgent = userAgent
	}
}

// NewHTTPCommand creates a command using httpClient. A nil client gets a
// default one with a 30s timeout and a DNS-caching transport.
func NewHTTPCommand(httpClient *http.Client, opts ...HTTPCommandOption) *HTTPCommand {
	if httpClient == nil {
		httpClient = NewHTTPClient(30*time.Second, nil)
	}
	c := &HTTPCommand{
		httpClient: httpClient,
		logger:     logging.NewLogger(logging.ComponentCommand),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request performs the GET.
func (c *HTTPCommand) Request(ctx context.Context, uri string, headers Headers) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &Error{Kind: KindValidation, URI: uri, Message: "invalid request uri", Err: err}
	}
	req.Header = headers.HTTP()
	if c.userAgent != "" && req.Header.Get(HeaderUserAgent) == "" {
		req.Header.Set(HeaderUserAgent, c.userAgent)
	}

	c.logger.Debug().
		Str("uri", uri).
		Bool("conditional", headers.Has(HeaderIfNoneMatch)).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().Err(err).Str("uri", uri).Msg("Upstream request failed")
		return nil, NewIOError(uri, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, NewIOError(uri, fmt.Errorf("read response body: %w", err))
	}
	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	out := &Response{
		StatusCode: resp.StatusCode,
		Headers:    FromHTTP(resp.Header),
	}
	if len(data) > 0 {
		body := string(data)
		out.Body = &body
	}
	return out, nil
}
