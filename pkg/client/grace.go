package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/criske/my-git-feed-server/pkg/cache"
	"github.com/criske/my-git-feed-server/pkg/logging"
	"github.com/rs/zerolog"
)

// DefaultGracePeriod is how long a cached response is trusted without
// asking the upstream server.
const DefaultGracePeriod = 15 * time.Minute

// timeLayout is the format of KindTime values.
const timeLayout = time.RFC3339Nano

// GracePeriodMediator sits between the RequestClient and the real Command,
// and is also the Store the client writes to.
//
// Every RESPONSE write stamps a sibling TIME entry. A conditional request for
// a resource stamped less than the grace period ago is answered with a
// synthetic 304 without contacting the upstream server.
type GracePeriodMediator struct {
	cache.Store

	command Command
	grace   time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// MediatorOption configures a GracePeriodMediator.
type MediatorOption func(*GracePeriodMediator)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MediatorOption {
	return func(m *GracePeriodMediator) {
		m.now = now
	}
}

// NewGracePeriodMediator wraps store and command.
func NewGracePeriodMediator(store cache.Store, command Command, grace time.Duration, opts ...MediatorOption) *GracePeriodMediator {
	m := &GracePeriodMediator{
		Store:   store,
		command: command,
		grace:   grace,
		now:     time.Now,
		logger:  logging.NewLogger(logging.ComponentGrace),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set stores value and, for a RESPONSE key, re-stamps its TIME key.
// Keys not produced by cache.Key.Raw are rejected before anything is written.
func (m *GracePeriodMediator) Set(ctx context.Context, key, value string) error {
	parsed, err := cache.ParseKey(key)
	if err != nil {
		return &Error{Kind: KindValidation, Key: key, Message: "cannot derive timestamp key", Err: err}
	}

	if err := m.Store.Set(ctx, key, value); err != nil {
		return err
	}
	if parsed.Kind != cache.KindResponse {
		return nil
	}

	stamp := m.stamp()
	if err := m.Store.Set(ctx, parsed.Switch(cache.KindTime).Raw(), stamp); err != nil {
		return fmt.Errorf("stamp %s: %w", parsed.Logical, err)
	}
	m.logger.Debug().
		Str("uri", parsed.Logical).
		Str("at", stamp).
		Msg("Stamped cache entry")
	return nil
}

// Request forwards to the wrapped command unless the request is conditional
// and the cached response is still within the grace period.
func (m *GracePeriodMediator) Request(ctx context.Context, uri string, headers Headers) (*Response, error) {
	logger := logging.ForURI(m.logger, uri)

	if !headers.Has(HeaderIfNoneMatch) {
		logger.Debug().Msg("No conditional check, forwarding request")
		return m.command.Request(ctx, uri, headers)
	}

	responseKey := cache.NewKey(cache.KindResponse, uri)
	exists, err := m.Store.Exists(ctx, responseKey.Raw())
	if err != nil {
		logger.Warn().Err(err).Msg("Cache exists check failed, forwarding request")
		return m.command.Request(ctx, uri, headers)
	}
	if !exists {
		// The client only sends If-None-Match for cached responses; an
		// eviction between the two lookups lands here.
		return m.command.Request(ctx, uri, headers)
	}

	timeKey := responseKey.Switch(cache.KindTime).Raw()
	stamp, ok, err := m.Store.Get(ctx, timeKey)
	if err != nil {
		logger.Warn().Err(err).Msg("Cache timestamp lookup failed, forwarding request")
		return m.command.Request(ctx, uri, headers)
	}

	if ok {
		cachedAt, perr := time.Parse(timeLayout, stamp)
		if perr == nil {
			elapsed := absDuration(m.now().Sub(cachedAt))
			if elapsed < m.grace {
				graceShortCircuits.Inc()
				logger.Info().
					Dur("grace", m.grace).
					Dur("left", m.grace-elapsed).
					Msg("Within grace period, answering 304 locally")
				return NotModified(), nil
			}
			logger.Info().
				Dur("grace", m.grace).
				Dur("elapsed", elapsed).
				Msg("Grace period passed, performing conditional check")
			return m.command.Request(ctx, uri, headers)
		}
		logger.Warn().Err(perr).Str("stamp", stamp).Msg("Unreadable cache timestamp")
	}

	// No usable timestamp (legacy entry, eviction): ask upstream and start
	// tracking freshness if the entry is still valid.
	resp, err := m.command.Request(ctx, uri, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotModified {
		stamp := m.stamp()
		if err := m.Store.Set(ctx, timeKey, stamp); err != nil {
			logger.Warn().Err(err).Msg("Failed to backfill cache timestamp")
		} else {
			logger.Info().Str("at", stamp).Msg("Cache timestamp was not set, backfilled")
		}
	}
	return resp, nil
}

func (m *GracePeriodMediator) stamp() string {
	return m.now().Format(timeLayout)
}

// absDuration makes a timestamp slightly in the future (clock skew between
// instances sharing a store) count the same as one in the past.
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
