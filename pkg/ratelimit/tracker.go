package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/criske/my-git-feed-server/pkg/cache"
	"github.com/criske/my-git-feed-server/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	remainingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gitfeed_rate_limit_remaining",
		Help: "Calls remaining in the current upstream rate limit window",
	}, []string{"host"})

	blocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitfeed_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to critical rate limit",
	}, []string{"host"})

	throttlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitfeed_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to warning rate limit",
	}, []string{"host"})
)

// headerSet names the rate limit headers of one provider family.
type headerSet struct {
	limit, remaining, reset string
}

// Checked in order; GitHub first.
var headerSets = []headerSet{
	{limit: "X-RateLimit-Limit", remaining: "X-RateLimit-Remaining", reset: "X-RateLimit-Reset"},
	{limit: "RateLimit-Limit", remaining: "RateLimit-Remaining", reset: "RateLimit-Reset"},
}

// DefaultThrottleDelay is the pause applied to requests in the warning zone.
const DefaultThrottleDelay = 1 * time.Second

// Tracker monitors upstream rate limits and gates requests.
type Tracker struct {
	store    cache.Store
	logger   zerolog.Logger
	throttle time.Duration
	now      func() time.Time
}

// NewTracker creates a new rate limit tracker persisting state in store.
func NewTracker(store cache.Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:    store,
		logger:   logger,
		throttle: DefaultThrottleDelay,
		now:      time.Now,
	}
}

// SetThrottleDelay changes the warning-zone pause.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttle = d
}

// GetState retrieves the state of host. Unknown hosts and windows that have
// already reset report a default healthy state.
func (t *Tracker) GetState(ctx context.Context, host string) (*State, error) {
	raw, ok, err := t.store.Get(ctx, StateKey(host))
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}
	now := t.now()
	if !ok {
		t.logger.Debug().Str("host", host).Msg("No rate limit state, returning default healthy state")
		return defaultState(host, now), nil
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("parse rate limit state: %w", err)
	}
	if !state.ResetAt.After(now) {
		return defaultState(host, now), nil
	}
	state.UpdateHealth()
	return &state, nil
}

// UpdateFromHeaders parses rate limit headers of a response from host and
// stores the new state. Responses without rate limit headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, host string, headers client.Headers) error {
	var set headerSet
	var remainStr string
	for _, s := range headerSets {
		if v := headers.Get(s.remaining); v != "" {
			set, remainStr = s, v
			break
		}
	}
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", set.remaining, err)
	}

	resetStr := headers.Get(set.reset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", set.reset)
	}
	resetEpoch, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", set.reset, err)
	}

	limit, _ := strconv.Atoi(headers.Get(set.limit))

	state := &State{
		Host:       host,
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    time.Unix(resetEpoch, 0),
		LastUpdate: t.now(),
	}
	state.UpdateHealth()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}
	if err := t.store.Set(ctx, StateKey(host), string(data)); err != nil {
		return fmt.Errorf("store rate limit state: %w", err)
	}

	remainingGauge.WithLabelValues(host).Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Str("host", host).
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Str("host", host).
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Str("host", host).
			Int("remaining", remain).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}
	return nil
}

// Allow gates a request to host. It returns a rate_limit error while the
// window is critical and pauses in the warning zone. A store failure lets
// the request through.
func (t *Tracker) Allow(ctx context.Context, host, uri string) error {
	state, err := t.GetState(ctx, host)
	if err != nil {
		t.logger.Warn().Err(err).Str("host", host).Msg("Rate limit state unavailable, allowing request")
		return nil
	}

	if state.NeedsCriticalBlock() {
		wait := state.TimeUntilReset()
		t.logger.Error().
			Str("host", host).
			Int("remaining", state.Remaining).
			Dur("wait_duration", wait).
			Msg("Rate limit critical - blocking request")
		blocksTotal.WithLabelValues(host).Inc()
		return &client.Error{
			Kind:    client.KindRateLimit,
			URI:     uri,
			Message: fmt.Sprintf("rate limit for %s nearly exhausted, resets in %s", host, wait.Round(time.Second)),
		}
	}

	if state.NeedsThrottling() && t.throttle > 0 {
		t.logger.Warn().
			Str("host", host).
			Int("remaining", state.Remaining).
			Msg("Rate limit warning - throttling request")
		throttlesTotal.WithLabelValues(host).Inc()

		timer := time.NewTimer(t.throttle)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return client.NewIOError(uri, ctx.Err())
		case <-timer.C:
		}
	}
	return nil
}
