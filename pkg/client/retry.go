package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/criske/my-git-feed-server/pkg/logging"
)

var (
	// ErrRetryExhausted wraps the last transport error once every attempt failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryCommand retries transport failures of the wrapped Command with
// exponential backoff and jitter.
//
// Only KindIO errors are retried. Any upstream response, whatever its status,
// is a verdict and is returned as is.
type RetryCommand struct {
	command Command
	config  RetryConfig
	sleep   func(ctx context.Context, d time.Duration) error
	logger  zerolog.Logger
}

// NewRetryCommand wraps command. MaxAttempts below 1 is treated as 1.
func NewRetryCommand(command Command, config RetryConfig) *RetryCommand {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 1
	}
	return &RetryCommand{
		command: command,
		config:  config,
		sleep:   sleepContext,
		logger:  logging.NewLogger(logging.ComponentRetry),
	}
}

// Request implements Command.
func (r *RetryCommand) Request(ctx context.Context, uri string, headers Headers) (*Response, error) {
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		resp, err := r.command.Request(ctx, uri, headers)
		if err == nil {
			if attempt > 1 {
				r.logger.Info().
					Str("uri", uri).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return resp, nil
		}

		lastErr = err
		if !IsKind(err, KindIO) || ctx.Err() != nil {
			return nil, err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		retriesTotal.Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.Observe(jitter.Seconds())

		r.logger.Debug().
			Str("uri", uri).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		if err := r.sleep(ctx, jitter); err != nil {
			r.logger.Warn().
				Str("uri", uri).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return nil, NewIOError(uri, fmt.Errorf("%w: %v", ErrContextCancelled, err))
		}

		backoff = time.Duration(float64(backoff) * r.config.BackoffMultiplier)
		if backoff > r.config.MaxBackoff {
			backoff = r.config.MaxBackoff
		}
	}

	retryExhaustedTotal.Inc()
	r.logger.Warn().
		Str("uri", uri).
		Int("max_attempts", r.config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return nil, NewIOError(uri, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, r.config.MaxAttempts, lastErr))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
