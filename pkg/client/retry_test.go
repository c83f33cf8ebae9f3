package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func newTestRetry(cmd Command, attempts int) (*RetryCommand, *[]time.Duration) {
	r := NewRetryCommand(cmd, RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        150 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestRetryCommand(t *testing.T) {
	ioErr := NewIOError(testURI, errors.New("connection reset"))

	tests := []struct {
		name        string
		errs        []error
		responses   []*Response
		wantCalls   int
		wantErr     bool
		wantStatus  int
		wantExhaust bool
	}{
		{
			name:       "success first attempt",
			responses:  []*Response{okResponse(`{}`, "")},
			wantCalls:  1,
			wantStatus: http.StatusOK,
		},
		{
			name:       "success after io errors",
			errs:       []error{ioErr, ioErr},
			responses:  []*Response{nil, nil, okResponse(`{}`, "")},
			wantCalls:  3,
			wantStatus: http.StatusOK,
		},
		{
			name:        "exhausted",
			errs:        []error{ioErr, ioErr, ioErr},
			wantCalls:   3,
			wantErr:     true,
			wantExhaust: true,
		},
		{
			name:       "server error status is not retried",
			responses:  []*Response{status(http.StatusServiceUnavailable, "")},
			wantCalls:  1,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:      "non-io error is not retried",
			errs:      []error{NewValidationError("bad uri")},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &scriptedCommand{responses: tt.responses, errs: tt.errs}
			r, _ := newTestRetry(cmd, 3)

			resp, err := r.Request(context.Background(), testURI, Headers{})
			if len(cmd.calls) != tt.wantCalls {
				t.Errorf("calls = %d, want %d", len(cmd.calls), tt.wantCalls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if errors.Is(err, ErrRetryExhausted) != tt.wantExhaust {
					t.Errorf("errors.Is(ErrRetryExhausted) = %v, want %v", !tt.wantExhaust, tt.wantExhaust)
				}
				return
			}
			if err != nil {
				t.Fatalf("Request() error = %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestRetryCommand_BackoffCapped(t *testing.T) {
	ioErr := NewIOError(testURI, errors.New("timeout"))
	cmd := &scriptedCommand{errs: []error{ioErr, ioErr, ioErr, ioErr}}
	r, slept := newTestRetry(cmd, 4)

	_, err := r.Request(context.Background(), testURI, Headers{})
	if !IsKind(err, KindIO) {
		t.Fatalf("error = %v, want io error", err)
	}
	if len(*slept) != 3 {
		t.Fatalf("sleeps = %d, want 3", len(*slept))
	}
	// Jitter is ±20% around 100ms, then the 150ms cap.
	bounds := [][2]time.Duration{
		{80 * time.Millisecond, 120 * time.Millisecond},
		{120 * time.Millisecond, 180 * time.Millisecond},
		{120 * time.Millisecond, 180 * time.Millisecond},
	}
	for i, d := range *slept {
		if d < bounds[i][0] || d > bounds[i][1] {
			t.Errorf("sleep %d = %v, want within %v", i, d, bounds[i])
		}
	}
}

func TestRetryCommand_ContextCancelled(t *testing.T) {
	ioErr := NewIOError(testURI, errors.New("timeout"))
	cmd := &scriptedCommand{errs: []error{ioErr, ioErr, ioErr}}
	r := NewRetryCommand(cmd, RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Request(ctx, testURI, Headers{})
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
	if len(cmd.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(cmd.calls))
	}
}
