package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func noWait(int) time.Duration { return 0 }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"direct", &RetryableError{StatusCode: 429}, true},
		{"wrapped", fmt.Errorf("call: %w", &RetryableError{StatusCode: 503}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	calls := 0
	retried := 0
	err := Do(context.Background(), Policy{
		Backoff: noWait,
		OnRetry: func(int, error) { retried++ },
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return &RetryableError{StatusCode: 500, Message: "busy"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if retried != 2 {
		t.Errorf("expected 2 retries, got %d", retried)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("bad request")
	err := Do(context.Background(), Policy{Backoff: noWait}, func(context.Context) error {
		calls++
		return perm
	})
	if !errors.Is(err, perm) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 2, Backoff: noWait}, func(context.Context) error {
		calls++
		return &RetryableError{StatusCode: 429}
	})
	if !IsRetryable(err) {
		t.Fatalf("expected last retryable error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Do(ctx, Policy{Backoff: func(int) time.Duration { return time.Hour }}, func(context.Context) error {
		cancel()
		return &RetryableError{StatusCode: 503}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abc", 5); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("got %q", got)
	}
}
