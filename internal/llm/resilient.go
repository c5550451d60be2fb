package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

// Resilient wraps a Generator with a per-call timeout, retries for
// transient failures, a circuit breaker and latency stats. Every failure it
// returns wraps label.ErrUpstreamUnavailable.
type Resilient struct {
	next    Generator
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	stats   *Stats
	log     *slog.Logger

	backoff func(int) time.Duration
}

// NewResilient wraps next. A zero timeout means 60 seconds.
func NewResilient(next Generator, timeout time.Duration, log *slog.Logger) *Resilient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := &Resilient{
		next:    next,
		timeout: timeout,
		stats:   NewStats(time.Hour),
		log:     log.With("model", next.Model()),
		backoff: retry.Backoff,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm:" + next.Model(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

// Generate runs the request through the breaker with retries.
func (r *Resilient) Generate(ctx context.Context, req Request) (string, error) {
	var out string
	err := retry.Do(ctx, retry.Policy{
		Backoff: r.backoff,
		OnRetry: func(attempt int, err error) {
			r.log.Warn("retryable generation error", "attempt", attempt, "error", err)
		},
	}, func(ctx context.Context) error {
		res, err := r.breaker.Execute(func() (interface{}, error) {
			return r.call(ctx, req)
		})
		if err != nil {
			return err
		}
		out = res.(string)
		return nil
	})
	if err != nil {
		if !errors.Is(err, label.ErrUpstreamUnavailable) {
			err = fmt.Errorf("generate: %w: %w", label.ErrUpstreamUnavailable, err)
		}
		return "", err
	}
	return out, nil
}

func (r *Resilient) call(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out, err := r.next.Generate(callCtx, req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		r.stats.RecordFailure(elapsed)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("generate timed out after %s: %w: %w", r.timeout, label.ErrUpstreamUnavailable, err)
		}
		return "", err
	}
	r.stats.Record(elapsed)
	return out, nil
}

// Model returns the wrapped generator's model.
func (r *Resilient) Model() string {
	return r.next.Model()
}

// Stats returns a latency snapshot for the last hour.
func (r *Resilient) Stats() StatsSnapshot {
	snap := r.stats.Snapshot()
	snap.Model = r.next.Model()
	return snap
}
