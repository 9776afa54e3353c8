package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// GuardOptions configures outbound pacing and the circuit breaker.
type GuardOptions struct {
	RequestsPerMinute int
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before a trial request.
	OpenTimeout time.Duration
}

// Guard wraps a Client with request pacing, a circuit breaker and a single retry
// on transient errors.
type Guard struct {
	base    Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	delay   time.Duration
}

// NewGuard wraps base. A non-positive RequestsPerMinute disables pacing.
func NewGuard(base Client, opts GuardOptions) *Guard {
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	threshold := opts.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.Warn("llm.breaker.state", map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &Guard{base: base, limiter: limiter, breaker: breaker, delay: retryBaseDelay}
}

// Complete paces, then calls the base client through the breaker, retrying once
// after a short delay when the failure looks transient.
func (g *Guard) Complete(ctx context.Context, req Request) (string, error) {
	out, err := g.once(ctx, req)
	if err == nil || !shouldRetry(err) {
		return out, err
	}

	telemetry.Warn("llm.retry", map[string]any{"attempt": 1, "model": req.Model, "error": err.Error()})
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.once(ctx, req)
}

func (g *Guard) once(ctx context.Context, req Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.base.Complete(ctx, req)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.IncModelCall("rejected")
		return "", err
	case err != nil:
		metrics.IncModelCall("error")
		return "", err
	}
	metrics.IncModelCall("ok")
	out, _ := res.(string)
	return out, nil
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "http status 429") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}
