package geocode

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// retryPolicy controls retries of a single lookup with exponential backoff
// and jitter. Only throttling, server errors and transport failures are
// retried; a decoded "no match" never is.
type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	jitterFraction float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:    1,
		initialBackoff: 250 * time.Millisecond,
		maxBackoff:     5 * time.Second,
		jitterFraction: 0.25,
	}
}

// WithRetry allows up to attempts tries per lookup (1 disables retries).
// initial is the first backoff; zero keeps the default.
func WithRetry(attempts int, initial time.Duration) Option {
	return func(g *geocoder) {
		if attempts > 0 {
			g.retry.maxAttempts = attempts
		}
		if initial > 0 {
			g.retry.initialBackoff = initial
		}
	}
}

// do runs fn until it succeeds, fails permanently, or attempts run out.
// Context cancellation stops retries immediately.
func (p retryPolicy) do(ctx context.Context, address string, fn func(context.Context) (*Result, error)) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt >= p.maxAttempts-1 {
			break
		}

		zap.L().Debug("geocode: retrying lookup",
			zap.String("address", address),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.initialBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxBackoff) {
		delay = float64(p.maxBackoff)
	}
	if p.jitterFraction > 0 {
		jitterRange := delay * p.jitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func retryable(err error) bool {
	var se *statusError
	if eris.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	msg := err.Error()
	if strings.Contains(msg, "google status") {
		return strings.Contains(msg, "OVER_QUERY_LIMIT")
	}
	return failureReason(err) == "transport"
}
