package engine

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// Budget tracks the tenant's request budget shared by every operation.
type Budget interface {
	// Wait blocks until a request may be sent or ctx is done.
	Wait(ctx context.Context) error
	// Observe records the budget reported by a response.
	Observe(state wfm.RateLimitState)
	// Throttle holds back every request until the given time.
	Throttle(until time.Time)
	// Snapshot returns the last observed budget.
	Snapshot() wfm.RateLimitState
}

// RateLimitBudget is the default Budget. It is safe for concurrent use.
type RateLimitBudget struct {
	mu           sync.Mutex
	state        wfm.RateLimitState
	blockedUntil time.Time
	limiter      *rate.Limiter
	maxWait      time.Duration
	now          func() time.Time
}

// NewRateLimitBudget creates a budget. requestsPerSecond > 0 adds client-side
// pacing; maxWait bounds any single wait for a server-side reset.
func NewRateLimitBudget(requestsPerSecond float64, maxWait time.Duration) *RateLimitBudget {
	if maxWait <= 0 {
		maxWait = constants.MaxRateLimitWait
	}

	budget := &RateLimitBudget{
		maxWait: maxWait,
		now:     time.Now,
	}

	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}

		budget.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}

	return budget
}

// Wait implements Budget.
func (b *RateLimitBudget) Wait(ctx context.Context) error {
	if b.limiter != nil {
		err := b.limiter.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}
	}

	return sleep(ctx, b.pendingWait())
}

func (b *RateLimitBudget) pendingWait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	until := b.blockedUntil

	if b.state.Limit > 0 && b.state.Remaining <= constants.RateLimitExhaustedThreshold && b.state.ResetAt.After(until) {
		until = b.state.ResetAt
	}

	wait := until.Sub(now)
	if wait <= 0 {
		return 0
	}

	if wait > b.maxWait {
		wait = b.maxWait
	}

	return wait
}

// Observe implements Budget.
func (b *RateLimitBudget) Observe(state wfm.RateLimitState) {
	if !state.Known() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = state
}

// Throttle implements Budget.
func (b *RateLimitBudget) Throttle(until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if until.After(b.blockedUntil) {
		b.blockedUntil = until
	}
}

// Snapshot implements Budget.
func (b *RateLimitBudget) Snapshot() wfm.RateLimitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// parseRateLimit reads the X-RateLimit-* headers.
func parseRateLimit(headers http.Header) wfm.RateLimitState {
	var state wfm.RateLimitState

	if headers == nil {
		return state
	}

	if limit, err := strconv.Atoi(headers.Get(constants.HeaderRateLimitLimit)); err == nil {
		state.Limit = limit
	}

	if remaining, err := strconv.Atoi(headers.Get(constants.HeaderRateLimitRemaining)); err == nil {
		state.Remaining = remaining
	}

	if reset, err := strconv.ParseInt(headers.Get(constants.HeaderRateLimitReset), 10, 64); err == nil && reset > 0 {
		state.ResetAt = time.Unix(reset, 0)
	}

	return state
}

// retryAfter returns when a rate limited request may be retried, or the
// zero time when the response does not say.
func retryAfter(headers http.Header, now time.Time) time.Time {
	if headers == nil {
		return time.Time{}
	}

	if value := headers.Get(constants.HeaderRetryAfter); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
			return now.Add(time.Duration(seconds) * time.Second)
		}

		if at, err := http.ParseTime(value); err == nil {
			return at
		}
	}

	return parseRateLimit(headers).ResetAt
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
