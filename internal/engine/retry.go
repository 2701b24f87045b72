package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
	wfmhttp "github.com/fivetwenty-io/wfm-client/internal/http"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// failureClass is how the retry policy treats a failed attempt.
type failureClass int

const (
	classSuccess failureClass = iota
	classRateLimited
	classTransient
	classAuth
	classClient
)

func classify(resp *wfmhttp.Response, apiErr *wfm.APIError) failureClass {
	switch {
	case resp.StatusCode < http.StatusBadRequest:
		return classSuccess
	case resp.StatusCode == http.StatusTooManyRequests:
		return classRateLimited
	case apiErr != nil && apiErr.Code == wfm.ErrorCodeRateLimitExceeded:
		return classRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		return classTransient
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return classAuth
	default:
		return classClient
	}
}

func (e *Engine) newBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retryWaitMin
	policy.MaxInterval = e.retryWaitMax
	policy.Multiplier = constants.ExponentialBackoffBase
	policy.RandomizationFactor = constants.BackoffJitter
	policy.MaxElapsedTime = 0
	policy.Reset()

	return policy
}

// exchange sends req under the retry policy.
//
// It returns (resp, nil) on success and (resp, err) for a non-retryable
// client error the caller may turn into per-item failures. A nil response
// means the operation must abort: authentication failed, retries ran out,
// or ctx was cancelled.
func (e *Engine) exchange(ctx context.Context, exec *execution, req *wfmhttp.Request) (*wfmhttp.Response, error) {
	attempts := e.retryMax + 1
	policy := e.newBackOff()

	var last error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := e.budget.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx)
			}

			return nil, err
		}

		resp, err := e.attempt(ctx, exec, req)
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}

		var wait time.Duration

		switch {
		case resp == nil && errors.Is(err, wfm.ErrNotAuthenticated):
			return nil, err
		case resp == nil:
			last = &wfm.TransientError{Err: err}
			wait = policy.NextBackOff()
		default:
			apiErr := wfmhttp.APIErrorFrom(err)

			switch classify(resp, apiErr) {
			case classSuccess:
				return resp, nil
			case classRateLimited:
				last = e.throttle(resp, apiErr)
			case classTransient:
				last = &wfm.TransientError{Status: resp.StatusCode, Err: err}
				wait = policy.NextBackOff()
			case classAuth:
				return nil, err
			case classClient:
				return resp, err
			}
		}

		if attempt == attempts {
			break
		}

		e.logger.Warn("retrying exchange", map[string]interface{}{
			"endpoint": exec.descriptor.ID,
			"method":   req.Method,
			"path":     req.Path,
			"attempt":  attempt,
			"wait":     wait.String(),
			"error":    last.Error(),
		})

		if sleep(ctx, wait) != nil {
			return nil, cancelled(ctx)
		}
	}

	return nil, &wfm.ExhaustedRetriesError{Attempts: attempts, Last: last}
}

func (e *Engine) attempt(ctx context.Context, exec *execution, req *wfmhttp.Request) (*wfmhttp.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.exchangeTimeout)
	defer cancel()

	exec.exchanges++

	resp, err := e.transport.Do(attemptCtx, req)
	if resp != nil {
		e.budget.Observe(parseRateLimit(resp.Headers))
	}

	return resp, err
}

// throttle holds the shared budget back until the API's reset time and
// returns the failure to report if retries run out.
func (e *Engine) throttle(resp *wfmhttp.Response, apiErr *wfm.APIError) error {
	now := e.now()

	until := retryAfter(resp.Headers, now)
	if until.IsZero() {
		until = now.Add(e.rateLimitWait)
	}

	if until.Sub(now) > e.rateLimitWaitMax {
		until = now.Add(e.rateLimitWaitMax)
	}

	e.budget.Throttle(until)

	e.logger.Warn("rate limited", map[string]interface{}{
		"status":   resp.StatusCode,
		"reset_at": until.Format(time.RFC3339),
	})

	return &wfm.RateLimitedError{ResetAt: until, Err: apiErr}
}
