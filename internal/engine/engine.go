// Package engine turns operation contexts into batched, paginated and
// rate-limit aware API exchanges.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/internal/events"
	wfmhttp "github.com/fivetwenty-io/wfm-client/internal/http"
	"github.com/fivetwenty-io/wfm-client/internal/registry"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// Transport sends a single exchange. Implemented by *http.Client.
type Transport interface {
	Do(ctx context.Context, req *wfmhttp.Request) (*wfmhttp.Response, error)
}

// Resolver looks endpoint descriptors up. Implemented by *registry.Registry.
type Resolver interface {
	Resolve(id string) (registry.EndpointDescriptor, error)
}

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	// RetryMax is the number of retries after the first attempt of an
	// exchange. Zero selects the default; a negative value (wfm.NoRetries)
	// allows a single attempt.
	RetryMax         int
	RetryWaitMin     time.Duration
	RetryWaitMax     time.Duration
	ExchangeTimeout  time.Duration
	RateLimitWait    time.Duration
	RateLimitWaitMax time.Duration

	Budget    Budget
	Logger    wfm.Logger
	Publisher events.Publisher
}

// Engine executes operation contexts. It holds no per-operation state and is
// safe for concurrent use.
type Engine struct {
	resolver  Resolver
	transport Transport
	budget    Budget
	logger    wfm.Logger
	publisher events.Publisher

	retryMax         int
	retryWaitMin     time.Duration
	retryWaitMax     time.Duration
	exchangeTimeout  time.Duration
	rateLimitWait    time.Duration
	rateLimitWaitMax time.Duration
	now              func() time.Time
}

// New creates an engine.
func New(resolver Resolver, transport Transport, opts Options) *Engine {
	engine := &Engine{
		resolver:         resolver,
		transport:        transport,
		budget:           opts.Budget,
		logger:           opts.Logger,
		publisher:        opts.Publisher,
		retryMax:         opts.RetryMax,
		retryWaitMin:     opts.RetryWaitMin,
		retryWaitMax:     opts.RetryWaitMax,
		exchangeTimeout:  opts.ExchangeTimeout,
		rateLimitWait:    opts.RateLimitWait,
		rateLimitWaitMax: opts.RateLimitWaitMax,
		now:              time.Now,
	}

	switch {
	case engine.retryMax == 0:
		engine.retryMax = constants.DefaultRetryMax
	case engine.retryMax < 0:
		engine.retryMax = 0
	}

	if engine.retryWaitMin <= 0 {
		engine.retryWaitMin = constants.DefaultRetryWaitMin
	}

	if engine.retryWaitMax <= 0 {
		engine.retryWaitMax = constants.DefaultRetryWaitMax
	}

	if engine.exchangeTimeout <= 0 {
		engine.exchangeTimeout = constants.DefaultHTTPTimeout
	}

	if engine.rateLimitWait <= 0 {
		engine.rateLimitWait = constants.DefaultRateLimitWait
	}

	if engine.rateLimitWaitMax <= 0 {
		engine.rateLimitWaitMax = constants.MaxRateLimitWait
	}

	if engine.budget == nil {
		engine.budget = NewRateLimitBudget(0, engine.rateLimitWaitMax)
	}

	if engine.logger == nil {
		engine.logger = wfm.NopLogger()
	}

	if engine.publisher == nil {
		engine.publisher = events.NopPublisher{}
	}

	return engine
}

// Budget returns the shared rate limit budget.
func (e *Engine) Budget() Budget {
	return e.budget
}

// execution is the per-call state of one Execute.
type execution struct {
	descriptor registry.EndpointDescriptor
	in         *operationInput
	out        *operationOutput
	exchanges  int
}

// Execute runs op to completion. On success the context's results are set.
// A bulk operation with failed items still succeeds; the failures are in its
// outcomes. On error, including cancellation, the context's results stay unset.
func (e *Engine) Execute(ctx context.Context, op Operation) error {
	err := op.begin()
	if err != nil {
		return err
	}

	descriptor, err := e.resolver.Resolve(op.EndpointID())
	if err != nil {
		return err
	}

	if !descriptor.Supports(op.Kind()) {
		return &wfm.ConfigurationError{
			Endpoint: descriptor.ID,
			Reason:   fmt.Sprintf("%s: %s", wfm.ErrUnsupportedOperation, op.Kind()),
		}
	}

	exec := &execution{
		descriptor: descriptor,
		in:         op.input(),
		out:        newOperationOutput(),
	}

	start := e.now()

	e.logger.Debug("executing operation", map[string]interface{}{
		"endpoint": descriptor.ID,
		"kind":     string(op.Kind()),
	})

	err = e.dispatch(ctx, op.Kind(), exec)
	if err == nil {
		err = op.complete(exec.out)
	}

	e.publish(ctx, op.Kind(), exec, start, err)

	if err != nil {
		return err
	}

	e.logger.Debug("operation completed", map[string]interface{}{
		"endpoint":  descriptor.ID,
		"kind":      string(op.Kind()),
		"exchanges": exec.exchanges,
		"items":     len(exec.out.items),
		"duration":  e.now().Sub(start).String(),
	})

	return nil
}

func (e *Engine) dispatch(ctx context.Context, kind wfm.OperationKind, exec *execution) error {
	switch kind {
	case wfm.OperationCreate, wfm.OperationUpdate:
		return e.executeWrite(ctx, kind, exec)
	case wfm.OperationDelete:
		return e.executeDelete(ctx, exec)
	case wfm.OperationGet:
		return e.executeGet(ctx, exec)
	case wfm.OperationUpload:
		return e.executeUpload(ctx, exec)
	case wfm.OperationDownload:
		return e.executeDownload(ctx, exec)
	default:
		return &wfm.ConfigurationError{Endpoint: exec.descriptor.ID, Reason: fmt.Sprintf("unknown operation kind %q", kind)}
	}
}

func (e *Engine) publish(ctx context.Context, kind wfm.OperationKind, exec *execution, start time.Time, err error) {
	event := &events.OperationEvent{
		ID:         uuid.NewString(),
		Endpoint:   exec.descriptor.ID,
		Kind:       string(kind),
		Exchanges:  exec.exchanges,
		Items:      len(exec.out.items),
		StartedAt:  start,
		DurationMS: e.now().Sub(start).Milliseconds(),
	}

	for _, outcome := range exec.out.outcomes {
		if outcome.err != nil {
			event.Failures++
		}
	}

	if err != nil {
		event.Error = err.Error()
		event.Cancelled = errors.Is(err, wfm.ErrCancelled)
	}

	// Cancelled operations are reported too.
	pubErr := e.publisher.Publish(context.WithoutCancel(ctx), event)
	if pubErr != nil {
		e.logger.Warn("publishing operation event failed", map[string]interface{}{
			"endpoint": exec.descriptor.ID,
			"error":    pubErr.Error(),
		})
	}
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", wfm.ErrCancelled, context.Cause(ctx))
}
