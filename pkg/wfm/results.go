package wfm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ItemError describes why a single item of a bulk operation failed.
type ItemError struct {
	Key     string `json:"key"     yaml:"key"`
	Code    string `json:"code"    yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %s: %s", e.Key, e.Code, e.Message)
}

// Outcome is the per-item result of a bulk operation. Exactly one of Entity
// (on success) or Err (on failure) is meaningful.
type Outcome[T any] struct {
	Entity T          `json:"entity,omitempty" yaml:"entity,omitempty"`
	Err    *ItemError `json:"error,omitempty"  yaml:"error,omitempty"`
}

// positionPrefix marks outcome keys derived from an item's position rather
// than its identifier, so they never collide with client ids.
const positionPrefix = "#"

// PositionKey returns the outcome key of the id-less item at index in the
// whole input.
func PositionKey(index int) string {
	return positionPrefix + strconv.Itoa(index)
}

// Success returns a successful outcome carrying entity.
func Success[T any](entity T) Outcome[T] {
	return Outcome[T]{Entity: entity}
}

// Failure returns a failed outcome for the item correlated by key.
func Failure[T any](key, code, message string) Outcome[T] {
	return Outcome[T]{Err: &ItemError{Key: key, Code: code, Message: message}}
}

// Succeeded reports whether the item succeeded.
func (o Outcome[T]) Succeeded() bool {
	return o.Err == nil
}

// PageState describes where a paginated read stopped.
type PageState struct {
	HasMore bool   `json:"has_more"       yaml:"has_more"`
	Next    string `json:"next,omitempty" yaml:"next,omitempty"`
	Page    int    `json:"page,omitempty" yaml:"page,omitempty"`
}

// RateLimitState is the tenant's request budget as last reported by the API.
type RateLimitState struct {
	Limit     int       `json:"limit"               yaml:"limit"`
	Remaining int       `json:"remaining"           yaml:"remaining"`
	ResetAt   time.Time `json:"reset_at,omitempty"  yaml:"reset_at,omitempty"`
}

// Known reports whether the state was populated from response headers.
func (s RateLimitState) Known() bool {
	return s.Limit > 0 || s.Remaining > 0 || !s.ResetAt.IsZero()
}

// ResultsMeta carries response-level metadata of the latest exchange.
type ResultsMeta struct {
	Page      *PageState      `json:"page,omitempty"       yaml:"page,omitempty"`
	RateLimit *RateLimitState `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	RequestID string          `json:"request_id,omitempty" yaml:"request_id,omitempty"`
}

// Results is what an operation produced: the successfully returned entities
// in request (or fetch) order, one outcome per input item for bulk writes,
// and the metadata of the latest exchange.
type Results[T any] struct {
	Items    []T                   `json:"items"              yaml:"items"`
	Outcomes map[string]Outcome[T] `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Meta     ResultsMeta           `json:"meta"               yaml:"meta"`
}

// NewResults returns empty results ready for accumulation.
func NewResults[T any]() *Results[T] {
	return &Results[T]{
		Items:    []T{},
		Outcomes: map[string]Outcome[T]{},
	}
}

// Failures returns the failed outcomes sorted by key.
func (r *Results[T]) Failures() []*ItemError {
	failures := make([]*ItemError, 0)

	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			failures = append(failures, outcome.Err)
		}
	}

	sort.Slice(failures, func(i, j int) bool {
		return lessKey(failures[i].Key, failures[j].Key)
	})

	return failures
}

// Succeeded returns the number of successful outcomes.
func (r *Results[T]) Succeeded() int {
	count := 0

	for _, outcome := range r.Outcomes {
		if outcome.Err == nil {
			count++
		}
	}

	return count
}

// Err aggregates every item failure into a single error, or nil when all
// items succeeded.
func (r *Results[T]) Err() error {
	var result *multierror.Error

	for _, failure := range r.Failures() {
		result = multierror.Append(result, failure)
	}

	return result.ErrorOrNil()
}

// lessKey orders position keys numerically and ahead of identifiers,
// numeric identifiers numerically and everything else lexically.
func lessKey(a, b string) bool {
	positionA, isPositionA := strings.CutPrefix(a, positionPrefix)
	positionB, isPositionB := strings.CutPrefix(b, positionPrefix)

	switch {
	case isPositionA && isPositionB && isDigits(positionA) && isDigits(positionB):
		a, b = positionA, positionB
	case isPositionA != isPositionB:
		return isPositionA
	}

	if isDigits(a) && isDigits(b) && len(a) != len(b) {
		return len(a) < len(b)
	}

	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// Download holds the raw content returned by a download operation.
type Download struct {
	Content     []byte      `json:"-"            yaml:"-"`
	ContentType string      `json:"content_type" yaml:"content_type"`
	Meta        ResultsMeta `json:"meta"         yaml:"meta"`
}
