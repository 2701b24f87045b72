// Package events publishes a record of every executed operation.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNATSURLRequired      = errors.New("NATS URL required for NATS publisher")
	ErrUnsupportedPublisher = errors.New("unsupported publisher type")
	ErrPublisherClosed      = errors.New("publisher closed")
)

// OperationEvent describes one executed operation.
type OperationEvent struct {
	ID         string    `json:"id"`
	Endpoint   string    `json:"endpoint"`
	Kind       string    `json:"kind"`
	Exchanges  int       `json:"exchanges"`
	Items      int       `json:"items"`
	Failures   int       `json:"failures"`
	Cancelled  bool      `json:"cancelled,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Publisher delivers operation events.
type Publisher interface {
	Publish(ctx context.Context, event *OperationEvent) error
	Close() error
}

// PublisherType selects the publisher backend.
type PublisherType string

const (
	// PublisherTypeNATS publishes to NATS subjects.
	PublisherTypeNATS PublisherType = "nats"

	// PublisherTypeMemory keeps events in process.
	PublisherTypeMemory PublisherType = "memory"

	// PublisherTypeNone discards events.
	PublisherTypeNone PublisherType = "none"
)

// Config configures the publisher backend.
type Config struct {
	Type          PublisherType
	URL           string
	SubjectPrefix string
	// Name identifies the connection to the NATS server.
	Name string
}

// NewPublisher creates a publisher for config. A nil config discards events.
func NewPublisher(config *Config) (Publisher, error) {
	if config == nil {
		return NopPublisher{}, nil
	}

	switch config.Type {
	case PublisherTypeNone, "":
		return NopPublisher{}, nil
	case PublisherTypeMemory:
		return NewMemoryPublisher(), nil
	case PublisherTypeNATS:
		if config.URL == "" {
			return nil, ErrNATSURLRequired
		}

		return NewNATSPublisher(config.URL, config.SubjectPrefix, config.Name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPublisher, config.Type)
	}
}

// Subject returns the subject an event is published on:
// <prefix>.<endpoint>.<kind>.
func Subject(prefix string, event *OperationEvent) string {
	if prefix == "" {
		prefix = constants.DefaultEventsSubjectPrefix
	}

	return strings.Join([]string{strings.TrimSuffix(prefix, "."), token(event.Endpoint), token(event.Kind)}, ".")
}

// token makes s usable as a single subject token.
func token(s string) string {
	replacer := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

	return replacer.Replace(s)
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, *OperationEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// MemoryPublisher keeps events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []OperationEvent
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish implements Publisher.
func (p *MemoryPublisher) Publish(_ context.Context, event *OperationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, *event)

	return nil
}

// Events returns a copy of the published events.
func (p *MemoryPublisher) Events() []OperationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]OperationEvent(nil), p.events...)
}

// Close implements Publisher.
func (p *MemoryPublisher) Close() error { return nil }

// NATSPublisher publishes events as JSON to NATS.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subjectPrefix, name string) (*NATSPublisher, error) {
	opts := []nats.Option{nats.Timeout(constants.ShortHTTPTimeout)}
	if name != "" {
		opts = append(opts, nats.Name(name))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, prefix: subjectPrefix}, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, event *OperationEvent) error {
	if p.conn.IsClosed() {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling operation event: %w", err)
	}

	msg := nats.NewMsg(Subject(p.prefix, event))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)

	err = p.conn.PublishMsg(msg)
	if err != nil {
		return fmt.Errorf("publishing operation event: %w", err)
	}

	return nil
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}

	err := p.conn.Flush()
	p.conn.Close()

	if err != nil {
		return fmt.Errorf("flushing NATS connection: %w", err)
	}

	return nil
}
