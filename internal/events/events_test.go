package events_test

import (
	"context"
	"testing"

	"github.com/fivetwenty-io/wfm-client/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	t.Parallel()

	event := &events.OperationEvent{Endpoint: "leave_requests", Kind: "create"}
	assert.Equal(t, "wfm.operations.leave_requests.create", events.Subject("", event))
	assert.Equal(t, "acme.ops.leave_requests.create", events.Subject("acme.ops.", event))

	dotted := &events.OperationEvent{Endpoint: "hr.v2 employees", Kind: "get"}
	assert.Equal(t, "wfm.operations.hr_v2_employees.get", events.Subject("", dotted))
}

func TestNewPublisher(t *testing.T) {
	t.Parallel()

	publisher, err := events.NewPublisher(nil)
	require.NoError(t, err)
	assert.IsType(t, events.NopPublisher{}, publisher)

	publisher, err = events.NewPublisher(&events.Config{Type: events.PublisherTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &events.MemoryPublisher{}, publisher)

	_, err = events.NewPublisher(&events.Config{Type: events.PublisherTypeNATS})
	require.ErrorIs(t, err, events.ErrNATSURLRequired)

	_, err = events.NewPublisher(&events.Config{Type: "kafka"})
	require.ErrorIs(t, err, events.ErrUnsupportedPublisher)
}

func TestNewNATSPublisher_ConnectFailure(t *testing.T) {
	t.Parallel()

	_, err := events.NewNATSPublisher("nats://127.0.0.1:1", "", "wfm-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to NATS")
}

func TestMemoryPublisher(t *testing.T) {
	t.Parallel()

	publisher := events.NewMemoryPublisher()

	err := publisher.Publish(context.Background(), &events.OperationEvent{ID: "1", Endpoint: "shifts"})
	require.NoError(t, err)

	recorded := publisher.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, "shifts", recorded[0].Endpoint)
	require.NoError(t, publisher.Close())
}
