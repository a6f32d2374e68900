package rabbitmq

import (
	"catalog/pkg/events"
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAck struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (f *fakeAck) Ack(bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func encodedEvent(t *testing.T) []byte {
	t.Helper()
	event, err := events.NewEvent(events.ReviewCreatedEvent, events.EventVersionV1, map[string]string{"productId": "p-1"}, events.NewHeaders("storefront"))
	require.NoError(t, err)
	body, err := event.ToJSON()
	require.NoError(t, err)
	return body
}

func TestHandleDelivery_AcksHandledEvent(t *testing.T) {
	ack := &fakeAck{}
	var got *events.Event

	handleDelivery(context.Background(), ack, encodedEvent(t), amqp.Table{"x-trace-id": "t-1"},
		func(_ context.Context, event *events.Event) error {
			got = event
			return nil
		}, time.Second)

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	require.NotNil(t, got)
	assert.Equal(t, "review.created.v1", got.GetRoutingKey())
}

func TestHandleDelivery_RejectsFailedEventWithoutRequeue(t *testing.T) {
	ack := &fakeAck{}

	handleDelivery(context.Background(), ack, encodedEvent(t), nil,
		func(context.Context, *events.Event) error {
			return errors.New("boom")
		}, time.Second)

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
	assert.False(t, ack.acked)
}

func TestHandleDelivery_RejectsMalformedBody(t *testing.T) {
	ack := &fakeAck{}
	called := false

	handleDelivery(context.Background(), ack, []byte("{not json"), nil,
		func(context.Context, *events.Event) error {
			called = true
			return nil
		}, time.Second)

	assert.True(t, ack.nacked)
	assert.False(t, called)
}

func TestHandleDelivery_HandlerSeesDeadline(t *testing.T) {
	ack := &fakeAck{}

	handleDelivery(context.Background(), ack, encodedEvent(t), nil,
		func(ctx context.Context, _ *events.Event) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		}, time.Second)

	assert.True(t, ack.acked)
}
