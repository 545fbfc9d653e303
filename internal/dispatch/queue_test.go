package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_CloseUnblocksFullPublish(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, NewSMSIntent("u1", alice, "first", time.Now())))

	published := make(chan error, 1)
	go func() { published <- q.Publish(ctx, NewSMSIntent("u1", alice, "second", time.Now())) }()

	closed := make(chan struct{})
	go func() {
		_ = q.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a waiting publisher")
	}
	select {
	case err := <-published:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after Close")
	}
	assert.ErrorIs(t, q.Publish(ctx, NewSMSIntent("u1", alice, "late", time.Now())), ErrQueueClosed)
}

func TestMemoryQueue_DrainsBufferAfterClose(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	for _, body := range []string{"a", "b"} {
		require.NoError(t, q.Publish(ctx, NewSMSIntent("u1", alice, body, time.Now())))
	}
	require.NoError(t, q.Close())

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)
	var bodies []string
	for d := range deliveries {
		bodies = append(bodies, d.Intent.Body)
		require.NoError(t, d.Ack())
	}
	assert.Equal(t, []string{"a", "b"}, bodies)
	assert.ErrorIs(t, q.requeue(NewSMSIntent("u1", alice, "c", time.Now())), ErrQueueClosed)
}
