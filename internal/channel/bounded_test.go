package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounded_SendReceive(t *testing.T) {
	q := NewBounded[int](2)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, 1))
	require.NoError(t, q.Send(ctx, 2))
	assert.Equal(t, 2, q.Len())

	v, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestBounded_FullAppliesBackpressure(t *testing.T) {
	q := NewBounded[int](1)
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, 1))

	// A full queue blocks the sender until a receiver makes room.
	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Send(ctx, 2)
	}()

	select {
	case <-unblocked:
		t.Fatal("send on a full queue must block")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := q.Receive(ctx)
	require.NoError(t, err)

	select {
	case err := <-unblocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sender did not unblock")
	}

	sends, _, blocked := q.Stats()
	assert.Equal(t, int64(2), sends)
	assert.Equal(t, int64(1), blocked)
}

func TestBounded_ContextCancel(t *testing.T) {
	q := NewBounded[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBounded_CloseDrainsBuffered(t *testing.T) {
	q := NewBounded[int](2)
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, 7))

	q.Close()
	q.Close() // idempotent

	v, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, q.Send(ctx, 8), ErrClosed)
	assert.False(t, q.TrySend(9))
}

func TestBounded_Drain(t *testing.T) {
	q := NewBounded[int](4)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Send(ctx, i))
	}

	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, 0, q.Len())
}
