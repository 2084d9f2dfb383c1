// Package channel provides the bounded queues connecting pipeline stages.
package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("channel closed")

// Bounded is a fixed-capacity queue connecting two pipeline stages. A full
// queue blocks the sender (backpressure) rather than dropping data; both ends
// unblock on context cancellation or Close.
type Bounded[T any] struct {
	ch        chan T
	closeOnce sync.Once
	done      chan struct{}

	sends  atomic.Int64
	recvs  atomic.Int64
	blocks atomic.Int64
}

// NewBounded creates a bounded queue with the given capacity.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bounded[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Send enqueues v, blocking while the queue is full.
func (b *Bounded[T]) Send(ctx context.Context, v T) error {
	b.sends.Add(1)
	select {
	case b.ch <- v:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b.blocks.Add(1)
	select {
	case b.ch <- v:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues v without blocking; reports whether it was accepted.
func (b *Bounded[T]) TrySend(v T) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- v:
		b.sends.Add(1)
		return true
	default:
		return false
	}
}

// Receive dequeues the next value, blocking while the queue is empty.
// After Close, buffered values are still drained before ErrClosed.
func (b *Bounded[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-b.ch:
		b.recvs.Add(1)
		return v, nil
	default:
	}
	select {
	case v := <-b.ch:
		b.recvs.Add(1)
		return v, nil
	case <-b.done:
		// Drain anything enqueued before the close.
		select {
		case v := <-b.ch:
			b.recvs.Add(1)
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Drain discards all buffered values and returns how many were dropped.
func (b *Bounded[T]) Drain() int {
	dropped := 0
	for {
		select {
		case <-b.ch:
			dropped++
		default:
			return dropped
		}
	}
}

// Len returns the number of buffered values.
func (b *Bounded[T]) Len() int {
	return len(b.ch)
}

// Close unblocks all senders and receivers. Idempotent.
func (b *Bounded[T]) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Stats returns send/receive/block counters.
func (b *Bounded[T]) Stats() (sends, recvs, blocks int64) {
	return b.sends.Load(), b.recvs.Load(), b.blocks.Load()
}
