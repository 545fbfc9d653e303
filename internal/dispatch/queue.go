package dispatch

import (
	"context"
	"errors"
	"sync"
)

// Queue carries intents from the API to the workers with at-least-once delivery.
type Queue interface {
	Publish(ctx context.Context, in Intent) error
	// Consume streams deliveries until ctx is done, then closes the channel.
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

// Delivery is one received intent. Exactly one of Ack or Nack must be called.
type Delivery struct {
	Intent Intent

	ack  func() error
	nack func(requeue bool) error
}

func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

var ErrQueueClosed = errors.New("dispatch: queue closed")

// MemoryQueue is an in-process Queue backed by a buffered channel.
// Intents do not survive a restart.
type MemoryQueue struct {
	ch   chan Intent
	done chan struct{}
	once sync.Once
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryQueue{ch: make(chan Intent, buffer), done: make(chan struct{})}
}

// Publish blocks while the buffer is full, until ctx is done or the queue closes.
func (q *MemoryQueue) Publish(ctx context.Context, in Intent) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- in:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			var in Intent
			select {
			case <-ctx.Done():
				return
			case in = <-q.ch:
			case <-q.done:
				// Drain what was buffered before Close.
				select {
				case in = <-q.ch:
				default:
					return
				}
			}
			select {
			case out <- q.delivery(in):
			case <-ctx.Done():
				_ = q.requeue(in)
				return
			}
		}
	}()
	return out, nil
}

func (q *MemoryQueue) delivery(in Intent) Delivery {
	return Delivery{
		Intent: in,
		nack: func(requeue bool) error {
			if requeue {
				return q.requeue(in)
			}
			return nil
		},
	}
}

func (q *MemoryQueue) requeue(in Intent) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- in:
		return nil
	default:
		return errors.New("dispatch: memory queue full")
	}
}

// Close stops accepting intents and unblocks waiting publishers.
// Buffered intents are still drained by consumers.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

// Len is the number of buffered intents.
func (q *MemoryQueue) Len() int { return len(q.ch) }
