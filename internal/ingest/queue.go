package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/autoride/internal/observability"
)

const (
	DefaultQueueSize = 256
	publishTimeout   = 5 * time.Second
)

var (
	ErrQueueFull   = errors.New("publish queue full")
	ErrQueueClosed = errors.New("publish queue closed")
)

// queue hands items to a single worker goroutine. push never blocks.
type queue[T any] struct {
	items   chan T
	deliver func(context.Context, T) error
	failed  func(T, error)
	broker  string
	stream  string

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newQueue[T any](broker, stream string, size int, deliver func(context.Context, T) error, failed func(T, error)) *queue[T] {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &queue[T]{items: make(chan T, size), deliver: deliver, failed: failed, broker: broker, stream: stream}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *queue[T]) push(v T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.items <- v:
		return nil
	default:
		observability.EventsDropped.WithLabelValues(q.broker, q.stream).Inc()
		return ErrQueueFull
	}
}

func (q *queue[T]) run() {
	defer q.wg.Done()
	for v := range q.items {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := q.deliver(ctx, v)
		cancel()
		if err != nil {
			observability.EventsPublished.WithLabelValues(q.broker, q.stream, "error").Inc()
			q.failed(v, err)
			continue
		}
		observability.EventsPublished.WithLabelValues(q.broker, q.stream, "ok").Inc()
	}
}

// close drains what is queued and waits for the worker. It reports false if
// the queue was already closed.
func (q *queue[T]) close() bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()
	q.wg.Wait()
	return true
}
