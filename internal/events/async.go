package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultQueueSize = 1024

	deliverTimeout = 5 * time.Second
)

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("publisher closed")
)

// Async hands events to a background goroutine so callers never wait on a
// broker. When the queue is full the event is dropped and ErrQueueFull is
// returned.
type Async struct {
	next  Publisher
	queue chan Event
	log   *slog.Logger
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Publisher, size int, l *slog.Logger) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if l == nil {
		l = slog.Default()
	}
	a := &Async{
		next:  next,
		queue: make(chan Event, size),
		log:   l,
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		if err := a.next.Publish(ctx, e); err != nil {
			a.log.Error("event_publish_error", "type", e.Type, "error", err)
		}
		cancel()
	}
}

// Close delivers what is already queued, then closes the wrapped publisher.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
