package mqtt

import (
	"errors"
	"sync"
)

// DefaultQueueSize is the number of messages an AsyncPublisher holds
// before it starts rejecting publishes.
const DefaultQueueSize = 64

var (
	// ErrQueueFull is returned when the publish queue has no room.
	ErrQueueFull = errors.New("mqtt: publish queue full")
	// ErrClosed is returned by publishes after Close.
	ErrClosed = errors.New("mqtt: publisher closed")
)

// AsyncPublisher queues messages for a background goroutine that owns the
// wrapped publisher, so a slow broker never blocks the caller.
// Errors from the wrapped publisher are logged, not returned.
type AsyncPublisher struct {
	next  Publisher
	queue chan func() error
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewAsyncPublisher starts a publisher that forwards to next.
func NewAsyncPublisher(next Publisher, size int) *AsyncPublisher {
	if size < 1 {
		size = 1
	}
	a := &AsyncPublisher{
		next:  next,
		queue: make(chan func() error, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for send := range a.queue {
		if err := send(); err != nil {
			log.WithError(err).Warn("publish error")
		}
	}
}

func (a *AsyncPublisher) enqueue(send func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- send:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish queues a relay event.
func (a *AsyncPublisher) Publish(event RelayEvent) error {
	return a.enqueue(func() error { return a.next.Publish(event) })
}

// PublishMeasurement queues a measurement.
func (a *AsyncPublisher) PublishMeasurement(m MeasurementEvent) error {
	return a.enqueue(func() error { return a.next.PublishMeasurement(m) })
}

// PublishSystem queues a system event.
func (a *AsyncPublisher) PublishSystem(event SystemEvent) error {
	return a.enqueue(func() error { return a.next.PublishSystem(event) })
}

// Close sends everything still queued, then closes the wrapped publisher.
func (a *AsyncPublisher) Close() error {
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
