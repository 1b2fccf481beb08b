package adapter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultQueueSize is the number of events a Dispatcher holds before dropping.
const DefaultQueueSize = 64

// ErrQueueFull is reported when an event is dropped because the queue is full.
var ErrQueueFull = errors.New("notification queue full")

// ResultFunc observes the outcome of each notification.
// err is nil on success, ErrQueueFull on drop, or the publish error.
type ResultFunc func(event *ImageCompletedEvent, err error)

// Dispatcher publishes events from a background worker so a slow or
// unreachable endpoint never blocks the receive loop. Events are published
// in submission order; when the queue is full new events are dropped.
type Dispatcher struct {
	adapter  Adapter
	onResult ResultFunc

	queue chan *ImageCompletedEvent
	done  chan struct{}

	// ctx bounds in-flight publishes; canceled when Close gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher over a. onResult may be nil.
func NewDispatcher(a Adapter, queueSize int, onResult ResultFunc) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if onResult == nil {
		onResult = func(*ImageCompletedEvent, error) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		adapter:  a,
		onResult: onResult,
		queue:    make(chan *ImageCompletedEvent, queueSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		err := d.adapter.Publish(d.ctx, event)
		d.onResult(event, err)
	}
}

// Submit queues event for publishing. It never blocks.
// Must not be called after Close.
func (d *Dispatcher) Submit(event *ImageCompletedEvent) {
	select {
	case d.queue <- event:
	default:
		d.onResult(event, ErrQueueFull)
	}
}

// Close stops accepting events, waits up to timeout for queued events to
// publish, then closes the adapter. Events still pending at the deadline
// have their publish canceled.
func (d *Dispatcher) Close(timeout time.Duration) error {
	var err error
	d.closeOnce.Do(func() {
		close(d.queue)

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-d.done:
		case <-timer.C:
			d.cancel()
			<-d.done
		}
		d.cancel()
		err = d.adapter.Close()
	})
	return err
}
