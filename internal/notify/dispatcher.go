// Package notify delivers user-facing failure notifications without blocking
// the request that produced them.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rideops/fleet-backoffice/internal/metrics"
	"github.com/rideops/fleet-backoffice/pkg/client"
)

const defaultBuffer = 64

// Sink receives notifications from the dispatcher worker.
type Sink interface {
	Deliver(n client.Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n client.Notification)

func (f SinkFunc) Deliver(n client.Notification) { f(n) }

// Dispatcher queues notifications on a buffered channel and hands them to a
// single worker, so callers never wait on the sink. When the buffer is full
// the notification is dropped and counted.
type Dispatcher struct {
	ch   chan client.Notification
	sink Sink
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher creates a Dispatcher. If buffer <= 0, defaultBuffer is used.
func NewDispatcher(buffer int, sink Sink, log zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Dispatcher{
		ch:   make(chan client.Notification, buffer),
		sink: sink,
		log:  log,
		done: make(chan struct{}),
	}
}

// Start launches the worker. Cancelling ctx acts like Close: queued
// notifications are still delivered and later ones are ignored.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Notify enqueues n. It never blocks.
func (d *Dispatcher) Notify(n client.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	select {
	case d.ch <- n:
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().Str("message", n.Message).Msg("notification queue full, dropping")
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered. It must only be called after Start.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	<-d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case n, ok := <-d.ch:
			if !ok {
				return
			}
			d.deliver(n)
		}
	}
}

// drain stops accepting notifications, like Close, and delivers the ones
// already queued.
func (d *Dispatcher) drain() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()

	for n := range d.ch {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n client.Notification) {
	d.sink.Deliver(n)
	metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
}

// LogSink writes notifications as warnings.
func LogSink(log zerolog.Logger) Sink {
	return SinkFunc(func(n client.Notification) {
		log.Warn().
			Str("method", n.Method).
			Str("path", n.Path).
			Int("status", n.StatusCode).
			Msg(n.Message)
	})
}

// WriterSink prints one line per notification, e.g. for a terminal.
func WriterSink(w io.Writer) Sink {
	return SinkFunc(func(n client.Notification) {
		_, _ = fmt.Fprintf(w, "! %s\n", n.Message)
	})
}
