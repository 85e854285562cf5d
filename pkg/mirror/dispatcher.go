// Package mirror copies documents somewhere else after a writer closes them.
package mirror

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/errors"
	"github.com/theapemachine/docprovider/pkg/metrics"
)

/*
Event is a document that was closed after being written.
*/
type Event struct {
	DocumentID string
	RootID     string
	RelPath    string
	MimeType   string
	Size       int64
	At         time.Time
	Open       func() (io.ReadCloser, error)
}

/*
Hook receives closed documents. Sync should be safe to call again for the
same event; failed calls are retried.
*/
type Hook interface {
	Name() string
	Sync(ctx context.Context, event Event) error
}

/*
Dispatcher queues closed documents and hands them to every hook from a
single worker, retrying each hook with backoff. Enqueueing never blocks a
closing writer: when the queue is full the event is dropped and logged.
*/
type Dispatcher struct {
	mu      sync.Mutex
	hooks   []Hook
	queue   chan Event
	retry   *errors.RetryConfig
	metrics *metrics.Operations
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

type DispatcherOption func(*Dispatcher)

func WithRetry(retry *errors.RetryConfig) DispatcherOption {
	return func(d *Dispatcher) {
		d.retry = retry
	}
}

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.queue = make(chan Event, n)
	}
}

func WithMetrics(ops *metrics.Operations) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = ops
	}
}

/*
NewDispatcher starts the worker. Close stops it after the queue drains.
*/
func NewDispatcher(hooks []Hook, opts ...DispatcherOption) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		hooks:  hooks,
		queue:  make(chan Event, 256),
		retry:  errors.DefaultRetryConfig(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	go d.worker()

	return d
}

/*
DocumentClosed implements documents.CloseHook.
*/
func (d *Dispatcher) DocumentClosed(event documents.ClosedEvent) {
	d.Enqueue(Event{
		DocumentID: event.Document.ID,
		RootID:     event.RootID,
		RelPath:    event.RelPath,
		MimeType:   event.Document.MimeType,
		Size:       event.Document.Size,
		At:         time.Now(),
		Open:       event.Open,
	})
}

/*
Enqueue queues an event and reports whether it was accepted.
*/
func (d *Dispatcher) Enqueue(event Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		log.Warn("mirror queue full, dropping event", "root", event.RootID, "path", event.RelPath)
		return false
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		for _, hook := range d.hooks {
			d.sync(hook, event)
		}
	}
}

func (d *Dispatcher) sync(hook Hook, event Event) {
	start := time.Now()

	err := errors.RetryWithBackoff(d.retry, func() error {
		if err := d.ctx.Err(); err != nil {
			return err
		}

		return hook.Sync(d.ctx, event)
	})

	if d.metrics != nil {
		d.metrics.Record("mirror."+hook.Name(), err, time.Since(start))
	}

	if err != nil {
		log.Error("mirror hook failed", "hook", hook.Name(), "root", event.RootID, "path", event.RelPath, "error", err)
	}
}

/*
Close stops accepting events, lets the worker drain the queue and waits for
it, or gives up waiting when ctx ends and aborts the in-flight hooks.
*/
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return fmt.Errorf("mirror dispatcher: %w", ctx.Err())
	}
}
