package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/pkg/jobs"
)

// DispatcherConfig sizes the background worker pool.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// Dispatcher moves publication off the request path: Publish only enqueues,
// and queue workers hand events to the sink with retries.
type Dispatcher struct {
	sink    Publisher
	queue   *jobs.Queue
	dropped func(eventType string)
}

// NewDispatcher wraps sink with a worker queue. onDrop is called for events
// that could not be queued or exhausted their retries; it may be nil.
func NewDispatcher(sink Publisher, cfg DispatcherConfig, logger *zap.Logger, onDrop func(eventType string)) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onDrop == nil {
		onDrop = func(string) {}
	}
	d := &Dispatcher{sink: sink, dropped: onDrop}
	d.queue = jobs.NewQueue("domain-events", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		DeadLetter: func(job jobs.Job, err error) {
			d.dropped(job.Type)
		},
	})
	return d
}

// Start launches the workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Publish implements Publisher without blocking the caller.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	// Workers run detached from the request, so the ID is captured here.
	event = Correlate(ctx, event)
	err := d.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: event.Type, Payload: event})
	if err != nil {
		// Reported to the caller, which owns the log line.
		d.dropped(event.Type)
		return fmt.Errorf("enqueue event %s %s: %w", event.Type, event.ID, err)
	}
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(Event)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return d.sink.Publish(ctx, event)
}
