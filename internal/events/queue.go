package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull   = errors.New("events: queue full")
	ErrQueueClosed = errors.New("events: queue stopped")
)

// Queue decouples producers from a slow or failing sink. Publish never
// blocks: events that do not fit in the buffer are dropped and counted.
// A single worker drains the buffer into the sink; sink errors are logged
// and not retried.
type Queue struct {
	sink    Publisher
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	ch      chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool

	dropped   uint64
	delivered uint64
	failed    uint64
}

func NewQueue(sink Publisher, bufferSize int, logger *slog.Logger) *Queue {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if sink == nil {
		sink = Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		sink:    sink,
		logger:  logger,
		timeout: 5 * time.Second,
		ch:      make(chan Event, bufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// SetTimeout bounds a single sink delivery.
func (q *Queue) SetTimeout(d time.Duration) {
	if d > 0 {
		q.timeout = d
	}
}

func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	go q.loop()
}

// Stop rejects new events, delivers what is already buffered and waits for
// the worker to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	started := q.started
	close(q.stopCh)
	q.mu.Unlock()
	if started {
		<-q.doneCh
	}
}

func (q *Queue) Publish(_ context.Context, ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueClosed
	}
	select {
	case q.ch <- ev:
		return nil
	default:
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

func (q *Queue) Dropped() uint64   { return atomic.LoadUint64(&q.dropped) }
func (q *Queue) Delivered() uint64 { return atomic.LoadUint64(&q.delivered) }
func (q *Queue) Failed() uint64    { return atomic.LoadUint64(&q.failed) }

func (q *Queue) loop() {
	defer close(q.doneCh)
	for {
		select {
		case ev := <-q.ch:
			q.deliver(ev)
		case <-q.stopCh:
			for {
				select {
				case ev := <-q.ch:
					q.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := q.sink.Publish(ctx, ev); err != nil {
		atomic.AddUint64(&q.failed, 1)
		q.logger.Error("event delivery failed", "event_id", ev.ID, "event_type", string(ev.Kind), "task_id", ev.TaskID, "err", err)
		return
	}
	atomic.AddUint64(&q.delivered, 1)
}
