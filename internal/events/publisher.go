package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Publisher delivers events on a best-effort basis.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event published", "event_id", ev.ID, "event_type", string(ev.Kind), "task_id", ev.TaskID, "payload", ev.Payload)
	return nil
}

// Recorder keeps published events in memory. Err, when set, is returned
// from every Publish after the event is recorded.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) OfKind(kind Kind) []Event {
	out := make([]Event, 0)
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Multi publishes to every publisher in order and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
