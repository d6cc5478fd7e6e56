package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sandeepkv93/todoflow/internal/completion"
	"github.com/sandeepkv93/todoflow/internal/config"
	"github.com/sandeepkv93/todoflow/internal/events"
	"github.com/sandeepkv93/todoflow/internal/scheduler"
	"github.com/sandeepkv93/todoflow/internal/storage"
	"github.com/sandeepkv93/todoflow/internal/tasks"
)

// stack is the wired core shared by every subcommand.
type stack struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *storage.SQLiteStore
	queue   *events.Queue
	engine  *scheduler.Engine
	coord   *completion.Coordinator
	service *tasks.Service
}

type stackOptions struct {
	logOutput io.Writer
	reminders bool
}

func eventSink(cfg config.Config, logger *slog.Logger) events.Publisher {
	switch cfg.Publisher {
	case config.PublisherDapr:
		return events.NewDaprPublisher(cfg.DaprHTTPPort, cfg.PubsubName, cfg.Topic)
	case config.PublisherLog:
		return events.LogPublisher{Logger: logger}
	default:
		return events.Discard{}
	}
}

func openStack(ctx context.Context, cfg config.Config, opts stackOptions) (*stack, error) {
	out := opts.logOutput
	if out == nil {
		out = os.Stderr
	}
	logger := cfg.NewLogger(out)

	store, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	s := &stack{cfg: cfg, logger: logger, store: store}
	s.queue = events.NewQueue(eventSink(cfg, logger), cfg.EventBuffer, logger)
	s.queue.Start()

	var publisher events.Publisher = s.queue
	if opts.reminders {
		s.engine = scheduler.NewEngine(cfg.SchedulerBuffer)
		s.engine.Start()
		n, err := scheduler.ScheduleFromStore(ctx, store, s.engine, time.Now())
		if err != nil {
			s.Close()
			return nil, err
		}
		logger.Debug("reminders scheduled", "count", n)
		publisher = events.Multi{s.queue, scheduler.NewSync(s.engine, store, logger)}
	}

	s.coord = completion.New(store,
		completion.WithPublisher(publisher),
		completion.WithLogger(logger),
		completion.WithMaxConflictRetries(cfg.MaxConflictRetries),
	)
	s.service = tasks.NewService(store, s.coord,
		tasks.WithPublisher(publisher),
		tasks.WithLogger(logger),
	)
	return s, nil
}

// Close stops background workers, flushing queued events, then closes the
// database.
func (s *stack) Close() {
	if s.engine != nil {
		s.engine.Stop()
	}
	if s.queue != nil {
		s.queue.Stop()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close store", "err", err)
	}
}
