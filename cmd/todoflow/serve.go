package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todoflow/internal/api"
	"github.com/sandeepkv93/todoflow/internal/config"
	"github.com/sandeepkv93/todoflow/internal/scheduler"
	"github.com/sandeepkv93/todoflow/internal/subscriber"
)

func serveCmd(cfg func() config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event consumer and reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			if cmd.Flags().Changed("addr") {
				c.HTTPAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	st, err := openStack(ctx, cfg, stackOptions{reminders: true})
	if err != nil {
		return err
	}
	defer st.Close()

	server := api.NewServer(st.service, st.logger)
	consumer := subscriber.NewConsumer(st.coord, st.logger, cfg.PubsubName, cfg.Topic)
	consumer.Register(server.Mux())

	forwarder := scheduler.NewForwarder(st.engine, st.queue, st.logger)
	go forwarder.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		st.logger.Info("http listening", "addr", cfg.HTTPAddr, "publisher", cfg.Publisher)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	st.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	st.logger.Info("stopped", "events_delivered", st.queue.Delivered(), "events_dropped", st.queue.Dropped(), "reminders_fired", st.engine.Fired())
	return nil
}
