// Package subscriber receives task events delivered by the Dapr sidecar.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/todoflow/internal/completion"
	"github.com/sandeepkv93/todoflow/internal/events"
)

const (
	Route             = "/events/task-events"
	SubscribeRoute    = "/dapr/subscribe"
	DefaultSeenWindow = 1024
)

// Dapr reads these from the response body to decide about redelivery.
const (
	statusSuccess = "SUCCESS"
	statusRetry   = "RETRY"
	statusDrop    = "DROP"
)

// Completer is the status-setting half of the coordinator. Consumers never
// toggle: a redelivered toggle would undo the completion it replays. The
// version guard makes an event stale once the task has moved past it.
type Completer interface {
	CompleteIfCurrent(ctx context.Context, id string, version int64) (completion.Result, error)
}

// CloudEvent is the envelope Dapr wraps around published data.
type CloudEvent struct {
	ID              string       `json:"id"`
	Source          string       `json:"source"`
	Type            string       `json:"type"`
	SpecVersion     string       `json:"specversion"`
	DataContentType string       `json:"datacontenttype"`
	Data            events.Event `json:"data"`
}

type Subscription struct {
	PubsubName string `json:"pubsubname"`
	Topic      string `json:"topic"`
	Route      string `json:"route"`
}

type Consumer struct {
	completer  Completer
	logger     *slog.Logger
	pubsubName string
	topic      string
	seen       *seenSet
}

func NewConsumer(completer Completer, logger *slog.Logger, pubsubName, topic string) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if pubsubName == "" {
		pubsubName = events.DefaultPubsubName
	}
	if topic == "" {
		topic = events.DefaultTopic
	}
	return &Consumer{
		completer:  completer,
		logger:     logger,
		pubsubName: pubsubName,
		topic:      topic,
		seen:       newSeenSet(DefaultSeenWindow),
	}
}

// Register mounts the subscription and delivery routes on mux.
func (c *Consumer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+SubscribeRoute, c.handleSubscribe)
	mux.HandleFunc("POST "+Route, c.handleEvent)
}

func (c *Consumer) Subscriptions() []Subscription {
	return []Subscription{{PubsubName: c.pubsubName, Topic: c.topic, Route: Route}}
}

func (c *Consumer) handleSubscribe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.Subscriptions())
}

func (c *Consumer) handleEvent(w http.ResponseWriter, r *http.Request) {
	var envelope CloudEvent
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		c.logger.Warn("undecodable event dropped", "err", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": statusDrop})
		return
	}
	status := c.Handle(r.Context(), envelope.Data)
	code := http.StatusOK
	if status == statusRetry {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, map[string]string{"status": status})
}

// Handle routes one event and returns the Dapr delivery status.
func (c *Consumer) Handle(ctx context.Context, ev events.Event) string {
	if ev.ID != "" && c.seen.Contains(ev.ID) {
		c.logger.Debug("duplicate event ignored", "event_id", ev.ID, "event_type", string(ev.Kind))
		return statusSuccess
	}
	c.logger.Info("event received", "event_id", ev.ID, "event_type", string(ev.Kind), "task_id", ev.TaskID)

	switch ev.Kind {
	case events.KindReminderDue:
		title := ev.PayloadString("title")
		if title == "" {
			title = "Unknown task"
		}
		c.logger.Info("reminder due", "task_id", ev.TaskID, "title", title, "trigger_at", ev.PayloadString("trigger_at"))
	case events.KindTaskCompleted:
		if status := c.handleCompleted(ctx, ev); status != statusSuccess {
			return status
		}
	default:
		c.logger.Info("audit", "event_type", string(ev.Kind), "task_id", ev.TaskID, "payload", ev.Payload)
	}

	if ev.ID != "" {
		c.seen.Add(ev.ID)
	}
	return statusSuccess
}

func (c *Consumer) handleCompleted(ctx context.Context, ev events.Event) string {
	if ev.TaskID == "" {
		c.logger.Warn("completed event without task id dropped", "event_id", ev.ID)
		return statusDrop
	}
	res, err := c.completer.CompleteIfCurrent(ctx, ev.TaskID, ev.PayloadInt64("version"))
	switch {
	case err == nil:
		if res.Clone != nil {
			c.logger.Info("next occurrence created", "task_id", ev.TaskID, "clone_id", res.Clone.ID,
				"recurrence_rule", ev.PayloadString("recurrence_rule"))
		}
		return statusSuccess
	case errors.Is(err, completion.ErrTaskNotFound):
		c.logger.Warn("completed event for unknown task dropped", "task_id", ev.TaskID)
		return statusDrop
	case errors.Is(err, completion.ErrTransient):
		c.logger.Warn("completion deferred", "task_id", ev.TaskID, "err", err)
		return statusRetry
	default:
		c.logger.Error("completion failed", "task_id", ev.TaskID, "err", err)
		return statusRetry
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
