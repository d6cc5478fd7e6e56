package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultPubsubName = "pubsub"
	DefaultTopic      = "task-events"
)

// DaprPublisher posts events to the pub/sub building block of a local Dapr
// sidecar.
type DaprPublisher struct {
	BaseURL    string
	PubsubName string
	Topic      string
	Client     *http.Client
}

func NewDaprPublisher(httpPort int, pubsubName, topic string) *DaprPublisher {
	if pubsubName == "" {
		pubsubName = DefaultPubsubName
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &DaprPublisher{
		BaseURL:    fmt.Sprintf("http://localhost:%d", httpPort),
		PubsubName: pubsubName,
		Topic:      topic,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *DaprPublisher) Endpoint() string {
	return fmt.Sprintf("%s/v1.0/publish/%s/%s", p.BaseURL, url.PathEscape(p.PubsubName), url.PathEscape(p.Topic))
}

func (p *DaprPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.ID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("events: publish %s: sidecar returned %d: %s", ev.ID, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
