// Package pubsub publishes result records to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/crawlkit/fetchd/internal/fetch"
)

// Config identifies the target topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Sink publishes one JSON message per result record. Payload bodies are not
// included; downstream consumers resolve them through PayloadURI.
type Sink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// message is the wire shape published per record.
type message struct {
	State      fetch.StateUpdate `json:"state"`
	PayloadURI string            `json:"payload_uri,omitempty"`
}

// New connects a Sink to the configured topic.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub sink requires project_id and topic_id")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Sink{
		client: client,
		topic:  client.Topic(cfg.TopicID),
	}, nil
}

// Deliver marshals the record's state update and publishes it.
func (s *Sink) Deliver(ctx context.Context, rec fetch.ResultRecord) error {
	data, err := json.Marshal(message{State: rec.State, PayloadURI: rec.PayloadURI})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"status": string(rec.State.Status),
			"domain": rec.State.DomainKey,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// Close flushes pending publishes and releases the client.
func (s *Sink) Close() error {
	s.topic.Stop()
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
