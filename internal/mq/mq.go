package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopdesk/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Decode unmarshals the JSON payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects the backend selected by cfg. It returns nil, nil when
// messaging is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Backend {
	case config.MQRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(client), nil
	case config.MQPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(client), nil
	case config.MQNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON marshals v and sends it to the named channel.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
