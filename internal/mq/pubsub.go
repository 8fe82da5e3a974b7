package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/shopdesk/apiserver/config"
	"google.golang.org/api/option"
)

const (
	defaultSubscriptionSuffix = "-sub"
	pubsubAckDeadline         = 30 * time.Second
	pubsubMinBackoff          = 10 * time.Second
	pubsubMaxBackoff          = 10 * time.Minute
)

// pubsubLabels tags every topic and subscription the API server creates.
var pubsubLabels = map[string]string{"app": "shopdesk-apiserver"}

var errPubSubChannel = errors.New("pubsub channel is required")

// PubSubClient publishes catalog and media events to Google Cloud Pub/Sub.
// Topic handles are cached per channel and flushed on Close.
type PubSubClient struct {
	client *pubsub.Client
	suffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config. The
// PUBSUB_EMULATOR_HOST variable is honored by the SDK.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubClient{
		client: client,
		suffix: cfg.SubscriptionSuffix,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends an event to the topic named by channel, creating the topic
// on first use.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errPubSubChannel
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// Subscribe receives events from the subscription bound to channel until ctx
// is done. A handler error nacks the message for redelivery.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errPubSubChannel
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}
	sub, err := p.ensureSubscription(ctx, subscriptionID(channel, p.suffix), topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if deliver(ctx, handler, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = nil
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopicWithConfig(ctx, name, topicConfig()); err != nil {
			return nil, err
		}
	}
	if p.topics == nil {
		p.topics = make(map[string]*pubsub.Topic)
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return sub, nil
	}
	return p.client.CreateSubscription(ctx, name, subscriptionConfig(topic))
}

func topicConfig() *pubsub.TopicConfig {
	return &pubsub.TopicConfig{Labels: pubsubLabels}
}

// subscriptionConfig backs off redeliveries so a failing cleanup job does
// not spin on the same object.
func subscriptionConfig(topic *pubsub.Topic) pubsub.SubscriptionConfig {
	return pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: pubsubAckDeadline,
		Labels:      pubsubLabels,
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: pubsubMinBackoff,
			MaximumBackoff: pubsubMaxBackoff,
		},
	}
}

func subscriptionID(channel, suffix string) string {
	if suffix == "" {
		suffix = defaultSubscriptionSuffix
	}
	return channel + suffix
}

// deliver hands msg to handler and reports whether it should be acked.
func deliver(ctx context.Context, handler Handler, msg *pubsub.Message) bool {
	return handler(ctx, Message{
		ID:         msg.ID,
		Data:       msg.Data,
		Attributes: msg.Attributes,
	}) == nil
}
