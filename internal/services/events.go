package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Catalog event types.
const (
	EventProductCreated  = "product.created"
	EventProductUpdated  = "product.updated"
	EventProductDeleted  = "product.deleted"
	EventCategoryCreated = "category.created"
	EventCategoryUpdated = "category.updated"
	EventCategoryDeleted = "category.deleted"

	eventMediaCleanup = "media.cleanup"
)

// Publisher sends JSON payloads to a named channel.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error)
}

// CatalogEvent is the payload published for every catalog mutation.
type CatalogEvent struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data,omitempty"`
}

// MediaCleanupJob lists object keys to remove from the media store.
type MediaCleanupJob struct {
	Keys []string `json:"keys"`
}

// EventPublisher emits catalog events and deferred media cleanup jobs.
// A nil Publisher disables both; failures are logged and never returned.
type EventPublisher struct {
	queue          Publisher
	catalogChannel string
	cleanupChannel string
	logger         *zap.Logger
	now            func() time.Time
}

func NewEventPublisher(queue Publisher, catalogChannel, cleanupChannel string, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{
		queue:          queue,
		catalogChannel: catalogChannel,
		cleanupChannel: cleanupChannel,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether a message queue is attached.
func (p *EventPublisher) Enabled() bool {
	return p != nil && p.queue != nil
}

// Catalog publishes a catalog event.
func (p *EventPublisher) Catalog(ctx context.Context, eventType, id string, data any) {
	if !p.Enabled() {
		return
	}
	event := CatalogEvent{Type: eventType, ID: id, OccurredAt: p.now(), Data: data}
	if _, err := p.queue.PublishJSON(ctx, p.catalogChannel, event, map[string]string{"type": eventType}); err != nil {
		p.logger.Warn("publish catalog event failed",
			zap.String("type", eventType),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}

// EnqueueCleanup schedules the removal of media objects.
func (p *EventPublisher) EnqueueCleanup(ctx context.Context, keys []string) error {
	_, err := p.queue.PublishJSON(ctx, p.cleanupChannel, MediaCleanupJob{Keys: keys}, map[string]string{"type": eventMediaCleanup})
	return err
}
