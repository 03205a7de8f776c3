package redis

import (
	"context"
	"encoding/json"

	"billine-gateway/internal/models"
	"billine-gateway/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamClient interface for Redis stream operations
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// EventPublisher publishes events to Redis streams
type EventPublisher struct {
	redis  StreamClient
	stream string
	logger *zap.Logger
}

// NewEventPublisher creates a publisher writing to stream
func NewEventPublisher(rdb StreamClient, stream string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		redis:  rdb,
		stream: stream,
		logger: logger,
	}
}

// PublishCallback appends a verified callback to the stream. The entry carries
// the JSON event under "data" plus invoice_id and status for consumers that
// filter without decoding.
func (p *EventPublisher) PublishCallback(ctx context.Context, event *models.CallbackReceivedEvent) (string, error) {
	if err := event.Validate(); err != nil {
		return "", errors.NewSerializationError(err, "invalid callback event")
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return "", errors.NewSerializationError(err, "failed to marshal event")
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(eventJSON),
			"invoice_id": event.InvoiceID,
			"status":     string(event.Status),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return "", errors.WrapDomainError(err, errors.CodeDependency, "event publication failed", "redis error")
	}

	p.logger.Debug("callback event published",
		zap.String("stream", p.stream),
		zap.String("entry_id", id),
		zap.String("event_id", event.EventID))
	return id, nil
}
