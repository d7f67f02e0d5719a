package notifications

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultChannel = "lending:events"

// Sink delivers committed events. Delivery is at least once.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// RedisSink publishes events as JSON on a pub/sub channel.
type RedisSink struct {
	Rdb     *redis.Client
	Channel string
}

func NewRedisSink(rdb *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{Rdb: rdb, Channel: channel}
}

func (s *RedisSink) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.Rdb.Publish(ctx, s.Channel, b).Err()
}

// LogSink writes events to the log. Used when Redis is not configured.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, e Event) error {
	log.Info().
		Str("event_id", e.ID.String()).
		Str("event_type", e.Type).
		Str("aggregate_id", e.AggregateID.String()).
		RawJSON("payload", e.Payload).
		Msg("Notification")
	return nil
}
