package ingest

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"scouter/pkg/logger"
	"scouter/wire"
)

// RedisConsumer subscribes to a pub/sub channel and funnels each message
// through the pipeline. Redis pub/sub delivers at-most-once per
// subscriber: a server instance that's down when a message publishes
// never sees it, which is an accepted property of this transport rather
// than something the consumer can compensate for.
type RedisConsumer struct {
	client   *redis.Client
	sub      *redis.PubSub
	pipeline *Pipeline
}

// NewRedisConsumer subscribes to channel on client.
func NewRedisConsumer(ctx context.Context, client *redis.Client, channel string, pipeline *Pipeline) *RedisConsumer {
	return &RedisConsumer{client: client, sub: client.Subscribe(ctx, channel), pipeline: pipeline}
}

// Run consumes messages until ctx is canceled or the subscription closes.
func (c *RedisConsumer) Run(ctx context.Context) error {
	ch := c.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var records []wire.Record
			if err := json.Unmarshal([]byte(msg.Payload), &records); err != nil {
				logger.Error("ingest: dropping malformed redis message", "error", err)
				continue
			}
			if _, err := c.pipeline.Ingest(ctx, records); err != nil {
				logger.Warn("ingest: redis batch had rejected records", "error", err)
			}
		}
	}
}

// Close closes the subscription and client.
func (c *RedisConsumer) Close() error {
	if err := c.sub.Close(); err != nil {
		return err
	}
	return c.client.Close()
}
