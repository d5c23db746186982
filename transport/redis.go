package transport

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"scouter/pkg/apperror"
	"scouter/wire"
)

// RedisConfig configures a RedisProducer.
type RedisConfig struct {
	Addr       string
	Password   string
	Channel    string
	MaxRetries int
}

// RedisConfigFromEnv reads REDIS_ADDR/REDIS_PASSWORD/REDIS_CHANNEL.
func RedisConfigFromEnv() RedisConfig {
	return RedisConfig{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: envOr("REDIS_PASSWORD", ""),
		Channel:  envOr("REDIS_CHANNEL", "scouter-ingest"),
	}
}

// RedisProducer publishes one message per batch onto a pub/sub channel.
// Redis pub/sub has no delivery guarantee of its own, so this transport is
// at-most-once per subscriber: the outer queue's own retry only protects
// against the publish call itself failing, not against a disconnected
// subscriber missing the message.
type RedisProducer struct {
	client  *redis.Client
	channel string
	retrier Retrier
}

// NewRedisProducer builds a RedisProducer from cfg.
func NewRedisProducer(cfg RedisConfig) (*RedisProducer, error) {
	if cfg.Addr == "" || cfg.Channel == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "redis producer requires an addr and channel")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retrier := NewRetrier()
	retrier.MaxRetries = maxRetries
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password})
	return &RedisProducer{client: client, channel: cfg.Channel, retrier: retrier}, nil
}

// Send publishes the batch as one canonical JSON array message.
func (p *RedisProducer) Send(ctx context.Context, records []wire.Record) error {
	if len(records) == 0 {
		return nil
	}
	body, err := json.Marshal(records)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeMalformedPayload, "failed to encode redis batch")
	}
	return p.retrier.Do(ctx, "redis", func() error {
		if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
			return apperror.Wrap(err, apperror.CodeTransportExhausted, "redis publish failed")
		}
		return nil
	})
}

// Close closes the underlying client.
func (p *RedisProducer) Close(ctx context.Context) error {
	return p.client.Close()
}
