package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"scouter/pkg/apperror"
	"scouter/pkg/logger"
	"scouter/wire"
)

// RabbitMQConfig configures a RabbitMQProducer.
type RabbitMQConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Queue      string
	MaxRetries int
}

// RabbitMQConfigFromEnv reads RABBITMQ_HOST/RABBITMQ_PORT/
// RABBITMQ_USERNAME/RABBITMQ_PASSWORD/RABBITMQ_QUEUE.
func RabbitMQConfigFromEnv() RabbitMQConfig {
	port := 5672
	if v := envOr("RABBITMQ_PORT", ""); v != "" {
		fmt.Sscanf(v, "%d", &port)
	}
	return RabbitMQConfig{
		Host:     envOr("RABBITMQ_HOST", "localhost"),
		Port:     port,
		Username: envOr("RABBITMQ_USERNAME", "guest"),
		Password: envOr("RABBITMQ_PASSWORD", "guest"),
		Queue:    envOr("RABBITMQ_QUEUE", "scouter-ingest"),
	}
}

func (c RabbitMQConfig) amqpURI() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}

// RabbitMQProducer publishes one message per batch to a durable queue,
// redialing the connection and channel whenever a publish observes them
// closed rather than failing permanently on a transient broker restart.
type RabbitMQProducer struct {
	mu      sync.Mutex
	cfg     RabbitMQConfig
	conn    *amqp.Connection
	channel *amqp.Channel
	retrier Retrier
}

// NewRabbitMQProducer dials cfg's broker and declares the target queue.
func NewRabbitMQProducer(cfg RabbitMQConfig) (*RabbitMQProducer, error) {
	if cfg.Host == "" || cfg.Queue == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "rabbitmq producer requires a host and queue")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	p := &RabbitMQProducer{cfg: cfg, retrier: NewRetrier()}
	p.retrier.MaxRetries = maxRetries
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQProducer) connect() error {
	conn, err := amqp.Dial(p.cfg.amqpURI())
	if err != nil {
		return apperror.Wrap(err, apperror.CodeTransportExhausted, "failed to dial rabbitmq")
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return apperror.Wrap(err, apperror.CodeTransportExhausted, "failed to open rabbitmq channel")
	}
	if _, err := channel.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return apperror.Wrap(err, apperror.CodeTransportExhausted, "failed to declare rabbitmq queue")
	}
	p.conn = conn
	p.channel = channel
	return nil
}

// Send publishes the whole batch as one canonical JSON array message.
func (p *RabbitMQProducer) Send(ctx context.Context, records []wire.Record) error {
	if len(records) == 0 {
		return nil
	}
	body, err := json.Marshal(records)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeMalformedPayload, "failed to encode rabbitmq batch")
	}
	return p.retrier.Do(ctx, "rabbitmq", func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.conn == nil || p.conn.IsClosed() {
			logger.Warn("transport: rabbitmq connection closed, reconnecting")
			if err := p.connect(); err != nil {
				return err
			}
		}
		err := p.channel.PublishWithContext(ctx, "", p.cfg.Queue, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err != nil {
			return apperror.Wrap(err, apperror.CodeTransportExhausted, "rabbitmq publish failed")
		}
		return nil
	})
}

// Close shuts down the channel and connection.
func (p *RabbitMQProducer) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
