package ingest

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"scouter/pkg/apperror"
	"scouter/pkg/logger"
	"scouter/wire"
)

// RabbitMQConsumer reads one canonical-JSON-array batch per delivery, the
// counterpart to transport.RabbitMQProducer's whole-batch publish.
type RabbitMQConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	pipeline *Pipeline
}

// NewRabbitMQConsumer dials uri and opens a consuming channel on queue.
func NewRabbitMQConsumer(uri, queue string, pipeline *Pipeline) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	return &RabbitMQConsumer{conn: conn, channel: channel, queue: queue, pipeline: pipeline}, nil
}

// Run consumes deliveries until ctx is canceled, acking each delivery only
// after the pipeline has durably written it.
func (c *RabbitMQConsumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var records []wire.Record
			if err := json.Unmarshal(d.Body, &records); err != nil {
				logger.Error("ingest: dropping malformed rabbitmq delivery", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			if _, err := c.pipeline.Ingest(ctx, records); err != nil {
				if apperror.Is(err, apperror.CodeInternal) {
					logger.Error("ingest: rabbitmq batch not stored, requeueing", "error", err)
					_ = d.Nack(false, true)
					continue
				}
				logger.Warn("ingest: rabbitmq batch had rejected records", "error", err)
			}
			_ = d.Ack(false)
		}
	}
}

// Close tears down the channel and connection.
func (c *RabbitMQConsumer) Close() error {
	c.channel.Close()
	return c.conn.Close()
}
