package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	kafka "github.com/segmentio/kafka-go"

	"scouter/pkg/logger"
	"scouter/wire"
)

// KafkaConsumer reads one wire.Record per message (the self-describing
// structural JSON transport.KafkaProducer writes) and funnels each message
// through the shared pipeline individually, committing its offset only
// after a successful ingest so a crash mid-batch redelivers rather than
// silently drops.
type KafkaConsumer struct {
	reader   *kafka.Reader
	pipeline *Pipeline
}

// NewKafkaConsumer builds a KafkaConsumer reading topic as part of
// groupID, so multiple server replicas share partitions.
func NewKafkaConsumer(brokers []string, topic, groupID string, pipeline *Pipeline) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &KafkaConsumer{reader: reader, pipeline: pipeline}
}

// Run consumes until ctx is canceled or the reader is closed.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		var record wire.Record
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			logger.Error("ingest: dropping malformed kafka message", "error", err)
			if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
				logger.Error("ingest: failed to commit kafka offset for dropped message", "error", commitErr)
			}
			continue
		}
		if _, err := c.pipeline.Ingest(ctx, []wire.Record{record}); err != nil {
			logger.Warn("ingest: kafka record rejected", "error", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("ingest: failed to commit kafka offset", "error", err)
		}
	}
}

// Close releases the underlying reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
