package transport

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"scouter/pkg/apperror"
	"scouter/wire"
)

// KafkaConfig configures a KafkaProducer. Fields set directly always win
// over whatever KafkaConfigFromEnv would have supplied.
type KafkaConfig struct {
	Brokers          []string
	Topic            string
	Username         string
	Password         string
	SecurityProtocol string
	SASLMechanism    string
	MaxRetries       int
}

// KafkaConfigFromEnv reads KAFKA_BROKERS/KAFKA_TOPIC/KAFKA_USERNAME/
// KAFKA_PASSWORD/KAFKA_SECURITY_PROTOCOL/KAFKA_SASL_MECHANISM, the
// unprefixed environment variables this transport configures itself from.
func KafkaConfigFromEnv() KafkaConfig {
	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = strings.Split(v, ",")
	}
	return KafkaConfig{
		Brokers:          brokers,
		Topic:            os.Getenv("KAFKA_TOPIC"),
		Username:         os.Getenv("KAFKA_USERNAME"),
		Password:         os.Getenv("KAFKA_PASSWORD"),
		SecurityProtocol: os.Getenv("KAFKA_SECURITY_PROTOCOL"),
		SASLMechanism:    os.Getenv("KAFKA_SASL_MECHANISM"),
	}
}

// resolveSASL resolves the SASL mechanism from cfg: a direct
// username/password always wins over any other source, and an unset
// security protocol defaults to SASL_SSL the moment credentials are
// present at all.
func resolveSASL(cfg KafkaConfig) (sasl.Mechanism, string, error) {
	if cfg.Username == "" && cfg.Password == "" {
		return nil, cfg.SecurityProtocol, nil
	}
	protocol := cfg.SecurityProtocol
	if protocol == "" {
		protocol = "SASL_SSL"
	}
	mechanismName := cfg.SASLMechanism
	if mechanismName == "" {
		mechanismName = "PLAIN"
	}
	switch strings.ToUpper(mechanismName) {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, protocol, nil
	case "SCRAM-SHA-256":
		m, err := scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
		if err != nil {
			return nil, protocol, apperror.Wrap(err, apperror.CodeTransportAuth, "failed to build scram-sha-256 mechanism")
		}
		return m, protocol, nil
	case "SCRAM-SHA-512":
		m, err := scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
		if err != nil {
			return nil, protocol, apperror.Wrap(err, apperror.CodeTransportAuth, "failed to build scram-sha-512 mechanism")
		}
		return m, protocol, nil
	default:
		return nil, protocol, apperror.NewWithField(apperror.CodeTransportAuth, "unsupported sasl mechanism", mechanismName)
	}
}

// KafkaProducer produces one message per record on batch boundaries; the
// underlying client's own retry cooperates with the outer Retrier on top
// of it.
type KafkaProducer struct {
	writer  *kafka.Writer
	retrier Retrier
}

// NewKafkaProducer builds a KafkaProducer, configuring SASL on the
// client's Transport only when credentials resolve to a mechanism.
func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "kafka producer requires brokers and a topic")
	}
	mechanism, _, err := resolveSASL(cfg)
	if err != nil {
		return nil, err
	}
	kafkaTransport := &kafka.Transport{}
	if mechanism != nil {
		kafkaTransport.SASL = mechanism
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Transport:    kafkaTransport,
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &KafkaProducer{
		writer:  writer,
		retrier: Retrier{MaxRetries: maxRetries, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
	}, nil
}

// Send encodes each record as self-describing structural JSON (Kafka's
// contract differs from the other transports' canonical-JSON batch) and
// writes the whole batch in one call, letting the client batch internally.
func (p *KafkaProducer) Send(ctx context.Context, records []wire.Record) error {
	if len(records) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeMalformedPayload, "failed to encode kafka record")
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(r.Space + "/" + r.Name + "/" + r.Version),
			Value: value,
			Time:  r.CreatedAt,
		})
	}
	return p.retrier.Do(ctx, "kafka", func() error {
		if err := p.writer.WriteMessages(ctx, messages...); err != nil {
			return apperror.Wrap(err, apperror.CodeTransportExhausted, "kafka publish failed")
		}
		return nil
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaProducer) Close(ctx context.Context) error {
	return p.writer.Close()
}
