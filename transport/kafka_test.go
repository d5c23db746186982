package transport

import (
	"testing"

	"github.com/segmentio/kafka-go/sasl/plain"
)

func TestResolveSASL_NoCredentialsMeansNoMechanism(t *testing.T) {
	mechanism, protocol, err := resolveSASL(KafkaConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mechanism != nil {
		t.Errorf("expected nil mechanism without credentials, got %v", mechanism)
	}
	if protocol != "" {
		t.Errorf("expected empty protocol without credentials, got %q", protocol)
	}
}

func TestResolveSASL_CredentialsDefaultToSASLSSLAndPlain(t *testing.T) {
	mechanism, protocol, err := resolveSASL(KafkaConfig{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if protocol != "SASL_SSL" {
		t.Errorf("expected default protocol SASL_SSL, got %q", protocol)
	}
	plainMechanism, ok := mechanism.(plain.Mechanism)
	if !ok {
		t.Fatalf("expected plain.Mechanism, got %T", mechanism)
	}
	if plainMechanism.Username != "alice" || plainMechanism.Password != "secret" {
		t.Errorf("unexpected mechanism credentials: %+v", plainMechanism)
	}
}

func TestResolveSASL_ExplicitCredentialsOverrideEnvStyleDefaults(t *testing.T) {
	mechanism, protocol, err := resolveSASL(KafkaConfig{
		Username:         "bob",
		Password:         "hunter2",
		SecurityProtocol: "SASL_PLAINTEXT",
		SASLMechanism:    "SCRAM-SHA-256",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if protocol != "SASL_PLAINTEXT" {
		t.Errorf("expected explicit protocol to be preserved, got %q", protocol)
	}
	if mechanism == nil {
		t.Fatal("expected a scram mechanism, got nil")
	}
	if mechanism.Name() != "SCRAM-SHA-256" {
		t.Errorf("expected mechanism name SCRAM-SHA-256, got %q", mechanism.Name())
	}
}

func TestResolveSASL_UnsupportedMechanismIsAnError(t *testing.T) {
	_, _, err := resolveSASL(KafkaConfig{Username: "bob", Password: "x", SASLMechanism: "GSSAPI"})
	if err == nil {
		t.Fatal("expected an error for an unsupported sasl mechanism")
	}
}

func TestKafkaConfigFromEnv_SplitsBrokerList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("KAFKA_TOPIC", "scouter-ingest")
	cfg := KafkaConfigFromEnv()
	if len(cfg.Brokers) != 2 {
		t.Fatalf("expected 2 brokers, got %d: %v", len(cfg.Brokers), cfg.Brokers)
	}
	if cfg.Topic != "scouter-ingest" {
		t.Errorf("expected topic scouter-ingest, got %q", cfg.Topic)
	}
}

func TestNewKafkaProducer_RequiresBrokersAndTopic(t *testing.T) {
	if _, err := NewKafkaProducer(KafkaConfig{}); err == nil {
		t.Fatal("expected an error for missing brokers and topic")
	}
}
