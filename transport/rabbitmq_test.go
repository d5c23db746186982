package transport

import "testing"

func TestRabbitMQConfigFromEnv_Defaults(t *testing.T) {
	cfg := RabbitMQConfigFromEnv()
	if cfg.Host == "" {
		t.Error("expected a default host")
	}
	if cfg.Port == 0 {
		t.Error("expected a default port")
	}
	if cfg.Queue == "" {
		t.Error("expected a default queue name")
	}
}

func TestRabbitMQConfig_AmqpURI(t *testing.T) {
	cfg := RabbitMQConfig{Host: "broker", Port: 5672, Username: "u", Password: "p"}
	got := cfg.amqpURI()
	want := "amqp://u:p@broker:5672/"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNewRabbitMQProducer_RequiresHostAndQueue(t *testing.T) {
	if _, err := NewRabbitMQProducer(RabbitMQConfig{}); err == nil {
		t.Fatal("expected an error for a missing host and queue")
	}
}
