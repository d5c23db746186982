// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App       AppConfig       `koanf:"app"`
	GRPC      GRPCConfig      `koanf:"grpc"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Transport TransportConfig `koanf:"transport"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Audit     AuditConfig     `koanf:"audit"`
	Swagger   SwaggerConfig   `koanf:"swagger"`
	Retry     RetryConfig     `koanf:"retry"`
	Queue     QueueConfig     `koanf:"queue"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Alert     AlertConfig     `koanf:"alert"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// GRPCConfig - настройки gRPC сервера
type GRPCConfig struct {
	Port              int             `koanf:"port"`
	MaxRecvMsgSize    int             `koanf:"max_recv_msg_size"` // bytes
	MaxSendMsgSize    int             `koanf:"max_send_msg_size"` // bytes
	MaxConcurrentConn int             `koanf:"max_concurrent_conn"`
	KeepAlive         KeepAliveConfig `koanf:"keepalive"`
	TLS               TLSConfig       `koanf:"tls"`
}

// KeepAliveConfig - настройки keep-alive
type KeepAliveConfig struct {
	MaxConnectionIdle     time.Duration `koanf:"max_connection_idle"`
	MaxConnectionAge      time.Duration `koanf:"max_connection_age"`
	MaxConnectionAgeGrace time.Duration `koanf:"max_connection_age_grace"`
	Time                  time.Duration `koanf:"time"`
	Timeout               time.Duration `koanf:"timeout"`
}

// TLSConfig - настройки TLS
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	CAFile   string `koanf:"ca_file"`
}

// HTTPConfig - настройки HTTP сервера (для gateway)
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig - настройки CORS
type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// TransportConfig собирает настройки всех входящих каналов приёма сэмплов.
type TransportConfig struct {
	HTTP     HTTPIngestConfig `koanf:"http"`
	GRPC     GRPCIngestConfig `koanf:"grpc"`
	Kafka    KafkaConfig      `koanf:"kafka"`
	RabbitMQ RabbitMQConfig   `koanf:"rabbitmq"`
	Redis    RedisTransportConfig `koanf:"redis"`
}

// HTTPIngestConfig - приёмный HTTP-эндпоинт для прямой отправки сэмплов.
type HTTPIngestConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// GRPCIngestConfig - приёмный gRPC-эндпоинт для прямой отправки сэмплов.
type GRPCIngestConfig struct {
	Enabled bool `koanf:"enabled"`
}

// KafkaConfig настраивает consumer для Kafka-транспорта.
type KafkaConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Brokers           []string      `koanf:"brokers"`
	Topic             string        `koanf:"topic"`
	GroupID           string        `koanf:"group_id"`
	Username          string        `koanf:"username"`
	Password          string        `koanf:"password"`
	SecurityProtocol  string        `koanf:"security_protocol"` // PLAINTEXT, SASL_SSL, SASL_PLAINTEXT
	SASLMechanism     string        `koanf:"sasl_mechanism"`    // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	MinBytes          int           `koanf:"min_bytes"`
	MaxBytes          int           `koanf:"max_bytes"`
	CommitInterval    time.Duration `koanf:"commit_interval"`
}

// RabbitMQConfig настраивает consumer для RabbitMQ-транспорта.
type RabbitMQConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	Queue        string        `koanf:"queue"`
	PrefetchSize int           `koanf:"prefetch_size"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// RedisTransportConfig настраивает consumer для Redis pub/sub транспорта.
type RedisTransportConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	Channel string `koanf:"channel"`
}

// QueueConfig настраивает буферизацию входящих сэмплов перед батч-записью.
type QueueConfig struct {
	BufferSize     int           `koanf:"buffer_size"`
	FlushInterval  time.Duration `koanf:"flush_interval"`
	FlushBatchSize int           `koanf:"flush_batch_size"`
	LLMSampleRate  float64       `koanf:"llm_sample_rate"`
}

// SchedulerConfig настраивает цикл периодической оценки дрейфа профилей.
type SchedulerConfig struct {
	Concurrency       int           `koanf:"concurrency"`        // K параллельных claim-воркеров
	TickInterval      time.Duration `koanf:"tick_interval"`      // период cron-опроса
	StaleReclaimAfter time.Duration `koanf:"stale_reclaim_after"` // T для повторного захвата зависшей оценки
	ClaimBatchSize    int           `koanf:"claim_batch_size"`
}

// WorkflowConfig настраивает исполнение LLM-воркфлоу.
type WorkflowConfig struct {
	Concurrency        int           `koanf:"concurrency"`          // M параллельных воркфлоу
	TaskConcurrencyCap int           `koanf:"task_concurrency_cap"` // предел параллельных задач внутри одного воркфлоу
	TaskTimeout        time.Duration `koanf:"task_timeout"`
	JudgeServerURI     string        `koanf:"judge_server_uri"`
	JudgeUsername      string        `koanf:"judge_username"`
	JudgePassword      string        `koanf:"judge_password"`
	JudgeAuthToken     string        `koanf:"judge_auth_token"`
}

// AlertConfig настраивает диспетчер алертов дрейфа.
type AlertConfig struct {
	Backends    []string `koanf:"backends"` // console, slack, opsgenie
	SlackWebhook string  `koanf:"slack_webhook"`
	OpsGenieKey  string  `koanf:"opsgenie_key"`
}

// DatabaseConfig - настройки базы данных
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // postgres, mysql, sqlite
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.Username, d.Password, d.Host, d.Port, d.Database,
		)
	case "sqlite":
		return d.Database
	default:
		return ""
	}
}

// CacheConfig - настройки кэширования
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"`
	Backend         string        `koanf:"backend"`
	BurstSize       int           `koanf:"burst_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// AuditConfig конфигурация аудит лога
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Backend         string        `koanf:"backend"`
	FilePath        string        `koanf:"file_path"`
	BufferSize      int           `koanf:"buffer_size"`
	FlushPeriod     time.Duration `koanf:"flush_period"`
	ExcludeMethods  []string      `koanf:"exclude_methods"`
	IncludeRequest  bool          `koanf:"include_request"`
	IncludeResponse bool          `koanf:"include_response"`
}

// SwaggerConfig конфигурация Swagger UI
type SwaggerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Port    int    `koanf:"port"`
	Title   string `koanf:"title"`
}

// RetryConfig конфигурация retry
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}


// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		errs = append(errs, fmt.Sprintf("grpc.port must be between 1 and 65535, got %d", c.GRPC.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Scheduler.Concurrency <= 0 {
		errs = append(errs, "scheduler.concurrency must be positive")
	}

	if c.Scheduler.StaleReclaimAfter <= 0 {
		errs = append(errs, "scheduler.stale_reclaim_after must be positive")
	}

	if c.Workflow.Concurrency <= 0 {
		errs = append(errs, "workflow.concurrency must be positive")
	}

	if c.Queue.LLMSampleRate < 0 || c.Queue.LLMSampleRate > 1 {
		errs = append(errs, "queue.llm_sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction проверяет продакшн режим
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
