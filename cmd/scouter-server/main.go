package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"scouter/evaluator"
	"scouter/ingest"
	"scouter/pkg/cache"
	"scouter/pkg/config"
	"scouter/pkg/database"
	"scouter/pkg/database/migrations"
	"scouter/pkg/logger"
	"scouter/pkg/metrics"
	"scouter/pkg/server"
	"scouter/registry"
	"scouter/workflow"
)

// registerProfileRoutes mounts the registration control-plane HTTP routes
// (independent of whether the batch-ingestion HTTP transport is enabled;
// a client registering over gRPC/Kafka/etc. still needs this surface).
func registerProfileRoutes(mux *http.ServeMux, registrar *registry.Registrar) {
	mux.Handle("/profile", registry.NewHTTPHandler(registrar))
	mux.HandleFunc("/profile/status", registry.PatchStatusHandler(registrar))
}

// workflowPollInterval is how often the executor checks llm_drift_record
// for newly pending rows; unlike the evaluator's tick it has no config
// knob since its claim loop is meant to drain the queue promptly.
const workflowPollInterval = 2 * time.Second

func main() {
	cfg, err := config.LoadWithServiceDefaults("scouter-server", 50051)
	if err != nil {
		logger.Init("error")
		logger.Fatal("Failed to load config", "error", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	logger.Log.Info("Starting scouter server",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)
	m := metrics.Get()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.FS, "."); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	c, err := cache.New(cache.FromConfig(&cfg.Cache))
	if err != nil {
		logger.Fatal("failed to initialize cache", "error", err)
	}
	defer c.Close()

	resolver := ingest.NewEntityResolver(db, c)
	writer := ingest.NewWriter(db)
	partitioner := ingest.NewPartitionMaintainer(db, 3)
	if err := partitioner.Run(ctx); err != nil {
		logger.Log.Warn("initial partition maintenance failed", "error", err)
	}
	go runPartitionMaintenance(ctx, partitioner)

	registrar := registry.NewRegistrar(db)

	grpcSrv := server.New(cfg)
	registry.NewGRPCServer(registrar).Register(grpcSrv.GetEngine())
	if cfg.Transport.GRPC.Enabled {
		grpcPipeline := ingest.NewPipeline(resolver, writer, m, "grpc")
		ingest.NewGRPCServer(grpcPipeline).Register(grpcSrv.GetEngine())
	}

	// The control-plane registration routes are always mounted: a client
	// can register a profile over HTTP even if it ingests records over
	// Kafka/RabbitMQ/Redis/gRPC instead.
	mux := http.NewServeMux()
	registerProfileRoutes(mux, registrar)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Transport.HTTP.Enabled {
		httpPipeline := ingest.NewPipeline(resolver, writer, m, "http")
		mux.Handle(cfg.Transport.HTTP.Path, ingest.NewHTTPHandler(httpPipeline))
	}
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Log.Info("Starting HTTP listener", "port", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("HTTP listener failed", "error", err)
		}
	}()

	if cfg.Transport.Kafka.Enabled {
		kafkaPipeline := ingest.NewPipeline(resolver, writer, m, "kafka")
		consumer := ingest.NewKafkaConsumer(cfg.Transport.Kafka.Brokers, cfg.Transport.Kafka.Topic, cfg.Transport.Kafka.GroupID, kafkaPipeline)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Log.Error("kafka consumer stopped", "error", err)
			}
		}()
	}

	if cfg.Transport.RabbitMQ.Enabled {
		rabbitPipeline := ingest.NewPipeline(resolver, writer, m, "rabbitmq")
		uri := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.Transport.RabbitMQ.Username, cfg.Transport.RabbitMQ.Password,
			cfg.Transport.RabbitMQ.Host, cfg.Transport.RabbitMQ.Port)
		consumer, err := ingest.NewRabbitMQConsumer(uri, cfg.Transport.RabbitMQ.Queue, rabbitPipeline)
		if err != nil {
			logger.Log.Error("failed to start rabbitmq consumer", "error", err)
		} else {
			go func() {
				if err := consumer.Run(ctx); err != nil {
					logger.Log.Error("rabbitmq consumer stopped", "error", err)
				}
			}()
		}
	}

	if cfg.Transport.Redis.Enabled {
		redisPipeline := ingest.NewPipeline(resolver, writer, m, "redis")
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.Transport.Redis.Addr})
		consumer := ingest.NewRedisConsumer(ctx, redisClient, cfg.Transport.Redis.Channel, redisPipeline)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Log.Error("redis consumer stopped", "error", err)
			}
		}()
	}

	dispatcher := evaluator.DispatcherFromConfig(cfg.Alert)
	scheduler := evaluator.NewScheduler(db, dispatcher, m, cfg.Scheduler)
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Log.Error("evaluator scheduler stopped", "error", err)
		}
	}()

	judge := workflow.NewHTTPJudgeClient(cfg.Workflow)
	executor := workflow.NewExecutor(db, judge, m, cfg.Workflow)
	go func() {
		if err := executor.Run(ctx, workflowPollInterval); err != nil {
			logger.Log.Error("workflow executor stopped", "error", err)
		}
	}()

	// grpcSrv.Run blocks until it catches SIGINT/SIGTERM and finishes its
	// own graceful shutdown; once it returns, stop everything riding on
	// our own ctx too.
	runErr := grpcSrv.Run()
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("HTTP listener shutdown error", "error", err)
	}
	if runErr != nil {
		logger.Fatal("server failed", "error", runErr)
	}
}

// runPartitionMaintenance re-runs partition creation/pruning once a day,
// keeping tomorrow's partitions ready ahead of ingestion reaching them.
func runPartitionMaintenance(ctx context.Context, m *ingest.PartitionMaintainer) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Run(ctx); err != nil {
				logger.Log.Error("partition maintenance failed", "error", err)
			}
		}
	}
}
