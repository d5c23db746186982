package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// gRPC метрики
	GRPCRequestsTotal    *prometheus.CounterVec
	GRPCRequestDuration  *prometheus.HistogramVec
	GRPCRequestsInFlight prometheus.Gauge

	// Ingestion метрики
	SamplesReceivedTotal *prometheus.CounterVec
	SamplesAcceptedTotal *prometheus.CounterVec
	SamplesRejectedTotal *prometheus.CounterVec
	IngestLatency        *prometheus.HistogramVec
	QueueDepth           *prometheus.GaugeVec

	// Evaluator метрики
	EvaluationsTotal    *prometheus.CounterVec
	EvaluationDuration  *prometheus.HistogramVec
	AlertsFiredTotal    *prometheus.CounterVec
	StaleReclaimsTotal  prometheus.Counter

	// Workflow метрики
	WorkflowTasksTotal    *prometheus.CounterVec
	WorkflowTaskDuration  *prometheus.HistogramVec
	WorkflowRunsTotal     *prometheus.CounterVec

	// Системные метрики
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		// gRPC метрики
		GRPCRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_requests_total",
				Help:      "Total number of gRPC requests",
			},
			[]string{"method", "status"},
		),

		GRPCRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_request_duration_seconds",
				Help:      "Duration of gRPC requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),

		GRPCRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_requests_in_flight",
				Help:      "Current number of gRPC requests being processed",
			},
		),

		// Ingestion метрики
		SamplesReceivedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "samples_received_total",
				Help:      "Total number of drift samples received, by transport",
			},
			[]string{"transport", "drift_type"},
		),

		SamplesAcceptedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "samples_accepted_total",
				Help:      "Total number of drift samples persisted after dedupe",
			},
			[]string{"transport", "drift_type"},
		),

		SamplesRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "samples_rejected_total",
				Help:      "Total number of drift samples rejected, by reason",
			},
			[]string{"transport", "reason"},
		),

		IngestLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ingest_latency_ms",
				Help:      "End-to-end latency from receipt to durable write, milliseconds",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"transport"},
		),

		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "queue_depth",
				Help:      "Current number of buffered samples awaiting flush",
			},
			[]string{"feature"},
		),

		// Evaluator метрики
		EvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of drift evaluation ticks, by drift type and outcome",
			},
			[]string{"drift_type", "status"},
		),

		EvaluationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a single profile evaluation tick",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"drift_type"},
		),

		AlertsFiredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "alerts_fired_total",
				Help:      "Total number of drift alerts dispatched, by drift type and rule",
			},
			[]string{"drift_type", "rule"},
		),

		StaleReclaimsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stale_claims_reclaimed_total",
				Help:      "Total number of evaluation claims reclaimed after exceeding the stale timeout",
			},
		),

		// Workflow метрики
		WorkflowTasksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "workflow_tasks_total",
				Help:      "Total number of workflow task executions, by outcome",
			},
			[]string{"status"},
		),

		WorkflowTaskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "workflow_task_duration_seconds",
				Help:      "Duration of a single workflow task execution",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"task"},
		),

		WorkflowRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "workflow_runs_total",
				Help:      "Total number of completed workflow runs, by outcome",
			},
			[]string{"status"},
		),

		// Системные метрики
		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("scouter", "")
	}
	return defaultMetrics
}

// RecordGRPCRequest записывает метрики gRPC запроса
func (m *Metrics) RecordGRPCRequest(method string, status string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.GRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSampleReceived записывает приём сэмпла на заданном транспорте.
func (m *Metrics) RecordSampleReceived(transport, driftType string) {
	m.SamplesReceivedTotal.WithLabelValues(transport, driftType).Inc()
}

// RecordSampleAccepted записывает успешную запись сэмпла после дедупликации.
func (m *Metrics) RecordSampleAccepted(transport, driftType string, latency time.Duration) {
	m.SamplesAcceptedTotal.WithLabelValues(transport, driftType).Inc()
	m.IngestLatency.WithLabelValues(transport).Observe(float64(latency.Milliseconds()))
}

// RecordSampleRejected записывает отклонение сэмпла с указанием причины.
func (m *Metrics) RecordSampleRejected(transport, reason string) {
	m.SamplesRejectedTotal.WithLabelValues(transport, reason).Inc()
}

// SetQueueDepth устанавливает текущую глубину буфера по признаку.
func (m *Metrics) SetQueueDepth(feature string, depth int) {
	m.QueueDepth.WithLabelValues(feature).Set(float64(depth))
}

// RecordEvaluation записывает результат одного тика оценки дрейфа.
func (m *Metrics) RecordEvaluation(driftType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.EvaluationsTotal.WithLabelValues(driftType, status).Inc()
	m.EvaluationDuration.WithLabelValues(driftType).Observe(duration.Seconds())
}

// RecordAlert записывает сработавший алерт дрейфа.
func (m *Metrics) RecordAlert(driftType, rule string) {
	m.AlertsFiredTotal.WithLabelValues(driftType, rule).Inc()
}

// RecordStaleReclaim записывает повторный захват зависшей оценки.
func (m *Metrics) RecordStaleReclaim() {
	m.StaleReclaimsTotal.Inc()
}

// RecordWorkflowTask записывает выполнение одной задачи воркфлоу.
func (m *Metrics) RecordWorkflowTask(task string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.WorkflowTasksTotal.WithLabelValues(status).Inc()
	m.WorkflowTaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordWorkflowRun записывает завершение полного прогона воркфлоу.
func (m *Metrics) RecordWorkflowRun(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.WorkflowRunsTotal.WithLabelValues(status).Inc()
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
