package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session lifecycle events recorded against the sessions counter.
const (
	SessionStarted   = "started"
	SessionCompleted = "completed"
	SessionRejected  = "rejected"
	SessionCancelled = "cancelled"
)

// MetricsService encapsulates Prometheus instrumentation for the bot.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	updatesTotal    *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	sessionsTotal   *prometheus.CounterVec
	storageErrors   prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	updatesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Total number of transport updates received",
	}, []string{"type"})

	commandDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bot_command_duration_seconds",
		Help:    "Duration of command handling in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_sessions_total",
		Help: "Session lifecycle events by operation",
	}, []string{"operation", "event"})

	storageErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_storage_errors_total",
		Help: "Total number of storage failures surfaced to users",
	})

	registry.MustRegister(updatesTotal, commandDuration, sessionsTotal, storageErrors)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		updatesTotal:    updatesTotal,
		commandDuration: commandDuration,
		sessionsTotal:   sessionsTotal,
		storageErrors:   storageErrors,
	}
}

// Handler exposes the metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordUpdate counts one received transport update.
func (s *MetricsService) RecordUpdate(kind string) {
	if s == nil {
		return
	}
	s.updatesTotal.WithLabelValues(kind).Inc()
}

// RecordCommand observes the handling latency of one command.
func (s *MetricsService) RecordCommand(command string, duration time.Duration) {
	if s == nil {
		return
	}
	s.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordSession counts a session lifecycle event.
func (s *MetricsService) RecordSession(operation, event string) {
	if s == nil {
		return
	}
	s.sessionsTotal.WithLabelValues(operation, event).Inc()
}

// RecordStorageError counts a storage failure.
func (s *MetricsService) RecordStorageError() {
	if s == nil {
		return
	}
	s.storageErrors.Inc()
}
