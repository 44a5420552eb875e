package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RemindersScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_scheduled_total",
		Help: "Созданные напоминания по виду (single, series)",
	}, []string{"kind"})
	ParseFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parse_failures_total",
		Help: "Ошибки разбора выражений времени",
	}, []string{"reason"})
	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_total",
		Help: "Попытки доставки напоминаний",
	}, []string{"status"})
	Escalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalations_total",
		Help: "Повторные напоминания без реакции",
	}, []string{"status"})
	WorkerCycleSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_cycle_seconds",
		Help:    "Длительность одного прохода воркера",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})
	DueBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "due_backlog",
		Help: "Количество просроченных напоминаний в начале прохода",
	})
	UndoTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "undo_total",
		Help: "Попытки отмены удаления",
	}, []string{"result"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RemindersScheduled,
		ParseFailures,
		Deliveries,
		Escalations,
		WorkerCycleSeconds,
		DueBacklog,
		UndoTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// Handler отдаёт метрики для встраивания в общий роутер.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveWorkerCycle фиксирует длительность прохода воркера.
func ObserveWorkerCycle(worker string, start time.Time) {
	WorkerCycleSeconds.WithLabelValues(worker).Observe(time.Since(start).Seconds())
}

// Status возвращает метку success/error для счётчиков.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
