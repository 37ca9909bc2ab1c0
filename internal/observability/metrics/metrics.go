package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "campus_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	balanceRecomputeTotal   *prometheus.CounterVec
	balanceRecomputeLatency *prometheus.HistogramVec

	scheduleAllocateTotal   *prometheus.CounterVec
	scheduleAllocateLatency *prometheus.HistogramVec

	validationTotal   *prometheus.CounterVec
	validationLatency *prometheus.HistogramVec

	grantTransitionsTotal *prometheus.CounterVec
	sodRejectionsTotal    *prometheus.CounterVec

	scheduleExportTotal   *prometheus.CounterVec
	scheduleExportLatency *prometheus.HistogramVec

	outboxPublishTotal    *prometheus.CounterVec
	outboxPublishLatency  *prometheus.HistogramVec
	outboxDispatchTotal   *prometheus.CounterVec
	outboxDispatchLatency *prometheus.HistogramVec
	outboxDispatchCounts  *prometheus.CounterVec

	consumerLag *prometheus.GaugeVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		balanceRecomputeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "balance_recompute_total",
				Help: "Total balance recomputations by result",
			},
			[]string{"result"},
		)
		balanceRecomputeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "balance_recompute_latency_seconds",
				Help:    "Balance recomputation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		scheduleAllocateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "schedule_allocate_total",
				Help: "Total installment schedule derivations by result",
			},
			[]string{"result"},
		)
		scheduleAllocateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "schedule_allocate_latency_seconds",
				Help:    "Installment schedule derivation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		validationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "validation_total",
				Help: "Total registration validation computations by result",
			},
			[]string{"result"},
		)
		validationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "validation_latency_seconds",
				Help:    "Registration validation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		grantTransitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "grant_transitions_total",
				Help: "Total grant lifecycle transitions by grant type and transition",
			},
			[]string{"grant_type", "transition"},
		)
		sodRejectionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sod_rejections_total",
				Help: "Total separation-of-duties rejections by grant type",
			},
			[]string{"grant_type"},
		)

		scheduleExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "schedule_export_total",
				Help: "Total schedule export operations by format and result",
			},
			[]string{"format", "result"},
		)
		scheduleExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "schedule_export_latency_seconds",
				Help:    "Schedule export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		outboxPublishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_publish_total",
				Help: "Total outbox publish operations by result",
			},
			[]string{"result"},
		)
		outboxPublishLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_publish_latency_seconds",
				Help:    "Outbox publish latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		outboxDispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_total",
				Help: "Total outbox dispatch runs by result",
			},
			[]string{"result"},
		)
		outboxDispatchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_dispatch_latency_seconds",
				Help:    "Outbox dispatch run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		outboxDispatchCounts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_records_total",
				Help: "Total dispatched outbox records by outcome",
			},
			[]string{"outcome"},
		)

		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		prometheus.MustRegister(
			balanceRecomputeTotal,
			balanceRecomputeLatency,
			scheduleAllocateTotal,
			scheduleAllocateLatency,
			validationTotal,
			validationLatency,
			grantTransitionsTotal,
			sodRejectionsTotal,
			scheduleExportTotal,
			scheduleExportLatency,
			outboxPublishTotal,
			outboxPublishLatency,
			outboxDispatchTotal,
			outboxDispatchLatency,
			outboxDispatchCounts,
			consumerLag,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveBalanceRecompute records recompute latency and result.
func ObserveBalanceRecompute(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if balanceRecomputeTotal != nil {
		balanceRecomputeTotal.WithLabelValues(result).Inc()
	}
	if balanceRecomputeLatency != nil {
		balanceRecomputeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveScheduleAllocate records schedule derivation latency and result.
func ObserveScheduleAllocate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if scheduleAllocateTotal != nil {
		scheduleAllocateTotal.WithLabelValues(result).Inc()
	}
	if scheduleAllocateLatency != nil {
		scheduleAllocateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveValidation records registration validation latency and result.
func ObserveValidation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if validationTotal != nil {
		validationTotal.WithLabelValues(result).Inc()
	}
	if validationLatency != nil {
		validationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncGrantTransition increments the grant transition counter.
func IncGrantTransition(grantType, transition string) {
	if grantType == "" {
		grantType = "unknown"
	}
	if transition == "" {
		transition = "unknown"
	}
	if grantTransitionsTotal != nil {
		grantTransitionsTotal.WithLabelValues(grantType, transition).Inc()
	}
}

// IncSoDRejection increments the SoD rejection counter.
func IncSoDRejection(grantType string) {
	if grantType == "" {
		grantType = "unknown"
	}
	if sodRejectionsTotal != nil {
		sodRejectionsTotal.WithLabelValues(grantType).Inc()
	}
}

// ObserveScheduleExport records export latency and result.
func ObserveScheduleExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if scheduleExportTotal != nil {
		scheduleExportTotal.WithLabelValues(format, result).Inc()
	}
	if scheduleExportLatency != nil {
		scheduleExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveOutboxPublish records publish latency and result.
func ObserveOutboxPublish(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if outboxPublishTotal != nil {
		outboxPublishTotal.WithLabelValues(result).Inc()
	}
	if outboxPublishLatency != nil {
		outboxPublishLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveOutboxDispatch records a dispatch run.
func ObserveOutboxDispatch(result string, duration time.Duration, sent, failed, dlq int) {
	if result == "" {
		result = resultSuccess
	}
	if outboxDispatchTotal != nil {
		outboxDispatchTotal.WithLabelValues(result).Inc()
	}
	if outboxDispatchLatency != nil {
		outboxDispatchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if outboxDispatchCounts != nil {
		if sent > 0 {
			outboxDispatchCounts.WithLabelValues("sent").Add(float64(sent))
		}
		if failed > 0 {
			outboxDispatchCounts.WithLabelValues("failed").Add(float64(failed))
		}
		if dlq > 0 {
			outboxDispatchCounts.WithLabelValues("dlq").Add(float64(dlq))
		}
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
