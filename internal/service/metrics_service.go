package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry: HTTP, cache and database
// instrumentation plus the slot, enrollment and payout counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	slotReservations  *prometheus.CounterVec
	enrollments       *prometheus.CounterVec
	paymentCallbacks  *prometheus.CounterVec
	paymentsExpired   prometheus.Counter
	payoutsGenerated  *prometheus.CounterVec
	payoutAmount      *prometheus.CounterVec
	payoutTransitions *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache reads",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		slotReservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slot_reservations_total",
			Help: "Slot reservation attempts by outcome",
		}, []string{"outcome"}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollments_created_total",
			Help: "Enrollments created by payment status",
		}, []string{"payment_status"}),
		paymentCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Payment gateway callbacks by type and outcome",
		}, []string{"type", "outcome"}),
		paymentsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_orders_expired_total",
			Help: "Payment orders expired without a callback",
		}),
		payoutsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payouts_generated_total",
			Help: "Payouts generated per currency",
		}, []string{"currency"}),
		payoutAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_net_amount_minor_total",
			Help: "Net payout amount generated in minor currency units",
		}, []string{"currency"}),
		payoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_status_transitions_total",
			Help: "Payout status transitions",
		}, []string{"from", "to"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domain_events_dropped_total",
			Help: "Domain events that could not be published",
		}, []string{"type"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.dbQueryDuration, m.slotReservations, m.enrollments, m.paymentCallbacks, m.paymentsExpired,
		m.payoutsGenerated, m.payoutAmount, m.payoutTransitions, m.eventsDropped, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the registry for tests and additional collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database operation timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordSlotReservation counts a reservation attempt: reserved, full, missing or error.
func (m *MetricsService) RecordSlotReservation(outcome string) {
	if m == nil {
		return
	}
	m.slotReservations.WithLabelValues(outcome).Inc()
}

// RecordEnrollment counts a created enrollment.
func (m *MetricsService) RecordEnrollment(paymentStatus string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(paymentStatus).Inc()
}

// RecordPaymentCallback counts a gateway callback.
func (m *MetricsService) RecordPaymentCallback(callbackType, outcome string) {
	if m == nil {
		return
	}
	m.paymentCallbacks.WithLabelValues(callbackType, outcome).Inc()
}

// RecordPaymentsExpired counts orders expired by the sweeper or lazily.
func (m *MetricsService) RecordPaymentsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.paymentsExpired.Add(float64(n))
}

// RecordPayoutGenerated counts a generated payout and its net amount.
func (m *MetricsService) RecordPayoutGenerated(currency string, netAmount int64) {
	if m == nil {
		return
	}
	m.payoutsGenerated.WithLabelValues(currency).Inc()
	if netAmount > 0 {
		m.payoutAmount.WithLabelValues(currency).Add(float64(netAmount))
	}
}

// RecordPayoutTransition counts a payout status change.
func (m *MetricsService) RecordPayoutTransition(from, to string) {
	if m == nil {
		return
	}
	m.payoutTransitions.WithLabelValues(from, to).Inc()
}

// RecordEventDropped counts a domain event that was not published.
func (m *MetricsService) RecordEventDropped(eventType string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(eventType).Inc()
}
