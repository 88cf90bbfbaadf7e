package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decoyd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "decoyd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Engine metrics
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decoyd_messages_total",
			Help: "Total number of inbound messages processed",
		},
		[]string{"outcome"},
	)

	scamVerdictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "decoyd_scam_verdicts_total",
			Help: "Total number of messages classified as scam",
		},
	)

	artifactsExtractedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decoyd_artifacts_extracted_total",
			Help: "Total number of artifact candidates extracted",
		},
		[]string{"category"},
	)

	// Session metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "decoyd_active_sessions",
			Help: "Number of live sessions in the store",
		},
	)

	sessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "decoyd_sessions_evicted_total",
			Help: "Total number of idle sessions evicted without reporting",
		},
	)

	// Reporting metrics
	dossiersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decoyd_dossiers_total",
			Help: "Total number of dossier delivery attempts",
		},
		[]string{"status"},
	)

	dossierDeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decoyd_dossier_delivery_duration_seconds",
			Help:    "Dossier delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			messagesTotal,
			scamVerdictsTotal,
			artifactsExtractedTotal,
			activeSessions,
			sessionsEvictedTotal,
			dossiersTotal,
			dossierDeliveryDuration,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMessage records one processed inbound message
func RecordMessage(outcome string) {
	messagesTotal.WithLabelValues(outcome).Inc()
}

// RecordScamVerdict records a positive scam classification
func RecordScamVerdict() {
	scamVerdictsTotal.Inc()
}

// RecordArtifacts records extracted artifact candidates for a category
func RecordArtifacts(category string, count int) {
	if count > 0 {
		artifactsExtractedTotal.WithLabelValues(category).Add(float64(count))
	}
}

// SetActiveSessions updates the live session gauge
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordEviction records idle sessions swept from the store
func RecordEviction(n int) {
	if n > 0 {
		sessionsEvictedTotal.Add(float64(n))
	}
}

// RecordDossierDelivery records a delivery attempt outcome
func RecordDossierDelivery(status string, duration time.Duration) {
	dossiersTotal.WithLabelValues(status).Inc()
	dossierDeliveryDuration.Observe(duration.Seconds())
}
