package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fleet_"

	resultApplied       = "applied"
	resultMalformed     = "malformed"
	resultUnknownDevice = "unknown_device"
	resultStoreError    = "store_error"
)

var (
	registerOnce sync.Once

	ingestMessages *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	publishTotal prometheus.Counter
	liveStreams  prometheus.Gauge

	httpRequests *prometheus.CounterVec
)

// Init registers the process metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_messages_total",
				Help: "Total consumed sensor messages by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Per-message ingest processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		publishTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "live_publish_total",
				Help: "Total fan-out publishes of merged sensor state",
			},
		)
		liveStreams = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "live_streams",
				Help: "Currently open live status streams",
			},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method and status",
			},
			[]string{"method", "status"},
		)

		prometheus.MustRegister(
			ingestMessages,
			ingestLatency,
			publishTotal,
			liveStreams,
			httpRequests,
		)
	})
}

// ObserveIngest records one consumed message's result and latency.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultApplied
	}
	if ingestMessages != nil {
		ingestMessages.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPublish counts one fan-out publish.
func IncPublish() {
	if publishTotal != nil {
		publishTotal.Inc()
	}
}

// IncLiveStreams tracks a live stream opening.
func IncLiveStreams() {
	if liveStreams != nil {
		liveStreams.Inc()
	}
}

// DecLiveStreams tracks a live stream closing.
func DecLiveStreams() {
	if liveStreams != nil {
		liveStreams.Dec()
	}
}

// IncHTTPRequest counts one served HTTP request.
func IncHTTPRequest(method, status string) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, status).Inc()
	}
}

// Exported result constants for callers.
const (
	IngestResultApplied       = resultApplied
	IngestResultMalformed     = resultMalformed
	IngestResultUnknownDevice = resultUnknownDevice
	IngestResultStoreError    = resultStoreError
)
