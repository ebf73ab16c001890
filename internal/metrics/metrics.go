// Package metrics exposes Prometheus instrumentation for the meeting
// server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roundsync_ws_clients",
		Help: "Websocket clients currently attached to meeting streams",
	})

	eventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundsync_events_sent_total",
		Help: "Progress events written to websocket clients grouped by type",
	}, []string{"type"})

	statusRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundsync_status_requests_total",
		Help: "Status poll requests served",
	})

	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roundsync_round_duration_seconds",
		Help:    "Duration of completed discussion rounds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})

	meetingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundsync_meetings_total",
		Help: "Meetings finished grouped by outcome",
	}, []string{"status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundsync_http_requests_total",
		Help: "Total HTTP requests processed by the meeting server",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roundsync_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// WSClientConnected records a new stream attachment.
func WSClientConnected() {
	wsClients.Inc()
}

// WSClientDisconnected records a stream detachment.
func WSClientDisconnected() {
	wsClients.Dec()
}

// ObserveEventSent counts one frame written to a client.
func ObserveEventSent(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	eventsSent.WithLabelValues(eventType).Inc()
}

// ObserveStatusRequest counts one served status poll.
func ObserveStatusRequest() {
	statusRequests.Inc()
}

// ObserveRoundComplete records the duration of one finished round.
func ObserveRoundComplete(d time.Duration) {
	roundDuration.Observe(d.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, path, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveMeetingFinished counts a meeting reaching a terminal status.
func ObserveMeetingFinished(status string) {
	if status == "" {
		status = "unknown"
	}
	meetingsTotal.WithLabelValues(status).Inc()
}
