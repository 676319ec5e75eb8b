package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const livelookNamespace string = "livelook"

var (
	promSessionTotal        prometheus.Gauge
	ServiceOperationCounter *prometheus.CounterVec

	promFallbackTotal      *prometheus.CounterVec
	promForwardedPackets   *prometheus.CounterVec
	promFirstPacketSeconds prometheus.Histogram
	promKeyframeRequests   *prometheus.CounterVec
)

func init() {
	promSessionTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: livelookNamespace,
		Subsystem: "session",
		Name:      "total",
	})

	ServiceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   livelookNamespace,
			Subsystem:   "node",
			Name:        "service_operation",
			ConstLabels: prometheus.Labels{"node_id": "1"},
		},
		[]string{"type", "status", "error_type"},
	)

	promFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: livelookNamespace,
			Subsystem: "forwarder",
			Name:      "fallback_total",
		},
		[]string{"reason"},
	)

	promForwardedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: livelookNamespace,
			Subsystem: "forwarder",
			Name:      "packets_total",
		},
		[]string{"kind"},
	)

	promFirstPacketSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: livelookNamespace,
		Subsystem: "forwarder",
		Name:      "first_packet_seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	promKeyframeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: livelookNamespace,
			Subsystem: "rtcp",
			Name:      "keyframe_requests_total",
		},
		[]string{"type"},
	)

	prometheus.MustRegister(promSessionTotal)
	prometheus.MustRegister(ServiceOperationCounter)
	prometheus.MustRegister(promFallbackTotal)
	prometheus.MustRegister(promForwardedPackets)
	prometheus.MustRegister(promFirstPacketSeconds)
	prometheus.MustRegister(promKeyframeRequests)
}

func SessionStarted() {
	promSessionTotal.Inc()
}

func SessionStopped() {
	promSessionTotal.Dec()
}

// OperationSucceeded and OperationFailed count service level operations
// (rpc handling, transcode jobs) by type
func OperationSucceeded(operation string) {
	ServiceOperationCounter.WithLabelValues(operation, "success", "").Inc()
}

func OperationFailed(operation string, errorType string) {
	ServiceOperationCounter.WithLabelValues(operation, "error", errorType).Inc()
}

func FallbackRecorded(reason string) {
	promFallbackTotal.WithLabelValues(reason).Inc()
}

// PacketsCounter is resolved once per track, it is hit for every packet
func PacketsCounter(kind string) prometheus.Counter {
	return promForwardedPackets.WithLabelValues(kind)
}

func FirstPacket(elapsed time.Duration) {
	promFirstPacketSeconds.Observe(elapsed.Seconds())
}

func KeyframeRequested(rtcpType string) {
	promKeyframeRequests.WithLabelValues(rtcpType).Inc()
}
