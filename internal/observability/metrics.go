package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttcp",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ttcp",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttcp",
			Subsystem: "session",
			Name:      "sessions_total",
			Help:      "Finished sessions by role and outcome.",
		},
		[]string{"node", "role", "outcome"},
	)
	activeSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ttcp",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently running.",
		},
		[]string{"node", "role"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttcp",
			Subsystem: "session",
			Name:      "frames_total",
			Help:      "Acknowledged payload frames.",
		},
		[]string{"node", "role"},
	)
	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttcp",
			Subsystem: "session",
			Name:      "bytes_total",
			Help:      "Wire bytes moved, descriptor and acks included.",
		},
		[]string{"node", "role", "direction"},
	)
	frameRTT = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ttcp",
			Subsystem: "session",
			Name:      "frame_rtt_seconds",
			Help:      "Per-frame round trip from payload to ack.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16),
		},
		[]string{"node", "role"},
	)
	throughput = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ttcp",
			Subsystem: "session",
			Name:      "throughput_mib_per_second",
			Help:      "Payload throughput of completed sessions.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"node", "role"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			sessionsTotal,
			activeSessions,
			framesTotal,
			bytesTotal,
			frameRTT,
			throughput,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionStarted(node, role string) {
	RegisterMetrics()
	activeSessions.WithLabelValues(node, role).Inc()
}

func RecordFrame(node, role string, rtt time.Duration) {
	RegisterMetrics()
	framesTotal.WithLabelValues(node, role).Inc()
	frameRTT.WithLabelValues(node, role).Observe(rtt.Seconds())
}

// RecordSessionClosed settles the gauge and totals. outcome is "ok" or an error kind.
func RecordSessionClosed(node, role, outcome string, sent, received int64, mibPerSec float64) {
	RegisterMetrics()
	activeSessions.WithLabelValues(node, role).Dec()
	sessionsTotal.WithLabelValues(node, role, outcome).Inc()
	bytesTotal.WithLabelValues(node, role, "sent").Add(float64(sent))
	bytesTotal.WithLabelValues(node, role, "received").Add(float64(received))
	if outcome == OutcomeOK {
		throughput.WithLabelValues(node, role).Observe(mibPerSec)
	}
}
