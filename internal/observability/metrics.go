package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gardenctl"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	packetsDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packets",
			Name:      "decoded_total",
			Help:      "Packets decoded into a known record.",
		},
		[]string{"direction", "name"},
	)
	packetsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packets",
			Name:      "dropped_total",
			Help:      "Packets dropped before interpretation.",
		},
		[]string{"direction", "reason"},
	)
	gardenEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "garden",
			Name:      "events_total",
			Help:      "Derived garden events.",
		},
		[]string{"operation"},
	)
	unresolvedActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "garden",
			Name:      "unresolved_total",
			Help:      "Actions abandoned because correlation failed.",
		},
		[]string{"packet", "reason"},
	)
	statsUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "uploads_total",
			Help:      "Harvest statistics uploads by outcome.",
		},
		[]string{"success"},
	)
	statsDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "upload_duration_seconds",
			Help:      "Harvest statistics upload duration including retries.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	ingestClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "clients",
			Help:      "Connected host bridge clients.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			packetsDecoded, packetsDropped,
			gardenEvents, unresolvedActions,
			statsUploads, statsDuration,
			ingestClients,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordPacketDecoded(direction, name string) {
	RegisterMetrics()
	packetsDecoded.WithLabelValues(direction, name).Inc()
}

func RecordPacketDropped(direction, reason string) {
	RegisterMetrics()
	packetsDropped.WithLabelValues(direction, reason).Inc()
}

func RecordGardenEvent(operation string) {
	RegisterMetrics()
	gardenEvents.WithLabelValues(operation).Inc()
}

func RecordUnresolved(packet, reason string) {
	RegisterMetrics()
	unresolvedActions.WithLabelValues(packet, reason).Inc()
}

func RecordStatsUpload(success bool, duration time.Duration) {
	RegisterMetrics()
	statsUploads.WithLabelValues(strconv.FormatBool(success)).Inc()
	statsDuration.Observe(duration.Seconds())
}

func SetIngestClients(n int) {
	RegisterMetrics()
	ingestClients.Set(float64(n))
}
