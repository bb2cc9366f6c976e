package observability

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blazectl",
			Subsystem: "packets",
			Name:      "received_total",
			Help:      "Packets decoded from clients.",
		},
		[]string{"component", "command", "type"},
	)
	packetsOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blazectl",
			Subsystem: "packets",
			Name:      "sent_total",
			Help:      "Packets written to clients.",
		},
		[]string{"component", "command", "type"},
	)
	frameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blazectl",
			Subsystem: "packets",
			Name:      "frame_errors_total",
			Help:      "Frames rejected by the decoder or a handler.",
		},
		[]string{"reason"},
	)
	activeConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blazectl",
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Open client connections.",
		},
	)
	handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "blazectl",
			Subsystem: "server",
			Name:      "handler_duration_seconds",
			Help:      "Request handler duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "command", "error"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blazectl",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(packetsIn, packetsOut, frameErrors, activeConns, handlerDuration, httpRequests)
	})
}

func hex16(v uint16) string {
	return fmt.Sprintf("%#04x", v)
}

func RecordPacketIn(component, command uint16, typ string) {
	RegisterMetrics()
	packetsIn.WithLabelValues(hex16(component), hex16(command), typ).Inc()
}

func RecordPacketOut(component, command uint16, typ string) {
	RegisterMetrics()
	packetsOut.WithLabelValues(hex16(component), hex16(command), typ).Inc()
}

func RecordFrameError(reason string) {
	RegisterMetrics()
	frameErrors.WithLabelValues(reason).Inc()
}

func ConnOpened() {
	RegisterMetrics()
	activeConns.Inc()
}

func ConnClosed() {
	RegisterMetrics()
	activeConns.Dec()
}

func RecordHandler(component, command, errCode uint16, duration time.Duration) {
	RegisterMetrics()
	handlerDuration.WithLabelValues(hex16(component), hex16(command), hex16(errCode)).Observe(duration.Seconds())
}

func RecordHTTPRequest(method, path string, status int) {
	RegisterMetrics()
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
