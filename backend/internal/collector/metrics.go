package collector

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection reasons reported in the packets_rejected_total metric.
const (
	ReasonMalformed     = "malformed"
	ReasonUnknownType   = "unknown_type"
	ReasonUnknownSensor = "unknown_sensor"
	ReasonStoreError    = "store_error"
)

type Metrics struct {
	packetsReceived *prometheus.CounterVec
	packetsRejected *prometheus.CounterVec
	sensorsAdded    prometheus.Counter
	lastReading     *prometheus.GaugeVec
	httpDuration    *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

// NewMetrics creates the collector metrics and registers them on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walk_collector",
			Name:      "packets_received_total",
			Help:      "Total packets received from the bus by packet type.",
		}, []string{"packet_type"}),
		packetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walk_collector",
			Name:      "packets_rejected_total",
			Help:      "Total packets that were not stored, by reason.",
		}, []string{"reason"}),
		sensorsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walk_collector",
			Name:      "sensors_added_total",
			Help:      "Total sensors registered through identification packets.",
		}),
		lastReading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "walk_collector",
			Name:      "last_reading_value",
			Help:      "Most recent stored reading by sensor address.",
		}, []string{"sensor_address"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "walk_collector",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by method, route pattern and status code.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route", "code"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.packetsReceived,
		m.packetsRejected,
		m.sensorsAdded,
		m.lastReading,
		m.httpDuration,
	)

	return m
}

func (m *Metrics) received(packetType string) {
	m.packetsReceived.WithLabelValues(packetType).Inc()
}

func (m *Metrics) rejected(reason string) {
	m.packetsRejected.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one API request. It matches apicommon.RequestObserver.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
