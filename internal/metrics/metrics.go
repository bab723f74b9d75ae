package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped" // no connection handle

	ReloadApplied    = "applied"
	ReloadReadError  = "read_error"
	ReloadParseError = "parse_error"
	ReloadRejected   = "rejected"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Message counters
	messagesReceived prometheus.Counter
	messagesMatched  prometheus.Counter     // registrations invoked
	messagesUnrouted prometheus.Counter     // no registration matched
	published        *prometheus.CounterVec // By result (ok/error/dropped)

	// Lifecycle
	reloads         *prometheus.CounterVec // By result
	connects        *prometheus.CounterVec // By result (ok/error)
	connectionState prometheus.Gauge
}

// New creates and registers the service metrics.
//
// Parameters:
//   - namespace: Prometheus namespace, normally the service name
//
// Returns:
//   - *Metrics: ready to record, with Go and process collectors included
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "received_total",
			Help:      "Total number of inbound MQTT messages",
		}),

		messagesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "dispatched_total",
			Help:      "Total number of handler registrations invoked by inbound messages",
		}),

		messagesUnrouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "unrouted_total",
			Help:      "Total number of inbound messages that matched no registration",
		}),

		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "published_total",
			Help:      "Total number of outbound publishes by result",
		}, []string{"result"}), // result: ok, error, dropped

		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Total number of configuration reloads by result",
		}, []string{"result"}),

		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connects_total",
			Help:      "Total number of broker connect results",
		}, []string{"result"}),

		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connection_state",
			Help:      "Connection state (0=disconnected, 1=connecting, 2=connected, 3=disconnecting, 4=terminated)",
		}),
	}

	m.registry.MustRegister(
		m.messagesReceived,
		m.messagesMatched,
		m.messagesUnrouted,
		m.published,
		m.reloads,
		m.connects,
		m.connectionState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the metrics are registered on, so that
// applications can add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordMessage records one inbound message and how many registrations it
// was dispatched to.
func (m *Metrics) RecordMessage(matched int) {
	if m == nil {
		return
	}

	m.messagesReceived.Inc()
	if matched == 0 {
		m.messagesUnrouted.Inc()
		return
	}
	m.messagesMatched.Add(float64(matched))
}

// RecordPublish records an outbound publish result.
func (m *Metrics) RecordPublish(result string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(result).Inc()
}

// RecordReload records a configuration reload result.
func (m *Metrics) RecordReload(result string) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(result).Inc()
}

// RecordConnect records a broker connect result.
func (m *Metrics) RecordConnect(ok bool) {
	if m == nil {
		return
	}

	result := ResultOK
	if !ok {
		result = ResultError
	}
	m.connects.WithLabelValues(result).Inc()
}

// SetConnectionState records the numeric connection state.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}
