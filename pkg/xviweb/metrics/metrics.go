// Package metrics wires the engine's counters into a caller-supplied
// Prometheus registry, grounded on buffer_pool_prometheus.go's metric
// vocabulary (named counters/gauges under a namespace/subsystem pair)
// but registered with promauto.With(registry) instead of the implicit
// default registerer, so more than one Prometheus instance can coexist
// in the same process (e.g. under test) without a duplicate-metrics
// panic.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "xviweb"

// Prometheus counts the events worker.Worker and server.Acceptor
// report and satisfies worker.Metrics.
type Prometheus struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	requestsDispatched  *prometheus.CounterVec
	malformedRequests   *prometheus.CounterVec
	idleTimeouts        prometheus.Counter
}

// New registers the engine's metrics against reg and returns a handle
// to report events into. reg must not already have xviweb metrics
// registered on it.
func New(reg *prometheus.Registry) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "accepted_total",
			Help:      "Total number of connections accepted.",
		}),
		connectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "closed_total",
			Help:      "Total number of connections closed or reaped.",
		}),
		requestsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "dispatched_total",
			Help:      "Total number of requests dispatched, labeled by status code class.",
		}, []string{"status_class"}),
		malformedRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "malformed_total",
			Help:      "Total number of malformed requests, labeled by error kind.",
		}, []string{"kind"}),
		idleTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "idle_timeouts_total",
			Help:      "Total number of connections reaped for exceeding the idle read timeout.",
		}),
	}
}

// ConnectionAccepted implements worker.Metrics.
func (p *Prometheus) ConnectionAccepted() {
	p.connectionsAccepted.Inc()
}

// ConnectionClosed implements worker.Metrics.
func (p *Prometheus) ConnectionClosed() {
	p.connectionsClosed.Inc()
}

// RequestDispatched implements worker.Metrics.
func (p *Prometheus) RequestDispatched(statusCode int) {
	p.requestsDispatched.WithLabelValues(statusClass(statusCode)).Inc()
}

// MalformedRequest implements worker.Metrics.
func (p *Prometheus) MalformedRequest(kind string) {
	p.malformedRequests.WithLabelValues(kind).Inc()
}

// IdleTimeout implements worker.Metrics.
func (p *Prometheus) IdleTimeout() {
	p.idleTimeouts.Inc()
}

func statusClass(statusCode int) string {
	if statusCode < 100 || statusCode > 599 {
		return "unknown"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}
