package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func vecValue(t *testing.T, v *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := v.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	return counterValue(t, c)
}

func TestConnectionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectionAccepted()
	m.ConnectionAccepted()
	m.ConnectionClosed()

	if got := counterValue(t, m.connectionsAccepted); got != 2 {
		t.Errorf("connectionsAccepted = %v, want 2", got)
	}
	if got := counterValue(t, m.connectionsClosed); got != 1 {
		t.Errorf("connectionsClosed = %v, want 1", got)
	}
}

func TestRequestDispatchedLabelsByStatusClass(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RequestDispatched(200)
	m.RequestDispatched(204)
	m.RequestDispatched(404)
	m.RequestDispatched(500)

	if got := vecValue(t, m.requestsDispatched, "2xx"); got != 2 {
		t.Errorf("2xx count = %v, want 2", got)
	}
	if got := vecValue(t, m.requestsDispatched, "4xx"); got != 1 {
		t.Errorf("4xx count = %v, want 1", got)
	}
	if got := vecValue(t, m.requestsDispatched, "5xx"); got != 1 {
		t.Errorf("5xx count = %v, want 1", got)
	}
}

func TestMalformedRequestLabelsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MalformedRequest("malformed header")
	m.MalformedRequest("malformed header")
	m.MalformedRequest("post data overflow")

	if got := vecValue(t, m.malformedRequests, "malformed header"); got != 2 {
		t.Errorf("malformed header count = %v, want 2", got)
	}
	if got := vecValue(t, m.malformedRequests, "post data overflow"); got != 1 {
		t.Errorf("post data overflow count = %v, want 1", got)
	}
}

func TestIdleTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IdleTimeout()
	m.IdleTimeout()
	m.IdleTimeout()

	if got := counterValue(t, m.idleTimeouts); got != 3 {
		t.Errorf("idleTimeouts = %v, want 3", got)
	}
}

func TestStatusClassUnknownOutOfRange(t *testing.T) {
	if got := statusClass(0); got != "unknown" {
		t.Errorf("statusClass(0) = %q, want unknown", got)
	}
	if got := statusClass(700); got != "unknown" {
		t.Errorf("statusClass(700) = %q, want unknown", got)
	}
}
