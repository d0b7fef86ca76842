// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth event names.
const (
	EventRegister       = "register"
	EventLogin          = "login"
	EventRefresh        = "refresh"
	EventLogout         = "logout"
	EventLogoutAll      = "logout_all"
	EventPasswordChange = "password_change"
	EventAuthenticate   = "authenticate"
)

// OutcomeSuccess is recorded for successful events. Failures record the
// error code instead.
const OutcomeSuccess = "success"

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	registry   *prometheus.Registry
	authEvents *prometheus.CounterVec
}

// New creates a registry with the go and process collectors plus our own.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "herdwatch",
		Name:      "auth_events_total",
		Help:      "Authentication events by outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(authEvents)

	return &Metrics{registry: reg, authEvents: authEvents}
}

// AuthEvent counts one event.
func (m *Metrics) AuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event, outcome).Inc()
}

// AuthEvents exposes the counter for tests.
func (m *Metrics) AuthEvents() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.authEvents
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
