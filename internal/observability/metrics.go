package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the auth counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics contains the counters recorded by the authentication pipeline. A
// nil *Metrics is valid and records nothing.
type Metrics struct {
	CheckDenials  *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Logouts       *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the metrics on a private registry, alongside the
// standard Go and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		CheckDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_check_denials_total",
				Help: "Total number of requests denied by a credential check",
			},
			[]string{"check"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_registrations_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		Logouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_logouts_total",
				Help: "Total number of logout requests by outcome",
			},
			[]string{"outcome"},
		),
		registry: registry,
	}
	registry.MustRegister(m.CheckDenials, m.Logins, m.Registrations, m.Logouts)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordDenial counts a request short-circuited by the named check.
func (m *Metrics) RecordDenial(check string) {
	if m == nil {
		return
	}
	m.CheckDenials.WithLabelValues(check).Inc()
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// RecordRegistration counts a registration attempt.
func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

// RecordLogout counts a logout request. The outcome is the message returned
// to the client.
func (m *Metrics) RecordLogout(outcome string) {
	if m == nil {
		return
	}
	m.Logouts.WithLabelValues(outcome).Inc()
}
