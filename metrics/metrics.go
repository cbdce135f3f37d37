package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers never collide
// on the global default.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	WizardTransitions   *prometheus.CounterVec
	MediationsTotal     *prometheus.CounterVec
	MediationDuration   prometheus.Histogram
	ChainCallsTotal     *prometheus.CounterVec
	ChainCallDuration   *prometheus.HistogramVec
	RateLimitedTotal    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		WizardTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_wizard_transitions_total",
				Help: "Escrow wizard transitions by outcome",
			},
			[]string{"transition", "outcome"},
		),
		MediationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispute_mediations_total",
				Help: "Dispute mediation requests by outcome",
			},
			[]string{"outcome"},
		),
		MediationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispute_mediation_duration_seconds",
				Help:    "Duration of dispute mediation calls",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),
		ChainCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aptos_calls_total",
				Help: "Calls to the Aptos node and faucet by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		ChainCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aptos_call_duration_seconds",
				Help:    "Duration of calls to the Aptos node and faucet",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Requests rejected by per-wallet rate limits",
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WizardTransitions,
		m.MediationsTotal,
		m.MediationDuration,
		m.ChainCallsTotal,
		m.ChainCallDuration,
		m.RateLimitedTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveWizard implements escrow.Observer.
func (m *Metrics) ObserveWizard(transition, outcome string) {
	if m == nil {
		return
	}
	m.WizardTransitions.WithLabelValues(transition, outcome).Inc()
}

// ObserveMediation implements mediation.Observer.
func (m *Metrics) ObserveMediation(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.MediationsTotal.WithLabelValues(outcome).Inc()
	if outcome != "invalid" {
		m.MediationDuration.Observe(elapsed.Seconds())
	}
}

// ObserveCall implements aptos.Observer.
func (m *Metrics) ObserveCall(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChainCallsTotal.WithLabelValues(op, outcome).Inc()
	m.ChainCallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}
