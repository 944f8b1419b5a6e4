package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contadores del servicio. Los métodos aceptan receptor nil (no registran nada).
type Metrics struct {
	gatherer prometheus.Gatherer

	codesIssued    *prometheus.CounterVec
	codesConsumed  *prometheus.CounterVec
	storeFailovers *prometheus.CounterVec
	gateResults    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New crea y registra las métricas en un registro propio.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_codes_issued_total",
			Help: "Códigos de verificación emitidos.",
		}, []string{"scenario", "tier"}),
		codesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_codes_consumed_total",
			Help: "Intentos de canje de códigos por resultado.",
		}, []string{"tier", "result"}),
		storeFailovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_store_failovers_total",
			Help: "Operaciones desviadas al almacén de respaldo.",
		}, []string{"op"}),
		gateResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_gate_results_total",
			Help: "Resolución de identidad por petición.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.codesIssued, m.codesConsumed, m.storeFailovers, m.gateResults,
		m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler expone el registro en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer acceso al registro (tests).
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

func (m *Metrics) CodeIssued(scenario, tier string) {
	if m == nil {
		return
	}
	m.codesIssued.WithLabelValues(scenario, tier).Inc()
}

func (m *Metrics) CodeConsumed(tier, result string) {
	if m == nil {
		return
	}
	m.codesConsumed.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) StoreFailover(op string) {
	if m == nil {
		return
	}
	m.storeFailovers.WithLabelValues(op).Inc()
}

func (m *Metrics) GateResult(result string) {
	if m == nil {
		return
	}
	m.gateResults.WithLabelValues(result).Inc()
}

// ObserveRequest registra una petición HTTP terminada.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}
