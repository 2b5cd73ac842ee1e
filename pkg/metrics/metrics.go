// Package metrics exposes stubd's Prometheus metrics.
//
// Every Metrics value owns its own prometheus.Registry so several engines
// (and tests) in one process do not collide on the default registerer.
//
//	m := metrics.New()
//	m.ObserveRequest("GET", "get-user", 200, time.Since(start))
//	mux.Handle("/__stubd/metrics", m.Handler())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NoRule is the rule label of requests no rule matched.
const NoRule = "none"

// Metrics holds the collectors of one engine.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	handlerErrors   *prometheus.CounterVec
	rules           prometheus.Gauge
	reloads         *prometheus.CounterVec
}

// New creates the collectors, including Go runtime and process metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stubd_requests_total",
			Help: "Requests served, by method, matched rule and status code.",
		}, []string{"method", "rule", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stubd_request_duration_seconds",
			Help:    "Time to evaluate rules and write the response.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "rule"}),
		handlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stubd_handler_errors_total",
			Help: "Matched requests whose response handler failed.",
		}, []string{"rule"}),
		rules: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stubd_rules",
			Help: "Rules in the active registry.",
		}),
		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stubd_config_reloads_total",
			Help: "Configuration reloads, by result (ok, error).",
		}, []string{"result"}),
	}
}

// ObserveRequest records one served request. rule is NoRule when nothing
// matched.
func (m *Metrics) ObserveRequest(method, rule string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, rule, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, rule).Observe(d.Seconds())
}

// HandlerError counts a failed handler.
func (m *Metrics) HandlerError(rule string) {
	m.handlerErrors.WithLabelValues(rule).Inc()
}

// SetRules publishes the size of the active registry.
func (m *Metrics) SetRules(n int) {
	m.rules.Set(float64(n))
}

// Reloaded counts a configuration reload attempt.
func (m *Metrics) Reloaded(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
