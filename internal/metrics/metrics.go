// Package metrics собирает счётчики Prometheus для проверок и HTTP-слоя.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphguard"

// Collector реализует validation.Observer и отдаёт /metrics.
// Свой реестр, а не глобальный: в тестах можно создать сколько угодно коллекторов.
type Collector struct {
	registry *prometheus.Registry

	validations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	lookups     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	requests    *prometheus.CounterVec
}

// NewCollector: registry == nil означает новый пустой реестр с метриками процесса и Go runtime
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	c := &Collector{
		registry: registry,
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validation calls by operation and outcome (ok, failed, critical).",
		}, []string{"operation", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Business rule failures by code.",
		}, []string{"code"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_lookups_total",
			Help:      "Storage lookups issued by the validator.",
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Validation call latency.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
	registry.MustRegister(c.validations, c.failures, c.lookups, c.duration, c.requests)
	return c
}

func (c *Collector) ObserveValidation(op, outcome string, d time.Duration) {
	c.validations.WithLabelValues(op, outcome).Inc()
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) ObserveFailure(code string) {
	c.failures.WithLabelValues(code).Inc()
}

func (c *Collector) ObserveLookup(method string) {
	c.lookups.WithLabelValues(method).Inc()
}

// ObserveRequest: route это шаблон маршрута (/api/:module/:entity/_validate), не сырой URL
func (c *Collector) ObserveRequest(route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Registry: для тестов и дополнительных коллекторов
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler: /metrics в формате Prometheus (и OpenMetrics по Accept)
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
