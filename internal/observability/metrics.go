package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "autobalance"

// Metrics records scaling engine events as Prometheus series. It satisfies
// instance.Recorder.
//
// All methods are safe for concurrent use.
type Metrics struct {
	registry         *prometheus.Registry
	refreshes        *prometheus.CounterVec
	reloads          prometheus.Counter
	instancesLive    prometheus.Gauge
	capacityRejected prometheus.Counter
}

// NewMetrics registers the engine series on a fresh registry.
//
// Postcondition: Returns a non-nil Metrics whose Handler serves only its own
// series plus the Go runtime collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "instance_refreshes_total",
			Help:      "Instance scaling refreshes by trigger.",
		}, []string{"reason"}),
		reloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "config_reloads_total",
			Help:      "Configuration snapshots published.",
		}),
		instancesLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "instances_live",
			Help:      "Instances with scaling state.",
		}),
		capacityRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "capacity_rejected_total",
			Help:      "Curve evaluations rejected for a non-positive capacity.",
		}),
	}
}

func (m *Metrics) Refreshed(reason string) { m.refreshes.WithLabelValues(reason).Inc() }
func (m *Metrics) Reloaded()               { m.reloads.Inc() }
func (m *Metrics) InstancesLive(n int)     { m.instancesLive.Set(float64(n)) }
func (m *Metrics) CapacityRejected()       { m.capacityRejected.Inc() }

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
