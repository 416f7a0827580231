package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "savekeep"

// Result label values.
const (
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultFailure = "failure"
	ResultBusy    = "busy"
)

// Registry holds all persistence metrics.
type Registry struct {
	reg *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SlotBytes         *prometheus.GaugeVec
	PartialFragments  *prometheus.CounterVec
	SlotEvents        *prometheus.CounterVec
	InFlight          prometheus.Gauge
}

// NewRegistry creates a registry with all metrics registered. An empty
// namespace uses DefaultNamespace.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Save and load operations by kind and result.",
		}, []string{"kind", "result"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of save and load operations.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"kind"}),
		SlotBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slot_bytes",
			Help:      "Size of the last slot file written or read.",
		}, []string{"kind"}),
		PartialFragments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_apply_fragments_total",
			Help:      "Fragments that failed to apply during a load.",
		}, []string{"fragment"}),
		SlotEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_events_total",
			Help:      "Slot files written or removed, as seen by the directory watcher.",
		}, []string{"kind"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_operations",
			Help:      "Save and load operations currently running.",
		}),
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler serving the registry in Prometheus text
// format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveOperation records one finished operation.
func (r *Registry) ObserveOperation(kind, result string, seconds float64) {
	r.OperationsTotal.WithLabelValues(kind, result).Inc()
	if result != ResultBusy {
		r.OperationDuration.WithLabelValues(kind).Observe(seconds)
	}
}
