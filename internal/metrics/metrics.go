// Package metrics holds the Prometheus collectors of the update service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jupdate53"

// Metrics groups the collectors. The zero value is not usable; use New.
type Metrics struct {
	updates          *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	convergenceWait  *prometheus.HistogramVec
	throttleEntries  prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Counter of update requests by response code.",
		}, []string{"result"}),
		providerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Counter of Route53 API calls.",
		}, []string{"operation", "outcome"}),
		convergenceWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "convergence_wait_seconds",
			Help:      "Time spent polling for a change to become INSYNC.",
			Buckets:   []float64{0, 1, 3, 7, 12, 22, 32, 47, 62, 120},
		}, []string{"status"}),
		throttleEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_entries",
			Help:      "Current number of names tracked by the admission gate.",
		}),
	}
}

// ObserveUpdate counts one answered update. result is the response code
// without the address suffix.
func (m *Metrics) ObserveUpdate(result string) {
	m.updates.WithLabelValues(result).Inc()
}

// ObserveProviderRequest counts one provider API call.
func (m *Metrics) ObserveProviderRequest(op, outcome string) {
	m.providerRequests.WithLabelValues(op, outcome).Inc()
}

// ObserveConvergence records how long a wait lasted and how it ended.
func (m *Metrics) ObserveConvergence(status string, waited time.Duration) {
	m.convergenceWait.WithLabelValues(status).Observe(waited.Seconds())
}

// SetThrottleEntries sets the tracked-names gauge.
func (m *Metrics) SetThrottleEntries(n int) {
	m.throttleEntries.Set(float64(n))
}
