package coordinator

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics receives counters for every policy decision.
type Metrics interface {
	SetTracked(n int)
	Held()
	HoldFailed()
	Rejected(reason string)
	PresencePublished(status string)
	PresenceFailed()
}

type nopMetrics struct{}

func (nopMetrics) SetTracked(int)           {}
func (nopMetrics) Held()                    {}
func (nopMetrics) HoldFailed()              {}
func (nopMetrics) Rejected(string)          {}
func (nopMetrics) PresencePublished(string) {}
func (nopMetrics) PresenceFailed()          {}

// PrometheusMetrics implements Metrics with Prometheus collectors.
type PrometheusMetrics struct {
	gatherer prometheus.Gatherer

	tracked        prometheus.Gauge
	holds          *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	presence       *prometheus.CounterVec
	presenceErrors prometheus.Counter
}

// NewPrometheusMetrics registers the coordinator collectors on reg. A nil reg
// uses a private registry.
func NewPrometheusMetrics(reg *prometheus.Registry) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &PrometheusMetrics{
		gatherer: reg,

		tracked: f.NewGauge(prometheus.GaugeOpts{
			Name: "callcore_tracked_calls",
			Help: "Number of calls tracked by the coordinator",
		}),

		holds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callcore_peer_holds_total",
				Help: "Total number of peers put on hold by the coordinator",
			},
			[]string{"result"},
		),

		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callcore_busy_rejections_total",
				Help: "Total number of incoming calls rejected as busy",
			},
			[]string{"reason"},
		),

		presence: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callcore_presence_publishes_total",
				Help: "Total number of presence statuses published",
			},
			[]string{"status"},
		),

		presenceErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "callcore_presence_publish_errors_total",
			Help: "Total number of failed presence publishes",
		}),
	}
}

func (m *PrometheusMetrics) SetTracked(n int)  { m.tracked.Set(float64(n)) }
func (m *PrometheusMetrics) Held()             { m.holds.WithLabelValues("ok").Inc() }
func (m *PrometheusMetrics) HoldFailed()       { m.holds.WithLabelValues("failed").Inc() }
func (m *PrometheusMetrics) Rejected(r string) { m.rejections.WithLabelValues(r).Inc() }
func (m *PrometheusMetrics) PresencePublished(status string) {
	m.presence.WithLabelValues(status).Inc()
}
func (m *PrometheusMetrics) PresenceFailed() { m.presenceErrors.Inc() }

// Handler serves the collectors in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
