package crud

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec   // Requests by operation and outcome
	failures *prometheus.CounterVec   // Modeled failures by operation and kind
	duration *prometheus.HistogramVec // Pipeline duration by operation
}

// NewMetrics creates the pipeline metrics and registers them with reg. A nil
// registerer disables metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pantry",
			Subsystem: "crud",
			Name:      "requests_total",
			Help:      "Total requests handled, by operation and outcome",
		}, []string{"operation", "outcome"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pantry",
			Subsystem: "crud",
			Name:      "failures_total",
			Help:      "Total modeled failures, by operation and error kind",
		}, []string{"operation", "kind"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pantry",
			Subsystem: "crud",
			Name:      "request_duration_seconds",
			Help:      "Time spent running a request pipeline",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.failures, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Outcomes recorded on requests_total.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeError   = "error"
)

func (m *Metrics) observe(op, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) failed(op, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op, kind).Inc()
}
