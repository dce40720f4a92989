package pass

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "graphir"
	metricsSubsystem = "pass"
)

// Metrics holds the prometheus metrics of pass runs. A nil *Metrics is valid and records nothing.
type Metrics struct {
	passDuration *prometheus.HistogramVec
	passChanges  *prometheus.CounterVec
	runs         *prometheus.CounterVec
}

// NewMetrics creates the pass metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "duration_seconds",
				Help:      "Time running a pass over a module, in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"pass", "result"}, // "success" or "error"
		),
		passChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "changes_total",
				Help:      "Number of pass executions that changed the module.",
			},
			[]string{"pass"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "manager_runs_total",
				Help:      "Number of pass manager runs, by final status.",
			},
			[]string{"status"},
		),
	}
	for _, collector := range []prometheus.Collector{m.passDuration, m.passChanges, m.runs} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObservePass records the execution of one pass.
func (m *Metrics) ObservePass(name string, elapsed time.Duration, changed bool, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.passDuration.WithLabelValues(name, result).Observe(elapsed.Seconds())
	if changed {
		m.passChanges.WithLabelValues(name).Inc()
	}
}

// ObserveRun records the final status of a Manager run.
func (m *Metrics) ObserveRun(status Status) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status.String()).Inc()
}
