// Package taskprom exports task registry activity as Prometheus metrics.
//
// It is wired through registry hooks, so package task itself does not depend on
// Prometheus:
//
//	c := taskprom.New(prometheus.DefaultRegisterer)
//	r := task.NewRegistry(c.RegistryOptions()...)
//	taskprom.NewTaskCountGauge(prometheus.DefaultRegisterer, r)
package taskprom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/evan-idocoding/zsup/rt/task"
)

const namespace = "zsup"

// Collector turns run hooks into per-task metrics. Tasks are labeled by name;
// with duplicate names the series are shared.
type Collector struct {
	Runs     *prometheus.CounterVec
	Running  *prometheus.GaugeVec
	Duration *prometheus.HistogramVec
}

// New registers the collector's metrics with reg. A nil reg means
// prometheus.DefaultRegisterer. It panics if the metrics are already registered.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "runs_total",
				Help:      "Finished task executions by outcome.",
			},
			[]string{"task", "outcome"},
		),
		Running: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "running",
				Help:      "Live task executions.",
			},
			[]string{"task"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "run_duration_seconds",
				Help:      "Task execution duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.4min
			},
			[]string{"task"},
		),
	}
}

// OnRunStart is a task.WithOnRunStart hook.
func (c *Collector) OnRunStart(info task.RunStartInfo) {
	c.Running.WithLabelValues(info.Name).Inc()
}

// OnRunFinish is a task.WithOnRunFinish hook.
func (c *Collector) OnRunFinish(info task.RunFinishInfo) {
	c.Running.WithLabelValues(info.Name).Dec()
	c.Runs.WithLabelValues(info.Name, info.Outcome.String()).Inc()
	c.Duration.WithLabelValues(info.Name).Observe(info.Duration.Seconds())
}

// RegistryOptions returns the hooks to pass to task.NewRegistry.
func (c *Collector) RegistryOptions() []task.RegistryOption {
	return []task.RegistryOption{
		task.WithOnRunStart(c.OnRunStart),
		task.WithOnRunFinish(c.OnRunFinish),
	}
}

// NewTaskCountGauge registers a gauge reporting r.TaskCount() at scrape time.
func NewTaskCountGauge(reg prometheus.Registerer, r *task.Registry) prometheus.GaugeFunc {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "registered",
			Help:      "Registered tasks, running or not.",
		},
		func() float64 { return float64(r.TaskCount()) },
	)
}
