// Package metrics exposes task run statistics in the Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assetpipe"

// Task outcomes used as the "state" label.
const (
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Recorder counts task runs and their durations. It satisfies the task
// graph's observer interface so it can be attached to every run.
type Recorder struct {
	registry *prometheus.Registry
	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  prometheus.Gauge
	reloads  *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry, so several
// pipelines in one process (or one test binary) never collide.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_started_total",
			Help:      "Number of task runs started.",
		}, []string{"task"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_finished_total",
			Help:      "Number of task runs finished, by final state.",
		}, []string{"task", "state"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task run duration.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Number of tasks currently running.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_messages_total",
			Help:      "Live reload messages broadcast to browsers, by type.",
		}, []string{"type"}),
	}

	r.registry.MustRegister(
		r.started,
		r.finished,
		r.duration,
		r.running,
		r.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// TaskStarted records the start of a task run.
func (r *Recorder) TaskStarted(name string) {
	r.started.WithLabelValues(name).Inc()
	r.running.Inc()
}

// TaskFinished records the end of a task run.
func (r *Recorder) TaskFinished(name string, d time.Duration, err error) {
	state := StateSucceeded
	if err != nil {
		state = StateFailed
	}
	r.running.Dec()
	r.finished.WithLabelValues(name, state).Inc()
	r.duration.WithLabelValues(name).Observe(d.Seconds())
}

// Reload records one live reload broadcast ("reload" or "inject").
func (r *Recorder) Reload(kind string) {
	r.reloads.WithLabelValues(kind).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
