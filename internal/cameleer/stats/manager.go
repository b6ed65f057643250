// Package stats is an example Configurable Class Registry manager plugin
// (C11): it subscribes to the engine's work event stream and exposes job
// metrics over Prometheus (§1: "the manager plug-in surface
// (user-facing stats/UIs)" is an external collaborator the core only needs
// a registration contract for).
package stats

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cameleer-io/cameleer/internal/cameleer/engine"
	"github.com/cameleer-io/cameleer/internal/cameleer/registry"
)

// Manager is constructed from the engine alone; NewManagerFactory adapts it
// to the Configurable Class Registry's factory shape and ignores the raw
// config value.
type Manager struct {
	reg *prometheus.Registry

	jobsScheduled prometheus.Counter
	jobsDone      *prometheus.CounterVec
	jobsFailed    *prometheus.CounterVec
	jobsRunning   *prometheus.GaugeVec

	cancel context.CancelFunc
}

// NewManager wires a fresh Manager against e's work event stream.
func NewManager(e *engine.Engine) *Manager {
	reg := prometheus.NewRegistry()
	m := &Manager{
		reg: reg,
		jobsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cameleer_jobs_scheduled_total",
			Help: "Total number of jobs scheduled for submission.",
		}),
		jobsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cameleer_jobs_done_total",
			Help: "Total number of jobs that completed successfully, by task.",
		}, []string{"task"}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cameleer_jobs_failed_total",
			Help: "Total number of jobs that failed, by task.",
		}, []string{"task"}),
		jobsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cameleer_jobs_running",
			Help: "Number of jobs currently running, by task.",
		}, []string{"task"}),
	}
	reg.MustRegister(m.jobsScheduled, m.jobsDone, m.jobsFailed, m.jobsRunning)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.consume(ctx, e.WorkEvents())
	return m
}

// NewManagerFactory adapts NewManager to registry.Factory for registration
// under registry.RootManager (§4.7: "construct with (engine, config) for
// controls/managers").
func NewManagerFactory(e *engine.Engine) registry.Factory {
	return func(raw any) (any, error) {
		return NewManager(e), nil
	}
}

func (m *Manager) consume(ctx context.Context, events <-chan engine.WorkEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case engine.WorkScheduled:
				m.jobsScheduled.Inc()
			case engine.WorkRun:
				m.jobsRunning.WithLabelValues(ev.TaskName).Inc()
			case engine.WorkDone:
				m.jobsRunning.WithLabelValues(ev.TaskName).Dec()
				m.jobsDone.WithLabelValues(ev.TaskName).Inc()
			case engine.WorkFailed:
				m.jobsRunning.WithLabelValues(ev.TaskName).Dec()
				m.jobsFailed.WithLabelValues(ev.TaskName).Inc()
			case engine.WorkShutdown:
				// Engine teardown, not a job transition: no task label to
				// attribute it to, so no counter/gauge is touched.
			}
		}
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Close stops consuming work events.
func (m *Manager) Close() {
	m.cancel()
}
