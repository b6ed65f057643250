package stats

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cameleer-io/cameleer/internal/cameleer/engine"
)

func newTestManager() *Manager {
	reg := prometheus.NewRegistry()
	m := &Manager{
		reg: reg,
		jobsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "test_jobs_scheduled_total",
		}),
		jobsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_jobs_done_total",
		}, []string{"task"}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_jobs_failed_total",
		}, []string{"task"}),
		jobsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_jobs_running",
		}, []string{"task"}),
	}
	reg.MustRegister(m.jobsScheduled, m.jobsDone, m.jobsFailed, m.jobsRunning)
	return m
}

func TestManager_Consume_TracksPerJobTransitions(t *testing.T) {
	m := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan engine.WorkEvent, 8)
	go m.consume(ctx, events)

	events <- engine.WorkEvent{Kind: engine.WorkScheduled, TaskName: "t"}
	events <- engine.WorkEvent{Kind: engine.WorkRun, TaskName: "t"}
	events <- engine.WorkEvent{Kind: engine.WorkDone, TaskName: "t"}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsScheduled))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsDone.WithLabelValues("t")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.jobsRunning.WithLabelValues("t")))
}

// WorkShutdown carries no task name; it must never be aliased onto the
// per-job WorkDone bookkeeping (no bogus empty-label series).
func TestManager_Consume_ShutdownTouchesNoJobMetric(t *testing.T) {
	m := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan engine.WorkEvent, 4)
	go m.consume(ctx, events)

	events <- engine.WorkEvent{Kind: engine.WorkShutdown}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.jobsDone.WithLabelValues("")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.jobsRunning.WithLabelValues("")))
}
