package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameleer-io/cameleer/internal/cameleer/job"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

func costPtr(v float64) *float64 { return &v }

// §4.4: a cost queue admits a job iff cost <= capabilities.
func TestCost_Admits_CapabilitiesRule(t *testing.T) {
	ctx := context.Background()
	c := NewCost(ctx, "c", 2.5, false, newQueueRunner(), nil)
	defer c.Close()

	assert.True(t, c.Admits(costPtr(2.5)))
	assert.True(t, c.Admits(costPtr(1.0)))
	assert.False(t, c.Admits(costPtr(2.6)))
	assert.False(t, c.Admits(nil), "no cost and no exclusive allowance never admits")
}

// AllowExclusiveJobs admits unconditionally when nothing is currently running.
func TestCost_Admits_ExclusiveWhenIdle(t *testing.T) {
	ctx := context.Background()
	c := NewCost(ctx, "c", 0.5, true, newQueueRunner(), nil)
	defer c.Close()

	assert.True(t, c.Admits(costPtr(99)))
	assert.True(t, c.Admits(nil))
}

// Only one job runs at a time on a cost queue; a second admissible job stays
// backlogged until the first completes.
func TestCost_OneAtATime(t *testing.T) {
	ctx := context.Background()
	c := NewCost(ctx, "c", 5.0, false, newQueueRunner(), nil)
	defer c.Close()

	release := make(chan struct{})
	j1 := job.New(queueTestTask{}, nil)
	j2 := job.New(queueTestTask{}, nil)
	require.NoError(t, c.AddJob(ctx, Submission{Job: j1, Steps: blockingStep(release), Cost: costPtr(1)}))
	require.NoError(t, c.AddJob(ctx, Submission{Job: j2, Steps: blockingStep(release), Cost: costPtr(1)}))
	c.Resume()

	waitForEvent(t, c.Events(), EventRun, time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.CurrentJobs(), 1)
	assert.Len(t, c.Backlog(), 1)

	close(release)
	waitForEvent(t, c.Events(), EventDone, time.Second)
	waitForEvent(t, c.Events(), EventRun, time.Second)
	waitForEvent(t, c.Events(), EventDone, time.Second)
}

// A job whose cost exceeds capabilities stays backlogged rather than running
// over budget, even once the queue is resumed.
func TestCost_DrainSkipsInadmissibleHeadOfLine(t *testing.T) {
	ctx := context.Background()
	c := NewCost(ctx, "c", 1.0, false, newQueueRunner(), nil)
	defer c.Close()

	j := job.New(queueTestTask{}, nil)
	require.NoError(t, c.AddJob(ctx, Submission{Job: j, Steps: blockingStep(make(chan struct{})), Cost: costPtr(10)}))
	c.Resume()

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, c.Backlog(), 1)
	assert.Empty(t, c.CurrentJobs())
}
