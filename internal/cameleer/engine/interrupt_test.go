package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

func TestInterruptJob_UnknownJobFails(t *testing.T) {
	e := newTestEngine(t, []QueueSpec{{Name: "p1", Kind: queue.KindParallel, Parallelism: 2, Default: true}})
	err := e.InterruptJob(999)
	require.Error(t, err)
}

// A task with an interrupt window never submits its job if InterruptJob is
// called before the window elapses.
func TestInterruptJob_AbortsSubmissionWithinWindow(t *testing.T) {
	e := newTestEngine(t, []QueueSpec{{Name: "p1", Kind: queue.KindParallel, Parallelism: 2, Default: true}})

	manual := schedule.NewManual()
	ran := false
	cfg := &taskconfig.TaskConfig{
		Name:                 "interruptible",
		Type:                 "base",
		Enabled:              true,
		Schedule:             manual,
		InterruptTimeoutSecs: taskconfig.Val(2.0),
		Tasks: taskconfig.Val([]taskconfig.StepDef{
			{
				Name: "s1",
				Fn: func(args []any, jh taskconfig.JobHandle) (any, error) {
					ran = true
					return nil, nil
				},
				CanFail: taskconfig.CanFail{IsBool: true, Bool: true},
			},
		}),
	}
	require.NoError(t, e.LoadTasks([]*taskconfig.TaskConfig{cfg}))
	e.Run()

	tap := e.GetObservableForWork("interruptible")
	manual.Trigger()

	var jobID int64
	select {
	case ev := <-tap:
		require.Equal(t, WorkScheduled, ev.Kind)
		jobID = ev.JobID
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scheduling")
	}

	select {
	case ev := <-tap:
		require.Equal(t, WorkInterruptable, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for interruptable window")
	}

	require.NoError(t, e.InterruptJob(jobID))

	// No run event should ever surface for an interrupted job.
	select {
	case ev := <-tap:
		t.Fatalf("unexpected event after interruption: %v", ev.Kind)
	case <-time.After(200 * time.Millisecond):
	}
	assert.False(t, ran)
}
