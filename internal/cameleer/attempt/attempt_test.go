package attempt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
	"github.com/cameleer-io/cameleer/internal/cameleer/result"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

type fakeTask struct{ name, typ string }

func (f fakeTask) Name() string     { return f.name }
func (f fakeTask) TypeName() string { return f.typ }

type fakeJob struct {
	task taskconfig.Task
	ctx  map[string]any
	bag  map[string]any
}

func newFakeJob() *fakeJob {
	return &fakeJob{task: fakeTask{name: "t", typ: "base"}, ctx: map[string]any{}, bag: map[string]any{}}
}

func (f *fakeJob) ID() int64                  { return 1 }
func (f *fakeJob) CorrelationID() string      { return "test-correlation" }
func (f *fakeJob) Task() taskconfig.Task      { return f.task }
func (f *fakeJob) Context() map[string]any    { return f.ctx }
func (f *fakeJob) ResolveBag() map[string]any { return f.bag }

func newRunner() *Runner {
	return NewRunner(taskconfig.NewResolver(taskconfig.DefaultCameleerDefaults()), logging.NewNop())
}

// Scenario 2: skip-on-error continuation.
func TestRun_SkipOnError(t *testing.T) {
	rn := newRunner()
	step := taskconfig.ResolvedStep{
		Name: "s1",
		Fn: func(args []any, job taskconfig.JobHandle) (any, error) {
			return nil, errors.New("42")
		},
		CanFail: taskconfig.CanFail{
			Def: &taskconfig.FunctionalTaskErrorConfigDef{Skip: taskconfig.Val(true)},
		},
	}

	res, err := rn.Run(context.Background(), step, newFakeJob())
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "42", res.ErrText)
}

// Scenario 3: hard-fail step (canFail = false).
func TestRun_HardFail(t *testing.T) {
	rn := newRunner()
	step := taskconfig.ResolvedStep{
		Name: "s1",
		Fn: func(args []any, job taskconfig.JobHandle) (any, error) {
			return nil, errors.New("42")
		},
		CanFail: taskconfig.CanFail{IsBool: true, Bool: false},
	}

	_, err := rn.Run(context.Background(), step, newFakeJob())
	require.Error(t, err)
	assert.ErrorContains(t, err, "42")
}

// Scenario 4: recovery succeeds on the first recovery firing.
func TestRun_RecoverySucceeds(t *testing.T) {
	rn := newRunner()
	manual := schedule.NewManual()

	var calls int64
	step := taskconfig.ResolvedStep{
		Name: "s1",
		Fn: func(args []any, job taskconfig.JobHandle) (any, error) {
			n := atomic.AddInt64(&calls, 1)
			if n == 1 {
				return nil, errors.New("first attempt fails")
			}
			return "recovered", nil
		},
		CanFail: taskconfig.CanFail{
			Def: &taskconfig.FunctionalTaskErrorConfigDef{
				Schedule:    taskconfig.Val(schedule.Schedule(manual)),
				MaxNumFails: taskconfig.Val(2.0),
			},
		},
	}

	type outcome struct {
		res result.Result
		err error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		res, err := rn.Run(context.Background(), step, newFakeJob())
		outcomeCh <- outcome{res, err}
	}()

	// Give the regular attempt time to fail and the recovery loop time to
	// subscribe before firing the recovery schedule once.
	time.Sleep(30 * time.Millisecond)
	manual.Trigger()

	select {
	case out := <-outcomeCh:
		require.NoError(t, out.err)
		assert.False(t, out.res.IsError)
		assert.Equal(t, "recovered", out.res.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for recovery to succeed")
	}
}

// Scenario 5: retry budget exhausted, continueOnFinalFail = true.
func TestRun_BudgetExhaustedContinueOnFinalFail(t *testing.T) {
	rn := newRunner()
	manual := schedule.NewManual()

	step := taskconfig.ResolvedStep{
		Name: "s1",
		Fn: func(args []any, job taskconfig.JobHandle) (any, error) {
			return nil, errors.New("always fails")
		},
		CanFail: taskconfig.CanFail{
			Def: &taskconfig.FunctionalTaskErrorConfigDef{
				Schedule:            taskconfig.Val(schedule.Schedule(manual)),
				MaxNumFails:         taskconfig.Val(2.0),
				ContinueOnFinalFail: taskconfig.Val(true),
			},
		},
	}

	type outcome struct {
		res result.Result
		err error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		res, err := rn.Run(context.Background(), step, newFakeJob())
		outcomeCh <- outcome{res, err}
	}()

	time.Sleep(30 * time.Millisecond)
	manual.Trigger()
	time.Sleep(30 * time.Millisecond)
	manual.Trigger()

	select {
	case out := <-outcomeCh:
		require.NoError(t, out.err)
		assert.True(t, out.res.IsError)
		assert.ErrorContains(t, out.res.Err, "exhausted")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for recovery budget to exhaust")
	}
}

// A step whose canFail config names no recovery schedule falls back to the
// defaults-derived retry interval (§4.3) rather than one supplied by the
// test; this exercises recoveryLoop's nil-schedule branch directly.
func TestRun_DefaultRetryScheduleFiresOnItsOwn(t *testing.T) {
	defaults := taskconfig.DefaultCameleerDefaults()
	defaults.RetryIntervalMillis = 15
	rn := NewRunner(taskconfig.NewResolver(defaults), logging.NewNop())

	var calls int64
	step := taskconfig.ResolvedStep{
		Name: "s1",
		Fn: func(args []any, job taskconfig.JobHandle) (any, error) {
			n := atomic.AddInt64(&calls, 1)
			if n == 1 {
				return nil, errors.New("first attempt fails")
			}
			return "recovered", nil
		},
		CanFail: taskconfig.CanFail{
			Def: &taskconfig.FunctionalTaskErrorConfigDef{
				MaxNumFails: taskconfig.Val(2.0),
			},
		},
	}

	res, err := rn.Run(context.Background(), step, newFakeJob())
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "recovered", res.Value)
}
