package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameleer-io/cameleer/internal/cameleer/attempt"
	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

type fakeTask struct{ name, typ string }

func (f fakeTask) Name() string     { return f.name }
func (f fakeTask) TypeName() string { return f.typ }

func newRunner() *attempt.Runner {
	return attempt.NewRunner(taskconfig.NewResolver(taskconfig.DefaultCameleerDefaults()), logging.NewNop())
}

// Scenario 1: happy two-step job.
func TestJob_Run_HappyTwoStep(t *testing.T) {
	steps := []taskconfig.ResolvedStep{
		{
			Name: "a",
			Fn: func(args []any, jh taskconfig.JobHandle) (any, error) {
				jh.Context()["value"] = 41
				return 41, nil
			},
			CanFail: taskconfig.CanFail{IsBool: true, Bool: true},
		},
		{
			Name: "b",
			Fn: func(args []any, jh taskconfig.JobHandle) (any, error) {
				v := jh.Context()["value"].(int)
				return v + 1, nil
			},
			CanFail: taskconfig.CanFail{IsBool: true, Bool: true},
		},
	}

	j := New(fakeTask{name: "T", typ: "base"}, nil)
	err := j.Run(context.Background(), steps, newRunner())
	require.NoError(t, err)

	results := j.Results()
	require.Len(t, results, 2)
	assert.Equal(t, 41, results[0].Value)
	assert.Equal(t, 42, results[1].Value)
	assert.Equal(t, StatusDone, j.Status())
	assert.NotEmpty(t, j.CorrelationID())
}

// Scenario 3, seen from the Job side: a hard-fail step stops the pipeline
// (I5) and the failing step is never appended to results (Q4).
func TestJob_Run_HardFailStopsPipeline(t *testing.T) {
	var secondRan bool
	steps := []taskconfig.ResolvedStep{
		{
			Name: "a",
			Fn: func(args []any, jh taskconfig.JobHandle) (any, error) {
				return nil, errors.New("42")
			},
			CanFail: taskconfig.CanFail{IsBool: true, Bool: false},
		},
		{
			Name: "b",
			Fn: func(args []any, jh taskconfig.JobHandle) (any, error) {
				secondRan = true
				return nil, nil
			},
			CanFail: taskconfig.CanFail{IsBool: true, Bool: true},
		},
	}

	j := New(fakeTask{name: "T", typ: "base"}, nil)
	err := j.Run(context.Background(), steps, newRunner())
	require.Error(t, err)
	assert.ErrorContains(t, err, "42")
	assert.False(t, secondRan, "step after a final failure must not execute (I5)")
	assert.Empty(t, j.Results(), "a job that fails finally appends no results (Q4)")
	assert.Equal(t, StatusFailed, j.Status())
	assert.Equal(t, err, j.FailCause())
}

func TestJob_ResolveBagIsCopiedNotShared(t *testing.T) {
	bag := map[string]any{"k": "v"}
	j := New(fakeTask{name: "T", typ: "base"}, bag)
	bag["k"] = "mutated"
	assert.Equal(t, "v", j.ResolveBag()["k"])
}
