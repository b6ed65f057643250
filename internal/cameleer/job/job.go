// Package job implements the Job (C5): ordered serial execution of a task's
// steps over a shared mutable context, collecting per-step results and
// failing fast on a step's final failure (§3, §4.6 step 8).
package job

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cameleer-io/cameleer/internal/cameleer/attempt"
	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
	"github.com/cameleer-io/cameleer/internal/cameleer/result"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

var idSeq int64

// nextID hands out the monotonically increasing job id (§3: "a monotonically
// increasing id").
func nextID() int64 { return atomic.AddInt64(&idSeq, 1) }

// Status is a Job's lifecycle state (§3: created -> queued -> run -> done|failed).
type Status int

const (
	StatusCreated Status = iota
	StatusQueued
	StatusRunning
	StatusDone
	StatusFailed
)

// Job owns a shared context map, the ordered sequence of step results, and
// the list of steps that completed. A *Job implements taskconfig.JobHandle,
// so step bodies receive it directly as their final argument.
type Job struct {
	id         int64
	corrID     uuid.UUID
	task       taskconfig.Task
	resolveBag map[string]any

	mu            sync.Mutex
	ctx           map[string]any
	results       []result.Result
	funcTasksDone []string
	status        Status
	failCause     error
}

// New creates a job from a (Task, ResolvedConfig firing) pair on admission
// (§3). The resolve bag is copied from the firing's ResolvedConfig so step
// bodies see the same pre-resolved values the config resolver computed.
func New(task taskconfig.Task, resolveBag map[string]any) *Job {
	bag := make(map[string]any, len(resolveBag))
	for k, v := range resolveBag {
		bag[k] = v
	}
	return &Job{
		id:         nextID(),
		corrID:     uuid.New(),
		task:       task,
		resolveBag: bag,
		ctx:        make(map[string]any),
		status:     StatusCreated,
	}
}

func (j *Job) ID() int64                  { return j.id }
func (j *Job) CorrelationID() string      { return j.corrID.String() }
func (j *Job) Task() taskconfig.Task      { return j.task }
func (j *Job) ResolveBag() map[string]any { return j.resolveBag }

// Context returns the job's shared mutable map. Mutated only by the job's
// own step bodies, which execute strictly serially, so no lock is needed by
// callers on the hot path; Job itself still guards it since logging/
// inspection code may read it from another goroutine.
func (j *Job) Context() map[string]any {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ctx
}

// Results returns a snapshot of the results recorded so far, in step order
// (I4). Only steps whose Run Attempt returned a Result are present — a step
// that fails finally and propagates is never appended (I5, Q4).
func (j *Job) Results() []result.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]result.Result, len(j.results))
	copy(out, j.results)
	return out
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// FailCause is set iff Status() == StatusFailed.
func (j *Job) FailCause() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failCause
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// Run executes every step serially via runner, appending each step's Result
// in order. It stops at the first step whose Run Attempt raises (AttemptError
// of kind resolveArgs, resolveErrConf, or finalFail-without-continue) — no
// step after it executes (I5) — and marks the job failed, wrapping the
// raising step's cause per §7's JobFail policy, preserving the original
// throw value unmodified (L2).
func (j *Job) Run(ctx context.Context, steps []taskconfig.ResolvedStep, runner *attempt.Runner) error {
	j.setStatus(StatusRunning)

	for i, step := range steps {
		res, err := runner.Run(ctx, step, j)
		if err != nil {
			failErr := cerrors.New(cerrors.KindJobFail, step.Name, err, "step failed finally")
			j.mu.Lock()
			j.status = StatusFailed
			j.failCause = failErr
			j.mu.Unlock()
			return failErr
		}

		j.mu.Lock()
		j.results = append(j.results, res)
		j.funcTasksDone = append(j.funcTasksDone, step.Name)
		j.mu.Unlock()
		_ = i
	}

	j.setStatus(StatusDone)
	return nil
}
