// Package attempt implements the Run Attempt (C4): execute one functional
// step, and on failure, drive the recovery loop against the step's
// FunctionalTaskErrorConfig, honoring retry budget, skip, and
// continue-on-final-fail semantics (§4.3).
package attempt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
	"github.com/cameleer-io/cameleer/internal/cameleer/result"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// Runner executes a single step's Run Attempt against a shared resolver
// (for lazy error-config materialization) and logger.
type Runner struct {
	Resolver *taskconfig.Resolver
	Logger   logging.Logger
}

func NewRunner(resolver *taskconfig.Resolver, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{Resolver: resolver, Logger: logger}
}

// Run executes the algorithm of §4.3 in full: resolve args, regular attempt,
// resolve error config, skip/zero-budget shortcuts, recovery loop, and the
// final continueOnFinalFail decision. The returned error, when non-nil, is
// always a *cerrors.Error of kind AttemptResolveArgs, AttemptResolveErrConf,
// or AttemptFinalFail — the three ways a Run Attempt can fail a job (§7).
func (rn *Runner) Run(ctx context.Context, step taskconfig.ResolvedStep, job taskconfig.JobHandle) (result.Result, error) {
	bag := job.ResolveBag()
	task := job.Task()

	args, err := taskconfig.ResolveArgs(step.Args, bag, task)
	if err != nil {
		return result.Result{}, cerrors.New(cerrors.KindAttemptResolveArgs, step.Name, err, "resolving step args")
	}
	fullArgs := append(append([]any{}, args...), job)

	val, stepErr := invoke(step.Fn, fullArgs, job)
	if stepErr == nil {
		return result.Ok(val), nil
	}

	errConf, err := rn.Resolver.ResolveErrorConfig(step.CanFail, task, bag)
	if err != nil {
		return result.Result{}, cerrors.New(cerrors.KindAttemptResolveErrConf, step.Name, err, "resolving error config")
	}

	if errConf.Skip {
		rn.Logger.Debug("attempt", "step failed, skip=true, continuing with error result", "step", step.Name, "correlationID", job.CorrelationID())
		return result.Err(stepErr), nil
	}

	if errConf.MaxNumFails == 0 {
		return result.Result{}, cerrors.New(cerrors.KindAttemptFinalFail, step.Name, stepErr, "no retry budget")
	}

	recovered, numFails, recErr := rn.recoveryLoop(ctx, errConf, step.Fn, fullArgs, job, step.Name)
	if recErr == nil {
		rn.Logger.Debug("attempt", "recovery succeeded", "step", step.Name, "numSubSequentFails", 0, "correlationID", job.CorrelationID())
		return result.Ok(recovered), nil
	}

	if errConf.ContinueOnFinalFail {
		return result.Err(recErr), nil
	}
	_ = numFails
	return result.Result{}, cerrors.New(cerrors.KindAttemptFinalFail, step.Name, recErr, "recovery exhausted")
}

// recoveryLoop implements step 6 of §4.3 and invariant I6/I7: at most one
// regular-or-recovery invocation outstanding at a time; a firing arriving
// while one is outstanding is dropped; a terminal schedule event arriving
// while an attempt is outstanding is deferred and applied once that attempt
// returns, so it is never lost (§4.3 edge cases).
func (rn *Runner) recoveryLoop(
	ctx context.Context,
	errConf *taskconfig.FunctionalTaskErrorConfig,
	fn taskconfig.StepFn,
	args []any,
	job taskconfig.JobHandle,
	stepName string,
) (any, int, error) {
	sched := errConf.Schedule
	if sched == nil {
		period := time.Duration(rn.Resolver.Defaults.RetryIntervalMillis) * time.Millisecond
		if period <= 0 {
			period = 5 * time.Second
		}
		sched = schedule.NewRetryInterval(period, errConf.MaxNumFails)
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := sched.Subscribe(subCtx)
	defer sched.Stop()

	type outcome struct {
		val any
		err error
	}
	outcomeCh := make(chan outcome, 1)

	var mu sync.Mutex
	busy := false
	var pending *schedule.Event
	numFails := 0

	startAttempt := func() {
		mu.Lock()
		busy = true
		mu.Unlock()
		go func() {
			v, err := invoke(fn, args, job)
			outcomeCh <- outcome{val: v, err: err}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil, numFails, ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil, numFails, fmt.Errorf("recovery schedule closed with no successful retry")
			}
			switch ev.Kind {
			case schedule.EventNext:
				mu.Lock()
				isBusy := busy
				mu.Unlock()
				if isBusy {
					rn.Logger.Debug("attempt", "dropping recovery firing, attempt outstanding", "step", stepName, "correlationID", job.CorrelationID())
					continue
				}
				startAttempt()
			case schedule.EventError, schedule.EventComplete:
				mu.Lock()
				isBusy := busy
				mu.Unlock()
				if isBusy {
					evCopy := ev
					pending = &evCopy
					continue
				}
				if ev.Kind == schedule.EventError {
					return nil, numFails, fmt.Errorf("recovery schedule errored: %w", ev.Err)
				}
				return nil, numFails, fmt.Errorf("recovery schedule completed with no successful retry")
			}

		case oc := <-outcomeCh:
			mu.Lock()
			busy = false
			mu.Unlock()

			if oc.err == nil {
				return oc.val, numFails, nil
			}
			numFails++
			rn.Logger.Debug("attempt", "recovery attempt failed", "step", stepName, "numSubSequentFails", numFails, "correlationID", job.CorrelationID())
			if numFails >= errConf.MaxNumFails {
				return nil, numFails, fmt.Errorf("retry budget of %d exhausted: %w", errConf.MaxNumFails, oc.err)
			}
			if pending != nil {
				pt := pending
				pending = nil
				if pt.Kind == schedule.EventError {
					return nil, numFails, fmt.Errorf("recovery schedule errored: %w", pt.Err)
				}
				return nil, numFails, fmt.Errorf("recovery schedule completed with no successful retry")
			}
		}
	}
}

// invoke runs a step body, converting a panic into an error via the same
// throwable-stringification rule applied to ordinary returned errors (§7),
// so a misbehaving step can never take the engine down with it.
func invoke(fn taskconfig.StepFn, args []any, job taskconfig.JobHandle) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cerrors.AsThrowable(r)
		}
	}()
	return fn(args, job)
}
