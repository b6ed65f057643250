package engine

import (
	"time"

	"github.com/cameleer-io/cameleer/internal/cameleer/fanin"
	"github.com/cameleer-io/cameleer/internal/cameleer/job"
	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
)

// dispatchLoop drains the Scheduler Fan-in's merged firing stream and
// processes each one per §4.6 steps 1-8. The engine is logically
// single-threaded at this level (§5): firings for every task are handled
// one at a time, in arrival order.
func (e *Engine) dispatchLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case firing, ok := <-e.fanin.Out():
			if !ok {
				return
			}
			e.processFiring(firing)
		}
	}
}

func (e *Engine) processFiring(f fanin.Firing) {
	// Step 1: calendar-event ends are not task firings (§4.5).
	if f.Event.IsEnd {
		return
	}

	e.mu.Lock()
	task, ok := e.tasks[f.TaskName]
	e.mu.Unlock()
	if !ok {
		return
	}

	switch f.Event.Kind {
	case schedule.EventError:
		task.logger.Error("engine", "task schedule errored", "task", f.TaskName, "err", errString(f.Event.Err))
		return
	case schedule.EventComplete:
		task.logger.Info("engine", "task schedule completed, no further firings", "task", f.TaskName)
		return
	}

	// Step 2: resolve config.
	cfg, err := e.resolver.Resolve(task.cfg, task)
	if err != nil {
		task.logger.Error("engine", "config resolution failed, aborting firing", "task", f.TaskName, "err", err.Error())
		return
	}

	// Step 3: per-firing skip.
	if cfg.Skip {
		task.logger.Debug("engine", "task skipped for this firing", "task", f.TaskName)
		return
	}

	// Step 4: no-overlap (I3).
	if !cfg.AllowMultiple && task.isActive() {
		task.logger.Debug("engine", "already enqueued or running, discarding firing", "task", f.TaskName)
		return
	}

	// Step 5: build the job and, if configured, open the interruption window.
	j := job.New(task, cfg.ResolveBag)
	task.incActive()
	e.publishWork(WorkEvent{Kind: WorkScheduled, TaskName: f.TaskName, JobID: j.ID()})

	if cfg.InterruptTimeoutSecs != nil {
		if e.awaitInterruptionOrAbort(task, j, *cfg.InterruptTimeoutSecs) {
			task.decActive()
			return
		}
	}

	// Step 6: select queue.
	q, err := e.selectQueue(cfg)
	if err != nil {
		task.logger.Error("engine", "queue selection failed, aborting firing", "task", f.TaskName, "err", err.Error())
		task.decActive()
		return
	}

	// Step 7: register job metadata so drainQueueEvents can republish and
	// decrement I3's active count on the job's terminal event.
	e.jobsMu.Lock()
	e.jobs[j.ID()] = &jobMeta{taskName: f.TaskName}
	e.jobsMu.Unlock()

	// Step 8: submit.
	if err := q.AddJob(e.ctx, queue.Submission{Job: j, Steps: cfg.Steps, Cost: cfg.Cost}); err != nil {
		task.logger.Error("engine", "job submission failed", "task", f.TaskName, "err", err.Error())
		task.decActive()
		e.jobsMu.Lock()
		delete(e.jobs, j.ID())
		e.jobsMu.Unlock()
	}
}

// awaitInterruptionOrAbort implements §4.6 step 5: publish an interruptable
// event with the job, then race an external InterruptJob call against a
// timer of interruptSecs seconds. Returns true if the job was interrupted
// (and must not be submitted).
func (e *Engine) awaitInterruptionOrAbort(task *loadedTask, j *job.Job, interruptSecs float64) bool {
	sig := make(chan struct{})
	e.interruptMu.Lock()
	e.interruptible[j.ID()] = sig
	e.interruptMu.Unlock()
	defer func() {
		e.interruptMu.Lock()
		delete(e.interruptible, j.ID())
		e.interruptMu.Unlock()
	}()

	e.publishWork(WorkEvent{Kind: WorkInterruptable, TaskName: task.Name(), JobID: j.ID()})

	timer := time.NewTimer(time.Duration(interruptSecs * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-sig:
		task.logger.Info("engine", "job interrupted before submission", "task", task.Name(), "jobId", j.ID())
		return true
	case <-timer.C:
		return false
	case <-e.ctx.Done():
		return true
	}
}

// drainQueueEvents republishes one queue's run/done/failed events as work
// events and maintains I3's active-job bookkeeping.
func (e *Engine) drainQueueEvents(q queue.Queue) {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev, ok := <-q.Events():
			if !ok {
				return
			}
			e.jobsMu.Lock()
			meta, known := e.jobs[ev.JobID]
			e.jobsMu.Unlock()
			if !known && ev.Kind != queue.EventIdle {
				continue
			}

			switch ev.Kind {
			case queue.EventRun:
				e.publishWork(WorkEvent{Kind: WorkRun, TaskName: meta.taskName, JobID: ev.JobID})
			case queue.EventDone:
				e.finishJob(meta, ev.JobID)
				e.publishWork(WorkEvent{Kind: WorkDone, TaskName: meta.taskName, JobID: ev.JobID})
			case queue.EventFailed:
				e.finishJob(meta, ev.JobID)
				e.publishWork(WorkEvent{Kind: WorkFailed, TaskName: meta.taskName, JobID: ev.JobID, Err: ev.Err})
			}
		}
	}
}

func (e *Engine) finishJob(meta *jobMeta, jobID int64) {
	e.mu.Lock()
	task, ok := e.tasks[meta.taskName]
	e.mu.Unlock()
	if ok {
		task.decActive()
	}
	e.jobsMu.Lock()
	delete(e.jobs, jobID)
	e.jobsMu.Unlock()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
