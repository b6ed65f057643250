package engine

import (
	"time"

	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// LoadTasks attaches logger + static context to, and registers the schedule
// for, every enabled task config. The configs arrive already instantiated;
// LoadTasks performs no schema validation. Precondition: no tasks currently
// loaded (§4.6). Duplicate names abort the whole load; disabled tasks are
// skipped, and a task whose schedule cannot be registered is logged and
// skipped, leaving the rest of the batch loaded (§7 policy).
func (e *Engine) LoadTasks(configs []*taskconfig.TaskConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tasks) != 0 {
		return cerrors.New(cerrors.KindConfigInvalid, "", nil, "loadTasks called while tasks are already loaded")
	}

	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if seen[cfg.Name] {
			return cerrors.New(cerrors.KindConfigInvalid, cfg.Name, nil, "duplicate task name") // I1
		}
		seen[cfg.Name] = true
	}

	loaded := make(map[string]*loadedTask, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		lt := &loadedTask{
			cfg:      cfg,
			typeName: cfg.Type,
			logger:   e.GetLogger(cfg.Type),
			ctx:      e.store.For(cfg.Type + "_" + cfg.Name),
			sched:    cfg.Schedule,
		}
		if err := e.fanin.AddSchedule(e.ctx, cfg.Name, cfg.Schedule); err != nil {
			e.logger.Error("engine", "failed to register schedule, skipping task", "task", cfg.Name, "err", err.Error())
			continue
		}
		loaded[cfg.Name] = lt
	}

	e.tasks = loaded
	return nil
}

func (e *Engine) snapshotQueues() []queue.Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]queue.Queue{}, e.queues...)
}

// Run resumes every queue and (re)arms the keep-alive timer. Idempotent.
func (e *Engine) Run() {
	for _, q := range e.snapshotQueues() {
		q.Resume()
	}
	e.armKeepAlive()
}

// RunAsync resumes the engine and blocks until Shutdown completes.
func (e *Engine) RunAsync() {
	e.Run()
	<-e.doneCh
}

// Pause pauses every queue; running jobs continue to completion. Idempotent.
func (e *Engine) Pause() {
	for _, q := range e.snapshotQueues() {
		q.Pause()
	}
}

// PauseWait pauses and waits for every queue to report idle.
func (e *Engine) PauseWait() {
	e.Pause()
	for {
		allIdle := true
		for _, q := range e.snapshotQueues() {
			if !q.IsIdle() {
				allIdle = false
				break
			}
		}
		if allIdle {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// ClearTasks clears queue backlogs and tears down every task's schedule.
// Safe to call while queues are paused.
func (e *Engine) ClearTasks() {
	e.mu.Lock()
	for _, q := range e.queues {
		q.ClearBacklog()
	}
	names := make([]string, 0, len(e.tasks))
	for name := range e.tasks {
		names = append(names, name)
	}
	e.tasks = make(map[string]*loadedTask)
	e.mu.Unlock()

	for _, name := range names {
		e.fanin.RemoveSchedule(name)
	}
}

// Shutdown performs pauseWait, clearTasks, teardown of queues and the
// fan-in, uninstalls global handlers, persists static context, and signals
// completion to any RunAsync caller. Single-shot.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.PauseWait()
		e.ClearTasks()
		e.stopKeepAlive()

		for _, q := range e.snapshotQueues() {
			q.Close()
		}
		e.fanin.Close()
		e.host.Uninstall()
		e.store.Shutdown()
		e.cancel()
		close(e.doneCh)
		e.publishWork(WorkEvent{Kind: WorkShutdown})
	})
}
