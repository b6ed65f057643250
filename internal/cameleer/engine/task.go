package engine

import (
	"sync"

	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
	"github.com/cameleer-io/cameleer/internal/cameleer/statectx"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// loadedTask wraps one loaded TaskConfig with the runtime state the engine
// needs to enforce I3 (no-overlap), plus the logger and static context
// attached to it at load (no setter at all). Step bodies see the task only
// through taskconfig.Task (Name and TypeName); neither the logger nor the
// static context is reachable from a step body.
type loadedTask struct {
	cfg      *taskconfig.TaskConfig
	typeName string
	logger   logging.Logger
	ctx      *statectx.TaskContext
	sched    schedule.Schedule

	mu     sync.Mutex
	active int // jobs currently queued or running for this task
}

func (t *loadedTask) Name() string     { return t.cfg.Name }
func (t *loadedTask) TypeName() string { return t.typeName }

func (t *loadedTask) incActive() {
	t.mu.Lock()
	t.active++
	t.mu.Unlock()
}

func (t *loadedTask) decActive() {
	t.mu.Lock()
	if t.active > 0 {
		t.active--
	}
	t.mu.Unlock()
}

func (t *loadedTask) isActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active > 0
}

var _ taskconfig.Task = (*loadedTask)(nil)
