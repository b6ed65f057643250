// Package queue implements the Queue Wrapper (C6): it adapts the underlying
// queue primitive (a parallel worker pool, or a single cost-admitting
// worker) to the engine's needs — initial-paused state, and observable
// run/done/failed/idle event streams (§4.4).
package queue

import (
	"context"
	"sync"

	"github.com/cameleer-io/cameleer/internal/cameleer/attempt"
	"github.com/cameleer-io/cameleer/internal/cameleer/job"
	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// Kind distinguishes the two queue primitives the engine can select between
// (§4.4).
type Kind string

const (
	KindParallel Kind = "parallel"
	KindCost     Kind = "cost"
)

// EventKind is one of the four mutually exclusive terminal/lifecycle
// notifications a queue emits (§4.4).
type EventKind int

const (
	EventRun EventKind = iota
	EventDone
	EventFailed
	EventIdle
)

// Event is one queue notification, always naming the job it concerns except
// for EventIdle.
type Event struct {
	Kind  EventKind
	JobID int64
	Err   error
}

// Submission bundles everything a queue needs to execute one admitted job.
type Submission struct {
	Job   *job.Job
	Steps []taskconfig.ResolvedStep
	Cost  *float64
}

// Queue is the contract the engine's admission algorithm and lifecycle
// operations (run/pause/pauseWait/clearTasks/shutdown) drive every queue
// kind through uniformly (§4.4, §4.6).
type Queue interface {
	Name() string
	Kind() Kind

	Resume()
	Pause()
	AddJob(ctx context.Context, sub Submission) error
	ClearBacklog()

	IsIdle() bool
	IsWorking() bool
	CurrentJobs() []int64
	Backlog() []int64
	Load() float64

	// Capabilities and AllowExclusive are meaningful for cost queues only;
	// a parallel queue reports them as zero-value / false.
	Capabilities() float64
	AllowExclusive() bool

	Events() <-chan Event
	Close()
}

// base holds the state and machinery shared by both queue kinds: the
// dispatcher loop, backlog, current-jobs set, pause gate, and event fan-out.
type base struct {
	name   string
	runner *attempt.Runner
	logger logging.Logger

	mu          sync.Mutex
	paused      bool
	backlog     []Submission
	current     map[int64]bool
	currentSubs map[int64]Submission
	resumeCh    chan struct{}

	events chan Event
	wg     sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

func newBase(name string, runner *attempt.Runner, logger logging.Logger) *base {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &base{
		name:     name,
		runner:   runner,
		logger:   logger,
		paused:      true, // queues start paused (§4.4)
		current:     make(map[int64]bool),
		currentSubs: make(map[int64]Submission),
		resumeCh:    make(chan struct{}, 1),
		events:   make(chan Event, 32),
		done:     make(chan struct{}),
	}
}

func (b *base) Name() string          { return b.name }
func (b *base) Events() <-chan Event  { return b.events }

func (b *base) Resume() {
	b.mu.Lock()
	wasPaused := b.paused
	b.paused = false
	b.mu.Unlock()
	if wasPaused {
		b.wake()
	}
}

func (b *base) Pause() {
	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
}

func (b *base) isPaused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

func (b *base) wake() {
	select {
	case b.resumeCh <- struct{}{}:
	default:
	}
}

func (b *base) enqueue(sub Submission) {
	b.mu.Lock()
	b.backlog = append(b.backlog, sub)
	b.mu.Unlock()
	b.wake()
}

func (b *base) ClearBacklog() {
	b.mu.Lock()
	b.backlog = nil
	b.mu.Unlock()
}

func (b *base) Backlog() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int64, 0, len(b.backlog))
	for _, s := range b.backlog {
		out = append(out, s.Job.ID())
	}
	return out
}

func (b *base) CurrentJobs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int64, 0, len(b.current))
	for id := range b.current {
		out = append(out, id)
	}
	return out
}

func (b *base) IsWorking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.current) > 0
}

func (b *base) IsIdle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.current) == 0 && len(b.backlog) == 0
}

func (b *base) emit(ev Event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
	if b.IsIdle() {
		select {
		case b.events <- Event{Kind: EventIdle}:
		case <-b.done:
		}
	}
}

func (b *base) markStart(id int64) {
	b.mu.Lock()
	b.current[id] = true
	b.mu.Unlock()
	b.emitRunOnly(id)
}

func (b *base) emitRunOnly(id int64) {
	select {
	case b.events <- Event{Kind: EventRun, JobID: id}:
	case <-b.done:
	}
}

func (b *base) markDone(id int64, failErr error) {
	b.mu.Lock()
	delete(b.current, id)
	b.mu.Unlock()
	if failErr != nil {
		b.emit(Event{Kind: EventFailed, JobID: id, Err: failErr})
		return
	}
	b.emit(Event{Kind: EventDone, JobID: id})
}

func (b *base) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *base) execute(ctx context.Context, sub Submission) {
	b.markStart(sub.Job.ID())
	err := sub.Job.Run(ctx, sub.Steps, b.runner)
	b.markDone(sub.Job.ID(), err)
}
