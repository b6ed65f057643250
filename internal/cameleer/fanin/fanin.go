// Package fanin implements the Scheduler Fan-in (C7): it takes any number of
// per-task schedules of mixed kinds (calendar, interval, manual) and merges
// their firings onto a single stream the engine drains from one place,
// tagging each firing with the task name that produced it.
package fanin

import (
	"context"
	"fmt"
	"sync"

	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
)

// Firing is one schedule.Event attributed to the task that owns the
// schedule which produced it.
type Firing struct {
	TaskName string
	Event    schedule.Event
}

// FanIn is safe for concurrent AddSchedule/RemoveSchedule/Close calls; the
// merged output channel has exactly one reader (the engine's dispatch loop).
type FanIn struct {
	mu     sync.Mutex
	out    chan Firing
	cancel map[string]context.CancelFunc
	taps   map[string][]chan Firing
	wg     sync.WaitGroup
	closed bool
}

// New builds a FanIn with an unbuffered-by-default merged stream; bufSize
// lets the engine absorb bursts (e.g. several manual triggers firing back to
// back) without a slow first consumer stalling schedule goroutines.
func New(bufSize int) *FanIn {
	if bufSize < 0 {
		bufSize = 0
	}
	return &FanIn{
		out:    make(chan Firing, bufSize),
		cancel: make(map[string]context.CancelFunc),
		taps:   make(map[string][]chan Firing),
	}
}

// Out is the merged firing stream. It is never closed while schedules remain
// registered; Close() closes it once every registered schedule has been
// torn down.
func (f *FanIn) Out() <-chan Firing { return f.out }

// AddSchedule registers sched under taskName and starts forwarding its
// firings onto Out(). Only calendar, interval, and manual kinds are
// recognized; anything else is a fatal ScheduleUnsupported configuration
// error raised at task-load time, matching the design's refusal to silently
// ignore an unknown schedule kind (§4.5).
func (f *FanIn) AddSchedule(ctx context.Context, taskName string, sched schedule.Schedule) error {
	switch sched.ScheduleKind() {
	case schedule.KindCalendar, schedule.KindInterval, schedule.KindManual:
	default:
		return cerrors.New(cerrors.KindScheduleUnsupported, taskName, nil,
			fmt.Sprintf("unsupported schedule kind %q", sched.ScheduleKind()))
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return cerrors.New(cerrors.KindScheduleUnsupported, taskName, nil, "fan-in is closed")
	}
	if _, exists := f.cancel[taskName]; exists {
		f.mu.Unlock()
		return cerrors.New(cerrors.KindConfigInvalid, taskName, nil, "schedule already registered for task")
	}
	subCtx, cancel := context.WithCancel(ctx)
	f.cancel[taskName] = cancel
	f.mu.Unlock()

	events := sched.Subscribe(subCtx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				fr := Firing{TaskName: taskName, Event: ev}
				select {
				case f.out <- fr:
				case <-subCtx.Done():
					return
				}
				f.mu.Lock()
				taps := f.taps[taskName]
				f.mu.Unlock()
				for _, tap := range taps {
					select {
					case tap <- fr:
					case <-subCtx.Done():
					}
				}
			case <-subCtx.Done():
				return
			}
		}
	}()
	return nil
}

// RemoveSchedule stops forwarding firings for taskName and releases its
// schedule's resources. Safe to call for an unknown or already-removed task.
func (f *FanIn) RemoveSchedule(taskName string) {
	f.mu.Lock()
	cancel, ok := f.cancel[taskName]
	if ok {
		delete(f.cancel, taskName)
	}
	delete(f.taps, taskName)
	f.mu.Unlock()
	if ok {
		cancel()
	}
}

// getObservableForSchedule exposes the per-task firing path for components
// that only care about one task's schedule (e.g. a control-surface "run
// <task>" shortcut) without draining the full merged stream. The returned
// channel is a tap fed alongside Out(), not a substitute reader of it, so it
// never steals firings from the engine's main dispatch loop.
func (f *FanIn) getObservableForSchedule(taskName string) (<-chan Firing, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cancel[taskName]; !ok {
		return nil, false
	}
	tap := make(chan Firing, 4)
	f.taps[taskName] = append(f.taps[taskName], tap)
	return tap, true
}

// Close stops every registered schedule and waits for their forwarding
// goroutines to exit before closing Out().
func (f *FanIn) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	cancels := make([]context.CancelFunc, 0, len(f.cancel))
	for _, c := range f.cancel {
		cancels = append(cancels, c)
	}
	f.cancel = map[string]context.CancelFunc{}
	f.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	f.wg.Wait()
	close(f.out)
}
