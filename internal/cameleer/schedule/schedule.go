// Package schedule implements the three schedule kinds the engine fans
// firings in from: calendar, interval, and manual (§3, §4.2, §4.5).
package schedule

import (
	"context"
	"time"
)

// EventKind is the lifecycle state of one Schedule event.
type EventKind int

const (
	// EventNext is a regular firing.
	EventNext EventKind = iota
	// EventError means the schedule itself failed and will produce no
	// further firings.
	EventError
	// EventComplete means the schedule exhausted its triggers (e.g. a
	// bounded interval, or a manual schedule's Complete call) and will
	// produce no further firings, without having errored.
	EventComplete
)

// Event is one item in a Schedule's firing stream.
type Event struct {
	Kind EventKind
	At   time.Time
	Err  error

	// IsEnd marks a calendar firing that represents the *end* of a
	// bounded calendar event rather than its start. The engine discards
	// these at its boundary (§4.5); they are not task firings.
	IsEnd bool
}

// Kind distinguishes the three schedule flavors the Scheduler Fan-in
// recognizes. Anything else is a fatal ScheduleUnsupported configuration
// error at load time (§4.5).
type Kind string

const (
	KindCalendar Kind = "calendar"
	KindInterval Kind = "interval"
	KindManual   Kind = "manual"
)

// Schedule is an armed, subscribable source of firings. Subscribe may be
// called exactly once per Schedule instance for the lifetime it is attached
// to a task; the returned channel is closed once the schedule reaches a
// terminal state (error or complete) or ctx is canceled.
type Schedule interface {
	// ScheduleKind identifies which underlying scheduler owns this
	// instance, for the Scheduler Fan-in's routing (§4.5).
	ScheduleKind() Kind
	// Subscribe arms the schedule (if not already armed) and returns its
	// event stream.
	Subscribe(ctx context.Context) <-chan Event
	// Stop disarms the schedule and releases its resources. Safe to call
	// more than once.
	Stop()
}
