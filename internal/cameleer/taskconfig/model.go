// Package taskconfig implements the Config Resolver (C2): turning a task's
// declarative configuration, including deferred callables and promised
// values, into a fully materialized ResolvedConfig on every schedule
// firing, plus a Run Attempt's lazy per-step error-config resolution.
package taskconfig

import (
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
)

// StepFn is a task's functional step body: it receives its resolved args
// (the job handle always appended as the final element, §4.3 step 1) and
// returns a value or an error.
type StepFn func(args []any, job JobHandle) (any, error)

// Task is the minimal surface the resolver, Run Attempt, and Job need from
// a concrete task instance. It is implemented by *job.Job's owner in this
// tree's wiring (the engine's loaded task wrapper), kept as an interface
// here to avoid a taskconfig<->job import cycle.
type Task interface {
	Name() string
	TypeName() string
}

// JobHandle is the subset of a running Job a step body is allowed to touch:
// the shared mutable context map and identifying information for logging.
// Concrete implementation lives in the job package.
type JobHandle interface {
	ID() int64
	CorrelationID() string
	Task() Task
	Context() map[string]any
	ResolveBag() map[string]any
}

// StepDef is one task step as authored in configuration: either a bare
// callable (Fn set, everything else zero-valued) or a full record.
type StepDef struct {
	Name    string
	Fn      StepFn
	Args    Dynamic // producer of []any, or nil for no args
	CanFail CanFail
}

// CanFail is the step's error-handling policy as authored: either the
// boolean shorthand or a full FunctionalTaskErrorConfigDef (§3).
type CanFail struct {
	IsBool  bool
	Bool    bool
	Def     *FunctionalTaskErrorConfigDef
}

// FunctionalTaskErrorConfigDef is the authored (unresolved) error policy
// record. Each field may be absent (nil Dynamic), a literal, a callable, or
// a future; resolution happens once per Run Attempt (§4.3), not once per
// config resolution, since its outcome (especially the recovery schedule)
// must be stable across the regular attempt and every recovery firing
// within that attempt.
type FunctionalTaskErrorConfigDef struct {
	Schedule            Dynamic // producer of a schedule.Schedule
	MaxNumFails         Dynamic
	Skip                Dynamic
	ContinueOnFinalFail Dynamic
}

// FunctionalTaskErrorConfig is the resolved, concrete error policy a Run
// Attempt executes against.
type FunctionalTaskErrorConfig struct {
	Schedule            schedule.Schedule
	MaxNumFails         int
	Skip                bool
	ContinueOnFinalFail bool
}

// ResolvedStep is one step normalized to full record shape, with its args
// producer and error-config definition carried unresolved — those are
// resolved lazily by the Run Attempt (§4.1: "Every step is normalized").
type ResolvedStep struct {
	Name    string
	Fn      StepFn
	Args    Dynamic
	CanFail CanFail
}

// ResolvedConfig is the materialized counterpart of a TaskConfig, produced
// fresh on every firing and never cached (§3).
type ResolvedConfig struct {
	Skip                 bool
	Cost                 *float64
	AllowMultiple        bool
	Queues               []string
	InterruptTimeoutSecs *float64
	Steps                []ResolvedStep
	ResolveBag           map[string]any
}

// TaskConfig is the frozen, declarative record a task is loaded from (§3).
// Enabled and Schedule are evaluated exactly once at load (I2) and so are
// not part of Resolve's per-firing output; they're captured on the struct
// directly rather than as Dynamic fields that could be re-evaluated.
type TaskConfig struct {
	Name     string
	Type     string
	Enabled  bool
	Schedule schedule.Schedule

	Skip                 Dynamic
	Cost                 Dynamic
	AllowMultiple        Dynamic
	Queues               Dynamic
	InterruptTimeoutSecs Dynamic
	Tasks                Dynamic // producer of []StepDef
	Resolve              map[string]Dynamic
	Progress             any
}

// CameleerDefaults carries the engine-wide defaults merged into per-step
// canFail records and the context-store serialize interval (§4.1, §4.8).
type CameleerDefaults struct {
	MaxNumFails                       int
	ContinueOnFinalFail               bool
	Skip                              bool
	RetryIntervalMillis               int64
	StaticTaskContextSerializeMillis  int64
}

// DefaultCameleerDefaults mirrors the zero-retry-by-default stance: a step
// that doesn't say otherwise gets no retries and does not continue past a
// final failure, matching canFail=false's collapse rule (§4.1).
func DefaultCameleerDefaults() CameleerDefaults {
	return CameleerDefaults{
		MaxNumFails:                      0,
		ContinueOnFinalFail:              false,
		Skip:                             false,
		RetryIntervalMillis:              5000,
		StaticTaskContextSerializeMillis: 2000,
	}
}
