// Package engine implements the Engine / Cameleer (C8): owns queues,
// schedulers, and tasks; on each schedule firing resolves config, enforces
// admission, selects a queue, optionally waits for external interruption,
// and submits the job; exposes the public lifecycle and a uniform work
// event stream (§4.6).
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cameleer-io/cameleer/internal/cameleer/attempt"
	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
	"github.com/cameleer-io/cameleer/internal/cameleer/fanin"
	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/registry"
	"github.com/cameleer-io/cameleer/internal/cameleer/statectx"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// QueueSpec is one entry of the engine's fixed queue configuration,
// describing a queue to be constructed rather than a ready instance: the
// engine owns the attempt.Runner every queue executes jobs against, so
// construction happens inside New, after the runner exists. Configuration
// order is meaningful: it is the queue-selection tie-break (§4.6).
type QueueSpec struct {
	Name               string
	Kind               queue.Kind
	Default            bool
	Parallelism        int
	Capabilities       float64
	AllowExclusiveJobs bool
}

// Config bundles everything New needs beyond the queue list.
type Config struct {
	Defaults                  taskconfig.CameleerDefaults
	Logger                    logging.Logger
	StaticContextPath         string
	InterruptTimeoutGraceSecs float64
	Host                      HostHandlers
}

type jobMeta struct {
	taskName string
}

// Engine is the orchestration root. All exported methods are safe for
// concurrent use.
type Engine struct {
	mu        sync.Mutex
	resolver  *taskconfig.Resolver
	runner    *attempt.Runner
	fanin     *fanin.FanIn
	registry  *registry.Registry
	store     *statectx.Store
	logger    logging.Logger
	host      HostHandlers

	queues       []queue.Queue
	queueOrder   map[string]int
	defaultQueue map[string]bool

	tasks map[string]*loadedTask

	jobsMu sync.Mutex
	jobs   map[int64]*jobMeta

	interruptMu   sync.Mutex
	interruptible map[int64]chan struct{}

	workEvents chan WorkEvent
	workTapsMu sync.Mutex
	workTaps   map[string][]chan WorkEvent

	ctx    context.Context
	cancel context.CancelFunc

	keepAliveMu    sync.Mutex
	keepAliveTimer *time.Timer

	shutdownOnce sync.Once
	doneCh       chan struct{}

	wg sync.WaitGroup
}

// New constructs an Engine with a fixed, validated queue set. At most one
// default queue per kind is permitted (§4.4 configuration invariant).
func New(cfg Config, queues []QueueSpec) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Host == nil {
		cfg.Host = NoopHost()
	}
	if cfg.StaticContextPath == "" {
		cfg.StaticContextPath = "cameleer-static-context.json"
	}

	defaultsByKind := map[queue.Kind]int{}
	order := make(map[string]int, len(queues))
	defaultSet := make(map[string]bool, len(queues))
	for i, spec := range queues {
		order[spec.Name] = i
		if spec.Default {
			defaultsByKind[spec.Kind]++
			defaultSet[spec.Name] = true
		}
	}
	for kind, count := range defaultsByKind {
		if count > 1 {
			return nil, cerrors.New(cerrors.KindConfigInvalid, "", nil,
				fmt.Sprintf("more than one default queue configured for kind %q", kind))
		}
	}

	resolver := taskconfig.NewResolver(cfg.Defaults)
	runner := attempt.NewRunner(resolver, cfg.Logger)
	store := statectx.Load(cfg.StaticContextPath, time.Duration(cfg.Defaults.StaticTaskContextSerializeMillis)*time.Millisecond, cfg.Logger)

	ctx, cancel := context.WithCancel(context.Background())

	qs := make([]queue.Queue, 0, len(queues))
	for _, spec := range queues {
		switch spec.Kind {
		case queue.KindParallel:
			qs = append(qs, queue.NewParallel(ctx, spec.Name, spec.Parallelism, runner, cfg.Logger))
		case queue.KindCost:
			qs = append(qs, queue.NewCost(ctx, spec.Name, spec.Capabilities, spec.AllowExclusiveJobs, runner, cfg.Logger))
		default:
			cancel()
			return nil, cerrors.New(cerrors.KindConfigInvalid, spec.Name, nil,
				fmt.Sprintf("unrecognized queue kind %q", spec.Kind))
		}
	}

	e := &Engine{
		resolver:      resolver,
		runner:        runner,
		fanin:         fanin.New(64),
		registry:      registry.New(),
		store:         store,
		logger:        cfg.Logger,
		host:          cfg.Host,
		queues:        qs,
		queueOrder:    order,
		defaultQueue:  defaultSet,
		tasks:         make(map[string]*loadedTask),
		jobs:          make(map[int64]*jobMeta),
		interruptible: make(map[int64]chan struct{}),
		workEvents:    make(chan WorkEvent, 256),
		workTaps:      make(map[string][]chan WorkEvent),
		ctx:           ctx,
		cancel:        cancel,
		doneCh:        make(chan struct{}),
	}

	for _, q := range qs {
		e.wg.Add(1)
		go e.drainQueueEvents(q)
	}

	e.wg.Add(1)
	go e.dispatchLoop()

	e.host.Install(e.onUnhandled)

	return e, nil
}

// onUnhandled is the process-level failure handler given to HostHandlers.
// Install (§4.6 "Global failure handlers"): it logs the failure at error
// level rather than letting it propagate silently, wrapping it under the
// UnhandledHost taxonomy entry (§7).
func (e *Engine) onUnhandled(err error) {
	wrapped := cerrors.New(cerrors.KindUnhandledHost, "", err, "unhandled process-level failure")
	e.logger.Error("engine", "unhandled process-level failure", "err", wrapped.Error())
}

// GetLogger returns a logger scoped for the given component tag (§4.6).
// Scoping is carried per call site via the scope argument every Logger method
// already takes; this just hands back the engine's configured sink so every
// task/queue/control surface logs through one sink at one level.
func (e *Engine) GetLogger(typeTag string) logging.Logger {
	_ = typeTag
	return e.logger
}

// Registry exposes the engine's own Task/Configurable Class Registry. The
// CLI does not use it: it builds a separate registry for its config provider.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// WorkEvents is the engine's full, unfiltered work stream.
func (e *Engine) WorkEvents() <-chan WorkEvent { return e.workEvents }

// GetObservableForWork returns a filtered event stream for one task only
// (§4.6).
func (e *Engine) GetObservableForWork(taskName string) <-chan WorkEvent {
	e.workTapsMu.Lock()
	defer e.workTapsMu.Unlock()
	tap := make(chan WorkEvent, 16)
	e.workTaps[taskName] = append(e.workTaps[taskName], tap)
	return tap
}

func (e *Engine) publishWork(ev WorkEvent) {
	select {
	case e.workEvents <- ev:
	default:
	}
	e.workTapsMu.Lock()
	taps := e.workTaps[ev.TaskName]
	e.workTapsMu.Unlock()
	for _, t := range taps {
		select {
		case t <- ev:
		default:
		}
	}
}
