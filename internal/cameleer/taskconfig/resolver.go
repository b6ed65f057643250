package taskconfig

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
)

// Resolver implements the Config Resolver contract (§4.1): resolve(TaskConfig,
// CameleerDefaults) -> ResolvedConfig, and resolveErrorConfig(StepConfig) ->
// FunctionalTaskErrorConfig.
type Resolver struct {
	Defaults CameleerDefaults
}

func NewResolver(defaults CameleerDefaults) *Resolver {
	return &Resolver{Defaults: defaults}
}

// Resolve materializes a fresh ResolvedConfig for one schedule firing. It
// never caches: callers invoke it once per firing (§3 ResolvedConfig).
func (r *Resolver) Resolve(cfg *TaskConfig, task Task) (*ResolvedConfig, error) {
	bag, err := r.resolveBag(cfg.Resolve, task)
	if err != nil {
		return nil, err
	}

	skip, err := resolveTyped(cfg.Skip, bag, task, false, asBool)
	if err != nil {
		return nil, err
	}
	allowMultiple, err := resolveTyped(cfg.AllowMultiple, bag, task, false, asBool)
	if err != nil {
		return nil, err
	}
	queues, err := resolveTyped(cfg.Queues, bag, task, []string{}, asStringSlice)
	if err != nil {
		return nil, err
	}

	var cost *float64
	if cfg.Cost != nil {
		v, err := resolveTyped(cfg.Cost, bag, task, 0.0, asFloat64)
		if err != nil {
			return nil, err
		}
		cost = &v
	}

	var interrupt *float64
	if cfg.InterruptTimeoutSecs != nil {
		v, err := resolveTyped(cfg.InterruptTimeoutSecs, bag, task, 0.0, asFloat64)
		if err != nil {
			return nil, err
		}
		interrupt = &v
	}

	steps, err := resolveTyped(cfg.Tasks, bag, task, []StepDef{}, asStepDefs)
	if err != nil {
		return nil, err
	}

	resolvedSteps := make([]ResolvedStep, 0, len(steps))
	for _, s := range steps {
		resolvedSteps = append(resolvedSteps, r.normalizeStep(s))
	}

	return &ResolvedConfig{
		Skip:                 skip,
		Cost:                 cost,
		AllowMultiple:        allowMultiple,
		Queues:               queues,
		InterruptTimeoutSecs: interrupt,
		Steps:                resolvedSteps,
		ResolveBag:           bag,
	}, nil
}

// ResolveArgs evaluates a step's args producer (§4.3 step 1: "call the args
// producer (if any)"). A nil producer yields no args.
func ResolveArgs(args Dynamic, bag map[string]any, task Task) ([]any, error) {
	if args == nil {
		return nil, nil
	}
	v, err := resolveRaw(args, bag, task)
	if err != nil {
		return nil, err
	}
	out, ok := asArgs(v)
	if !ok {
		return nil, cerrors.New(cerrors.KindCannotResolve, "args", nil, "resolved args value is not a list")
	}
	return out, nil
}

// resolveBag evaluates the `resolve` mapping in parallel (§4.1: "processed
// first, in parallel"); its completed values become the first argument to
// every other callable and are also exposed to step bodies through the job.
func (r *Resolver) resolveBag(raw map[string]Dynamic, task Task) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	if len(raw) == 0 {
		return out, nil
	}
	var mu sync.Mutex
	var g errgroup.Group
	for key, dyn := range raw {
		key, dyn := key, dyn
		g.Go(func() error {
			v, err := resolveRaw(dyn, nil, task)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeStep applies the per-step normalization rules (§4.1): a step
// whose CanFail was never authored (the Go equivalent of "a bare callable")
// is treated as canFail=true (defaults-derived); otherwise the bool
// shorthands collapse per their documented rules, and a full def is carried
// unresolved for the Run Attempt to resolve lazily.
func (r *Resolver) normalizeStep(s StepDef) ResolvedStep {
	cf := s.CanFail
	if !cf.IsBool && cf.Def == nil {
		cf = CanFail{IsBool: true, Bool: true}
	}
	return ResolvedStep{
		Name:    s.Name,
		Fn:      s.Fn,
		Args:    s.Args,
		CanFail: cf,
	}
}

// ResolveErrorConfig materializes one step's canFail policy. Called once per
// Run Attempt (not once per firing): its result — in particular the recovery
// schedule — is reused across the regular attempt and every recovery firing
// inside that attempt.
func (r *Resolver) ResolveErrorConfig(cf CanFail, task Task, bag map[string]any) (*FunctionalTaskErrorConfig, error) {
	if cf.IsBool {
		if !cf.Bool {
			// canFail = false collapses to zero retry budget, no continue.
			return &FunctionalTaskErrorConfig{
				MaxNumFails:         0,
				ContinueOnFinalFail: false,
				Skip:                false,
			}, nil
		}
		// canFail = true collapses to the defaults' values (Q3): every
		// field, including continueOnFinalFail, comes from CameleerDefaults.
		return &FunctionalTaskErrorConfig{
			MaxNumFails:         r.Defaults.MaxNumFails,
			ContinueOnFinalFail: r.Defaults.ContinueOnFinalFail,
			Skip:                r.Defaults.Skip,
		}, nil
	}

	def := cf.Def
	if def == nil {
		return nil, cerrors.New(cerrors.KindAttemptResolveErrConf, "", nil, "canFail record missing definition")
	}

	out := &FunctionalTaskErrorConfig{
		MaxNumFails:         r.Defaults.MaxNumFails,
		ContinueOnFinalFail: r.Defaults.ContinueOnFinalFail,
		Skip:                r.Defaults.Skip,
	}

	// Q1: preserve field names strictly — each recognized key copies that
	// key's own value, not a neighboring key's.
	if def.MaxNumFails != nil {
		v, err := resolveTyped(def.MaxNumFails, bag, task, float64(r.Defaults.MaxNumFails), asFloat64)
		if err != nil {
			return nil, cerrors.New(cerrors.KindAttemptResolveErrConf, "maxNumFails", err, "")
		}
		out.MaxNumFails = int(v)
	}
	if def.ContinueOnFinalFail != nil {
		v, err := resolveTyped(def.ContinueOnFinalFail, bag, task, r.Defaults.ContinueOnFinalFail, asBool)
		if err != nil {
			return nil, cerrors.New(cerrors.KindAttemptResolveErrConf, "continueOnFinalFail", err, "")
		}
		out.ContinueOnFinalFail = v
	}
	if def.Skip != nil {
		v, err := resolveTyped(def.Skip, bag, task, r.Defaults.Skip, asBool)
		if err != nil {
			return nil, cerrors.New(cerrors.KindAttemptResolveErrConf, "skip", err, "")
		}
		out.Skip = v
	}
	if def.Schedule != nil {
		v, err := resolveRaw(def.Schedule, bag, task)
		if err != nil {
			return nil, cerrors.New(cerrors.KindAttemptResolveErrConf, "schedule", err, "")
		}
		if v != nil {
			s, ok := v.(schedule.Schedule)
			if !ok {
				return nil, cerrors.New(cerrors.KindAttemptResolveErrConf, "schedule", nil, "resolved schedule value is not a Schedule")
			}
			out.Schedule = s
		}
	}

	return out, nil
}
