package taskconfig

import "github.com/cameleer-io/cameleer/internal/cameleer/cerrors"

// maxResolveDepth guards against a pathological self-referential config
// where a callable keeps returning another callable forever (§9 Design
// Notes: "deep recursive resolution... explicit visited-depth guard").
const maxResolveDepth = 32

// Dynamic is the sum type backing every TaskConfig option that may be a
// plain value, a callable producing one, or a future resolving to one
// (§9: "Represent each slot as a sum type {Literal, Callable, Future} and
// evaluate to a concrete value using a single recursion").
type Dynamic interface {
	dynamicMarker()
}

// Literal wraps an already-concrete value.
type Literal struct{ Value any }

func (Literal) dynamicMarker() {}

// Callable wraps a function invoked with the pre-resolved `resolve` bag and
// the owning Task instance (§4.1). Its result may itself be another Dynamic
// (a callable returning a callable, or a future), which the resolver will
// recurse through.
type Callable struct {
	Fn func(bag map[string]any, task Task) (any, error)
}

func (Callable) dynamicMarker() {}

// Future wraps a deferred value the resolver must await before continuing
// resolution.
type Future struct {
	Await func() (any, error)
}

func (Future) dynamicMarker() {}

// Val is a convenience constructor for a plain Literal-backed Dynamic.
func Val(v any) Dynamic { return Literal{Value: v} }

// resolveRaw implements optionalToValue's recursive core (§4.1): invoke
// callables and await futures until a concrete, non-Dynamic value surfaces
// or the depth guard trips.
func resolveRaw(raw Dynamic, bag map[string]any, task Task) (any, error) {
	if raw == nil {
		return nil, nil
	}
	var cur any = raw
	for depth := 0; depth < maxResolveDepth; depth++ {
		switch v := cur.(type) {
		case Literal:
			return v.Value, nil
		case Callable:
			out, err := v.Fn(bag, task)
			if err != nil {
				return nil, cerrors.New(cerrors.KindCannotResolve, "", err, "callable resolution failed")
			}
			cur = out
		case Future:
			out, err := v.Await()
			if err != nil {
				return nil, cerrors.New(cerrors.KindCannotResolve, "", err, "future resolution failed")
			}
			cur = out
		case Dynamic:
			// An already-unwrapped Literal/Callable/Future produced as a
			// callable's return value lands here on the next loop turn via
			// the type switch above; a Dynamic implementation we don't
			// recognize is a programmer error, not a config error.
			return nil, cerrors.New(cerrors.KindCannotResolve, "", nil, "unrecognized Dynamic implementation")
		default:
			return v, nil
		}
	}
	return nil, cerrors.New(cerrors.KindCannotResolve, "", nil, "exceeded maximum resolution depth")
}

// resolveTyped resolves raw and type-asserts the result via convert, falling
// back to def when raw is nil. A convert failure surfaces as CannotResolve,
// matching optionalToValue's "otherwise fail" branch.
func resolveTyped[T any](raw Dynamic, bag map[string]any, task Task, def T, convert func(any) (T, bool)) (T, error) {
	if raw == nil {
		return def, nil
	}
	v, err := resolveRaw(raw, bag, task)
	if err != nil {
		var zero T
		return zero, err
	}
	if v == nil {
		return def, nil
	}
	out, ok := convert(v)
	if !ok {
		var zero T
		return zero, cerrors.New(cerrors.KindCannotResolve, "", nil, "resolved value does not match expected type")
	}
	return out, nil
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

func asStepDefs(v any) ([]StepDef, bool) {
	s, ok := v.([]StepDef)
	return s, ok
}

func asArgs(v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case nil:
		return nil, true
	}
	return nil, false
}
