// Package control implements the two built-in control surfaces (stdin line
// protocol and HTTP GET command endpoint) over one shared command dispatch
// table (§6).
package control

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cameleer-io/cameleer/internal/cameleer/engine"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// CommandFunc is one named, argument-taking control command.
type CommandFunc func(args []string) (any, error)

// Dispatcher is the shared command table both control surfaces drive.
// Unknown commands fall back to invoking a public Engine method by name
// (§6: "<method> <args> | invoke a public engine method by name if one
// exists | its return value").
type Dispatcher struct {
	engine   *engine.Engine
	loader   func() ([]*taskconfig.TaskConfig, error)
	commands map[string]CommandFunc
}

func NewDispatcher(e *engine.Engine, loader func() ([]*taskconfig.TaskConfig, error)) *Dispatcher {
	d := &Dispatcher{engine: e, loader: loader}
	d.commands = map[string]CommandFunc{
		"run": func(args []string) (any, error) {
			d.engine.Run()
			return nil, nil
		},
		"load": func(args []string) (any, error) {
			if d.loader == nil {
				return nil, fmt.Errorf("no config loader configured")
			}
			cfgs, err := d.loader()
			if err != nil {
				return nil, err
			}
			return nil, d.engine.LoadTasks(cfgs)
		},
		"pause": func(args []string) (any, error) {
			d.engine.Pause()
			return nil, nil
		},
		"pausewait": func(args []string) (any, error) {
			d.engine.PauseWait()
			return nil, nil
		},
		"shutdown": func(args []string) (any, error) {
			d.engine.Shutdown()
			return nil, nil
		},
	}
	return d
}

// Dispatch parses "<command> <args...>" and executes it. Unknown command ->
// error (§6).
func (d *Dispatcher) Dispatch(line string) (any, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd, args := strings.ToLower(tokens[0]), tokens[1:]

	if fn, ok := d.commands[cmd]; ok {
		return fn(args)
	}
	return d.invokeEngineMethod(tokens[0], args)
}

// invokeEngineMethod reflects over *engine.Engine for a public method whose
// name case-insensitively matches name, converting string args positionally
// to the method's parameter types on a best-effort basis.
func (d *Dispatcher) invokeEngineMethod(name string, args []string) (any, error) {
	v := reflect.ValueOf(d.engine)
	t := v.Type()
	var method reflect.Value
	found := false
	for i := 0; i < t.NumMethod(); i++ {
		if strings.EqualFold(t.Method(i).Name, name) {
			method = v.Method(i)
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown command %q", name)
	}

	mt := method.Type()
	if mt.NumIn() != len(args) && !mt.IsVariadic() {
		return nil, fmt.Errorf("%s expects %d argument(s), got %d", name, mt.NumIn(), len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, a := range args {
		paramType := mt.In(i)
		conv, err := convertArg(a, paramType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, conv)
	}

	out := method.Call(in)
	return packResults(out), nil
}

func convertArg(raw string, target reflect.Type) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.String:
		return reflect.ValueOf(raw), nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(target), nil
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported argument type %s", target)
	}
}

func packResults(out []reflect.Value) any {
	if len(out) == 0 {
		return nil
	}
	if len(out) == 1 {
		return out[0].Interface()
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals
}
