package configprovider

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/registry"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// fileDefaults mirrors taskconfig.CameleerDefaults with YAML tags and
// validator constraints, matching the pluggable schema-validator boundary
// (§1: "the schema validator that rejects malformed config").
type fileDefaults struct {
	MaxNumFails                      int   `yaml:"maxNumFails" validate:"gte=0"`
	ContinueOnFinalFail              bool  `yaml:"continueOnFinalFail"`
	Skip                             bool  `yaml:"skip"`
	RetryIntervalMillis              int64 `yaml:"retryIntervalMillis" validate:"gte=0"`
	StaticTaskContextSerializeMillis int64 `yaml:"staticTaskContextSerializeMillis" validate:"gte=0"`
}

type fileQueue struct {
	Name               string  `yaml:"name" validate:"required"`
	Kind               string  `yaml:"kind" validate:"required,oneof=parallel cost"`
	Default            bool    `yaml:"default"`
	Parallelism        int     `yaml:"parallelism"`
	Capabilities       float64 `yaml:"capabilities"`
	AllowExclusiveJobs bool    `yaml:"allowExclusiveJobs"`
}

type fileSchedule struct {
	Kind               string  `yaml:"kind" validate:"required,oneof=calendar interval manual"`
	Expr               string  `yaml:"expr"`
	DurationSecs       float64 `yaml:"durationSecs"`
	LookAheadSecs      float64 `yaml:"lookAheadSecs"`
	PeriodMillis       int64   `yaml:"periodMillis"`
	MaxTriggers        int     `yaml:"maxTriggers"`
	TriggerImmediately bool    `yaml:"triggerImmediately"`
}

type fileTask struct {
	Name                 string         `yaml:"name" validate:"required"`
	Type                 string         `yaml:"type" validate:"required"`
	Enabled              *bool          `yaml:"enabled"`
	Schedule             fileSchedule   `yaml:"schedule" validate:"required"`
	Cost                 *float64       `yaml:"cost"`
	AllowMultiple        bool           `yaml:"allowMultiple"`
	Queues               []string       `yaml:"queues"`
	InterruptTimeoutSecs *float64       `yaml:"interruptTimeoutSecs"`
	Raw                  map[string]any `yaml:"with"`
}

type fileConfig struct {
	Defaults          fileDefaults `yaml:"defaults"`
	StaticContextPath string       `yaml:"staticContextPath" validate:"required"`
	Queues            []fileQueue  `yaml:"queues" validate:"required,min=1,dive"`
	Tasks             []fileTask   `yaml:"tasks" validate:"dive"`
}

// YAMLProvider implements ConfigProvider by reading a single YAML file. Task
// types named in the file must have been registered beforehand against reg
// (§4.7: "locate the class by its type field... and construct").
type YAMLProvider struct {
	path     string
	reg      *registry.Registry
	validate *validator.Validate
	parsed   *fileConfig
}

func NewYAMLProvider(path string, reg *registry.Registry) *YAMLProvider {
	return &YAMLProvider{path: path, reg: reg, validate: validator.New()}
}

func (p *YAMLProvider) load() (*fileConfig, error) {
	if p.parsed != nil {
		return p.parsed, nil
	}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, cerrors.New(cerrors.KindConfigInvalid, "", err, "reading config file")
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, cerrors.New(cerrors.KindConfigInvalid, "", err, "parsing config YAML")
	}
	if err := p.validate.Struct(&fc); err != nil {
		return nil, cerrors.New(cerrors.KindConfigInvalid, "", err, "validating config schema")
	}
	p.parsed = &fc
	return &fc, nil
}

func (p *YAMLProvider) GetCameleerConfig() (CameleerConfig, error) {
	fc, err := p.load()
	if err != nil {
		return CameleerConfig{}, err
	}
	qcs := make([]QueueConfig, 0, len(fc.Queues))
	for _, q := range fc.Queues {
		qcs = append(qcs, QueueConfig{
			Name:               q.Name,
			Kind:               queue.Kind(q.Kind),
			Default:            q.Default,
			Parallelism:        q.Parallelism,
			Capabilities:       q.Capabilities,
			AllowExclusiveJobs: q.AllowExclusiveJobs,
		})
	}
	return CameleerConfig{
		Defaults: taskconfig.CameleerDefaults{
			MaxNumFails:                      fc.Defaults.MaxNumFails,
			ContinueOnFinalFail:              fc.Defaults.ContinueOnFinalFail,
			Skip:                             fc.Defaults.Skip,
			RetryIntervalMillis:              fc.Defaults.RetryIntervalMillis,
			StaticTaskContextSerializeMillis: fc.Defaults.StaticTaskContextSerializeMillis,
		},
		StaticContextPath: fc.StaticContextPath,
		Queues:            qcs,
	}, nil
}

func (p *YAMLProvider) GetAllTaskConfigs() ([]*taskconfig.TaskConfig, error) {
	fc, err := p.load()
	if err != nil {
		return nil, err
	}
	out := make([]*taskconfig.TaskConfig, 0, len(fc.Tasks))
	for _, t := range fc.Tasks {
		cfg, err := p.buildTaskConfig(t)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (p *YAMLProvider) GetTaskConfig(name string) (*taskconfig.TaskConfig, error) {
	fc, err := p.load()
	if err != nil {
		return nil, err
	}
	for _, t := range fc.Tasks {
		if t.Name == name {
			return p.buildTaskConfig(t)
		}
	}
	return nil, cerrors.New(cerrors.KindConfigInvalid, name, nil, "no task configured with this name")
}

// buildTaskConfig constructs the Schedule literally from file data, then
// asks the Task Registry to instantiate the named task type with the raw
// `with` block — the registered factory is the one place closures (step
// bodies, resolve callables) enter the system, since YAML cannot carry Go
// functions (§4.7, §9 class-name registry pattern).
func (p *YAMLProvider) buildTaskConfig(t fileTask) (*taskconfig.TaskConfig, error) {
	sched, err := buildSchedule(t.Schedule)
	if err != nil {
		return nil, cerrors.New(cerrors.KindConfigInvalid, t.Name, err, "building schedule")
	}

	instance, err := p.reg.Instantiate(registry.RootTask, t.Type, nil, nil, t.Raw)
	if err != nil {
		return nil, err
	}
	cfg, ok := instance.(*taskconfig.TaskConfig)
	if !ok {
		return nil, cerrors.New(cerrors.KindConfigInvalid, t.Name, nil, "registered task factory did not return a TaskConfig")
	}

	cfg.Name = t.Name
	cfg.Type = t.Type
	cfg.Schedule = sched
	cfg.Enabled = t.Enabled == nil || *t.Enabled
	if t.Cost != nil {
		cfg.Cost = taskconfig.Val(*t.Cost)
	}
	if t.AllowMultiple {
		cfg.AllowMultiple = taskconfig.Val(true)
	}
	if len(t.Queues) > 0 {
		cfg.Queues = taskconfig.Val(t.Queues)
	}
	if t.InterruptTimeoutSecs != nil {
		cfg.InterruptTimeoutSecs = taskconfig.Val(*t.InterruptTimeoutSecs)
	}
	return cfg, nil
}

func buildSchedule(fs fileSchedule) (schedule.Schedule, error) {
	switch fs.Kind {
	case "calendar":
		duration := time.Duration(fs.DurationSecs * float64(time.Second))
		lookAhead := time.Duration(fs.LookAheadSecs * float64(time.Second))
		return schedule.NewCalendar(fs.Expr, duration, lookAhead)
	case "interval":
		period := time.Duration(fs.PeriodMillis) * time.Millisecond
		return schedule.NewInterval(period, fs.MaxTriggers, fs.TriggerImmediately), nil
	case "manual":
		return schedule.NewManual(), nil
	default:
		return nil, fmt.Errorf("unrecognized schedule kind %q", fs.Kind)
	}
}
