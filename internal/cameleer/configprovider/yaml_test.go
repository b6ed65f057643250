package configprovider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/registry"
	"github.com/cameleer-io/cameleer/internal/cameleer/schedule"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cameleer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
defaults:
  maxNumFails: 2
  continueOnFinalFail: true
staticContextPath: ctx.json
queues:
  - name: p1
    kind: parallel
    default: true
    parallelism: 4
tasks:
  - name: hello
    type: echo
    schedule:
      kind: manual
    cost: 1.5
`

func TestYAMLProvider_GetCameleerConfig(t *testing.T) {
	path := writeYAML(t, validYAML)
	reg := registry.New()
	require.NoError(t, reg.Register(registry.RootTask, "echo", func(raw any) (any, error) {
		return &taskconfig.TaskConfig{}, nil
	}, nil, false))

	p := NewYAMLProvider(path, reg)
	cfg, err := p.GetCameleerConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Defaults.MaxNumFails)
	assert.True(t, cfg.Defaults.ContinueOnFinalFail)
	assert.Equal(t, "ctx.json", cfg.StaticContextPath)
	require.Len(t, cfg.Queues, 1)
	assert.Equal(t, queue.KindParallel, cfg.Queues[0].Kind)
	assert.True(t, cfg.Queues[0].Default)
}

func TestYAMLProvider_GetAllTaskConfigs_InstantiatesAndWiresScheduleAndCost(t *testing.T) {
	path := writeYAML(t, validYAML)
	reg := registry.New()
	require.NoError(t, reg.Register(registry.RootTask, "echo", func(raw any) (any, error) {
		return &taskconfig.TaskConfig{}, nil
	}, nil, false))

	p := NewYAMLProvider(path, reg)
	tasks, err := p.GetAllTaskConfigs()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "hello", tasks[0].Name)
	assert.True(t, tasks[0].Enabled)
	require.NotNil(t, tasks[0].Schedule)
	assert.Equal(t, schedule.KindManual, tasks[0].Schedule.ScheduleKind())
	require.NotNil(t, tasks[0].Cost)
}

func TestYAMLProvider_GetTaskConfig_UnknownNameFails(t *testing.T) {
	path := writeYAML(t, validYAML)
	reg := registry.New()
	require.NoError(t, reg.Register(registry.RootTask, "echo", func(raw any) (any, error) {
		return &taskconfig.TaskConfig{}, nil
	}, nil, false))

	p := NewYAMLProvider(path, reg)
	_, err := p.GetTaskConfig("nope")
	require.Error(t, err)
}

func TestYAMLProvider_MissingQueuesFailsValidation(t *testing.T) {
	path := writeYAML(t, `
staticContextPath: ctx.json
queues: []
tasks: []
`)
	p := NewYAMLProvider(path, registry.New())
	_, err := p.GetCameleerConfig()
	require.Error(t, err, "at least one queue is required")
}

func TestYAMLProvider_UnregisteredTaskTypeFails(t *testing.T) {
	path := writeYAML(t, validYAML)
	p := NewYAMLProvider(path, registry.New())
	_, err := p.GetAllTaskConfigs()
	require.Error(t, err)
}

func TestYAMLProvider_MalformedYAMLFails(t *testing.T) {
	path := writeYAML(t, "not: [valid yaml")
	p := NewYAMLProvider(path, registry.New())
	_, err := p.GetCameleerConfig()
	require.Error(t, err)
}
