// Package configprovider defines the ConfigProvider boundary (§6) and a
// YAML-backed implementation of it.
package configprovider

import (
	"github.com/cameleer-io/cameleer/internal/cameleer/engine"
	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/taskconfig"
)

// QueueConfig describes one of the engine's fixed queues.
type QueueConfig struct {
	Name               string
	Kind               queue.Kind
	Default            bool
	Parallelism        int
	Capabilities       float64
	AllowExclusiveJobs bool
}

// CameleerConfig is the host-level configuration getCameleerConfig()
// produces: engine defaults, the static context file location, and the
// fixed queue set (§6).
type CameleerConfig struct {
	Defaults          taskconfig.CameleerDefaults
	StaticContextPath string
	Queues            []QueueConfig
	EngineConfig      engine.Config
}

// ConfigProvider is the host-module contract the CLI loads (§6): either the
// config module exports a value implementing this interface directly, or an
// (async, in this tree: error-returning) callable producing one.
type ConfigProvider interface {
	GetCameleerConfig() (CameleerConfig, error)
	GetAllTaskConfigs() ([]*taskconfig.TaskConfig, error)
	GetTaskConfig(name string) (*taskconfig.TaskConfig, error)
}

// ProviderFunc adapts a plain function to ConfigProvider's "callable
// producing one" variant.
type ProviderFunc func() (ConfigProvider, error)
