// Command cameleer is the engine's command-line entry point (§6): it loads
// a config module, optionally appends a control surface of the requested
// kind, constructs the engine, optionally overrides the log level, and
// either returns immediately (--norun) or loads tasks and runs
// asynchronously.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cameleer-io/cameleer/internal/cameleer/configprovider"
	"github.com/cameleer-io/cameleer/internal/cameleer/control"
	"github.com/cameleer-io/cameleer/internal/cameleer/engine"
	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
	"github.com/cameleer-io/cameleer/internal/cameleer/queue"
	"github.com/cameleer-io/cameleer/internal/cameleer/registry"
)

func main() {
	root := &cobra.Command{
		Use:   "cameleer",
		Short: "Run the Cameleer task orchestration engine",
		RunE:  runEngine,
	}
	root.Flags().String("config", "", "path to the YAML configuration file")
	root.Flags().String("instrument", "none", "control surface: none|stdin|http[-<port>]")
	root.Flags().Bool("norun", false, "construct the engine but do not load tasks or run")
	root.Flags().String("loglevel", "", "override the configured log level")

	for _, name := range []string{"config", "instrument", "norun", "loglevel"} {
		if err := viper.BindPFlag(name, root.Flags().Lookup(name)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("cameleer")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runEngine(cmd *cobra.Command, _ []string) error {
	configPath := viper.GetString("config")
	if configPath == "" {
		return fmt.Errorf("--config (or CAMELEER_CONFIG) is required")
	}
	instrument := viper.GetString("instrument")
	noRun := viper.GetBool("norun")
	logLevel := viper.GetString("loglevel")

	logger, err := logging.New("development")
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	if logLevel != "" {
		logger = logger.WithLevel(logging.ParseLevel(logLevel))
	}

	reg := registry.New()
	provider := configprovider.NewYAMLProvider(configPath, reg)

	cameleerCfg, err := provider.GetCameleerConfig()
	if err != nil {
		return fmt.Errorf("loading cameleer config: %w", err)
	}

	queues, err := buildQueues(cameleerCfg.Queues)
	if err != nil {
		return fmt.Errorf("building queues: %w", err)
	}

	e, err := engine.New(engine.Config{
		Defaults:          cameleerCfg.Defaults,
		Logger:            logger,
		StaticContextPath: cameleerCfg.StaticContextPath,
		Host:              engine.NoopHost(),
	}, queues)
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}

	if instrument != "none" {
		if err := attachControlSurface(e, provider, instrument, logger); err != nil {
			return fmt.Errorf("attaching control surface: %w", err)
		}
	}

	if noRun {
		return nil
	}

	configs, err := provider.GetAllTaskConfigs()
	if err != nil {
		return fmt.Errorf("loading task configs: %w", err)
	}
	if err := e.LoadTasks(configs); err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	e.RunAsync()
	return nil
}

func buildQueues(specs []configprovider.QueueConfig) ([]engine.QueueSpec, error) {
	out := make([]engine.QueueSpec, 0, len(specs))
	for _, s := range specs {
		switch s.Kind {
		case queue.KindParallel, queue.KindCost:
		default:
			return nil, fmt.Errorf("unrecognized queue kind %q for queue %q", s.Kind, s.Name)
		}
		out = append(out, engine.QueueSpec{
			Name:               s.Name,
			Kind:               s.Kind,
			Default:            s.Default,
			Parallelism:        s.Parallelism,
			Capabilities:       s.Capabilities,
			AllowExclusiveJobs: s.AllowExclusiveJobs,
		})
	}
	return out, nil
}

func attachControlSurface(e *engine.Engine, provider configprovider.ConfigProvider, spec string, logger logging.Logger) error {
	dispatcher := control.NewDispatcher(e, provider.GetAllTaskConfigs)

	switch {
	case spec == "stdin":
		go control.NewStdinSurface(dispatcher, logger).Run(os.Stdin)
		return nil
	case strings.HasPrefix(spec, "http"):
		port := 8080
		if _, after, ok := strings.Cut(spec, "-"); ok {
			p, err := strconv.Atoi(after)
			if err != nil {
				return fmt.Errorf("invalid http control port %q", after)
			}
			port = p
		}
		surface := control.NewHTTPSurface(dispatcher, logger)
		go func() {
			if err := surface.ListenAndServe(port); err != nil {
				logger.Error("control", "http control surface stopped", "err", err.Error())
			}
		}()
		return nil
	default:
		return fmt.Errorf("unrecognized --instrument value %q", spec)
	}
}
