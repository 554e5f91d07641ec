package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/corvid-run/splitrt/internal/config"
	"github.com/corvid-run/splitrt/internal/guestrt"
	"github.com/corvid-run/splitrt/internal/logger"
	"github.com/corvid-run/splitrt/internal/reload"
	"github.com/corvid-run/splitrt/internal/runtime"
)

func main() {
	var (
		configPath   string
		processFlag  string
		tickRateFlag float64
		logLevelFlag string
		logFileFlag  string
		watchFlag    bool
	)

	root := &cobra.Command{
		Use:   "splitrt",
		Short: "splitrt — sandboxed auto-splitter runtime",
		Long:  "Embeds a WebAssembly auto-splitter guest and drives a speedrun timer by reading a target process's memory.",
	}

	runCmd := &cobra.Command{
		Use:   "run <guest.wasm>",
		Short: "Load a guest module and drive the tick loop until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := config.Overrides{
				ProcessName: processFlag,
				TickRateHz:  tickRateFlag,
				LogLevel:    logLevelFlag,
				LogFile:     logFileFlag,
			}
			if cmd.Flags().Changed("watch") {
				overrides.Watch = &watchFlag
			}
			return run(args[0], configPath, overrides)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "splitrt.yaml", "path to the runtime config file")
	runCmd.Flags().StringVar(&processFlag, "process", "", "override the target process name")
	runCmd.Flags().Float64Var(&tickRateFlag, "tick-rate", 0, "override the tick rate, in ticks per second")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "override the log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&logFileFlag, "log-file", "", "override the log file path")
	runCmd.Flags().BoolVar(&watchFlag, "watch", false, "hot-reload the guest module on change")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loaded bundles the pieces of a running guest that a hot reload replaces
// as a unit: a fresh Environment (pointer paths are guest-declared and do
// not survive a recompile), its Driver, and the wazero instance backing
// both.
type loaded struct {
	env      *runtime.Environment
	driver   *runtime.Driver
	instance *guestrt.Instance
}

func loadGuest(ctx context.Context, wasmPath string, cfg config.Config, log *slog.Logger) (*loaded, error) {
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("read guest module %s: %w", wasmPath, err)
	}

	env := runtime.NewEnvironment()
	env.ProcessName = cfg.ProcessName
	env.SetTickRate(cfg.TickRateHz)

	driver := runtime.NewDriver(env, nil, log)

	instance, err := guestrt.Load(ctx, wasmBytes, env, driver, log, "")
	if err != nil {
		return nil, fmt.Errorf("load guest module %s: %w", wasmPath, err)
	}
	driver.Guest = instance.Guest

	log.Info("loaded guest module",
		"path", wasmPath,
		"size", humanize.Bytes(uint64(len(wasmBytes))),
		"process", cfg.ProcessName,
		"tick_rate_hz", cfg.TickRateHz,
	)
	return &loaded{env: env, driver: driver, instance: instance}, nil
}

func run(wasmPath, configPath string, overrides config.Overrides) error {
	fileCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	cfg := fileCfg.Apply(overrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id := runtime.NewEnvironment().ID // stamp the logger before the real Environment exists
	log, err := logger.Init(cfg.Log.Level, cfg.Log.File, id)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	current, err := loadGuest(ctx, wasmPath, cfg, log)
	if err != nil {
		return err
	}
	defer current.instance.Close(ctx)

	var watcher *reload.Watcher
	var reloads chan string
	if cfg.Watch {
		watcher, err = reload.New(log)
		if err != nil {
			return fmt.Errorf("start reload watcher: %w", err)
		}
		defer watcher.Close()

		watchPaths := []string{wasmPath}
		if configPath != "" {
			watchPaths = append(watchPaths, configPath)
		}
		if err := watcher.Watch(watchPaths...); err != nil {
			return fmt.Errorf("watch guest module: %w", err)
		}

		reloads = make(chan string, 1)
		go watcher.Run(ctx, func(path string) {
			select {
			case reloads <- path:
			default: // a reload is already pending; coalesce
			}
		})
	}

	state := runtime.NotRunning
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if reloads != nil {
			select {
			case path := <-reloads:
				log.Info("reloading guest module", "path", path)
				next, err := loadGuest(ctx, wasmPath, cfg, log)
				if err != nil {
					log.Warn("reload failed, keeping previous guest", "err", err)
				} else {
					stale := current
					current = next
					state = runtime.NotRunning
					stale.instance.Close(ctx)
				}
			default:
			}
		}

		current.driver.SetState(state)
		if action, ok := current.driver.Step(); ok {
			fmt.Println(action)
			log.Info("timer action", "action", action.String())
			switch action {
			case runtime.Start:
				state = runtime.Running
			case runtime.Reset:
				state = runtime.NotRunning
			}
		}
		current.driver.Sleep()
	}
}
