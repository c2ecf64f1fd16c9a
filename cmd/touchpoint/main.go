package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phinze/touchpoint/internal/config"
	"github.com/phinze/touchpoint/internal/delivery"
	"github.com/phinze/touchpoint/internal/dispatch"
	"github.com/phinze/touchpoint/internal/logging"
	"github.com/phinze/touchpoint/internal/registry"
	"github.com/spf13/cobra"
)

var logger = logging.Child("[touchpoint]")

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "touchpoint",
	Short:         "Pointer and touch event delivery, driven by an emulator window or a Stream Deck",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		return applyConfig(loaded)
	},
}

// loadConfig honors --config and loads the config file.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		os.Setenv(config.EnvConfig, configPath)
	}
	return config.Load()
}

// applyConfig layers --log-level over loaded and makes it the current config.
func applyConfig(loaded *config.Config) error {
	if logLevel != "" {
		if !logging.ValidLevel(logLevel) {
			return fmt.Errorf("--log-level %q: want one of %v", logLevel, logging.Levels)
		}
		loaded.Log.Level = logLevel
	}
	logging.SetLevel(loaded.Log.Level)
	cfg = loaded
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(emulateCmd, deckCmd, devicesCmd, statusCmd, setupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// pipeline is the consumer side shared by every command: the registry, the
// dispatcher and the coordinator that feeds it.
type pipeline struct {
	reg   *registry.Registry
	disp  *dispatch.Dispatcher
	coord *delivery.Coordinator
}

// newPipeline builds the pipeline and registers the configured devices.
func newPipeline(cfg *config.Config) (*pipeline, error) {
	reg := registry.Default()
	disp := dispatch.New(reg, cfg.DispatchOptions())
	coord := delivery.New(reg, disp, cfg.DeliveryOptions())

	devs, err := cfg.InputDevices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devs {
		coord.RegisterDevice(dev)
		logger.Debugf("registered configured device %v", dev)
	}
	return &pipeline{reg: reg, disp: disp, coord: coord}, nil
}

func (p *pipeline) Close() {
	if err := p.coord.Close(); err != nil {
		logger.Warnf("closing coordinator: %v", err)
	}
	p.disp.Close()
}
