// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/joermo/usb-kvm/cmd/usb-kvm/cli"
	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/config"
	"github.com/joermo/usb-kvm/lib/kvm"
	"github.com/joermo/usb-kvm/lib/usb"
	"github.com/joermo/usb-kvm/lib/version"
)

func runCommand() *cli.Command {
	var (
		configPath string
		dumb       bool
		verbose    bool
	)

	return &cli.Command{
		Name:    "run",
		Summary: "Switch monitor inputs as the USB device comes and goes",
		Description: `Run the switcher until interrupted.

On start every monitor is driven to the input matching the current
USB presence. After that, each change of presence triggers one
reconciliation pass. With smart switching (the default) each
monitor's current input is read first and monitors already on the
right input are left alone.

The config file is --config, else $USB_KVM_CONFIG, else ./config.yaml.`,
		Usage: "usb-kvm run [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVarP(&configPath, "config", "c", "", "config file (YAML, or JSON with comments)")
			flagSet.BoolVarP(&dumb, "dumb", "d", false, "disable smart switching: always write the desired input")
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging, including each monitor's current input")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if dumb {
				cfg.SmartSwitching = false
			}

			logger := cli.NewCommandLogger(verbose).With("command", "run")
			logger.Info("usb-kvm starting",
				"version", version.Info(),
				"usb_device", cfg.USBDevice.String(),
				"monitors", len(cfg.Monitors),
				"smart_switching", cfg.SmartSwitching,
			)
			if err := runSwitcher(ctx, cfg, clock.Real(), logger); err != nil {
				logger.Error("usb-kvm stopped", "error", err)
				return &cli.ExitError{Code: 1}
			}
			logger.Info("usb-kvm shutting down")
			return nil
		},
	}
}

// loadConfig resolves the config path: the flag, then
// $USB_KVM_CONFIG, then config.DefaultPath.
func loadConfig(flagPath string) (*config.Config, error) {
	if flagPath != "" {
		return config.LoadFile(flagPath)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.LoadFile(config.DefaultPath)
}

// switcher is the assembled reconciliation engine.
type switcher struct {
	loop    *kvm.Loop
	session *kvm.Session
	release func() error
}

// newSwitcher wires the engine for cfg. wake may be nil.
func newSwitcher(cfg *config.Config, clk clock.Clock, logger *slog.Logger, wake <-chan struct{}) (*switcher, error) {
	usbDevices, release, err := openUSB(cfg.Daemon)
	if err != nil {
		return nil, err
	}
	monitors := openMonitors(cfg.Daemon, clk)

	prober := kvm.NewProber(clk, logger)
	resolver := kvm.NewResolver(monitors, prober, clk, logger, cfg.Daemon.TopologyAttempts)
	reconciler := kvm.NewReconciler(monitors, resolver, clk, logger)
	session := kvm.NewSession(cfg)

	loop := kvm.NewLoop(kvm.LoopConfig{
		Presence: usb.NewProbe(cfg.USBDevice, usbDevices),
		Switcher: reconciler,
		Session:  session,
		Clock:    clk,
		Logger:   logger,
		Interval: time.Duration(cfg.Daemon.PollInterval),
		Wake:     wake,
	})
	return &switcher{loop: loop, session: session, release: release}, nil
}

// runSwitcher runs the engine until ctx is cancelled (nil) or a fatal
// error stops it.
func runSwitcher(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wake <-chan struct{}
	if cfg.Daemon.HotplugWakeup {
		hotplug, err := usb.WatchHotplug(ctx, cfg.Daemon.DevRoot, logger)
		if err != nil {
			// Polling alone still works, only slower to react.
			logger.Warn("usb hotplug wakeups unavailable", "error", err)
		} else {
			wake = hotplug
		}
	}

	engine, err := newSwitcher(cfg, clk, logger, wake)
	if err != nil {
		return err
	}
	defer releaseUSB(logger, engine.release)
	return engine.loop.Run(ctx)
}
