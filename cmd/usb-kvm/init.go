// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/joermo/usb-kvm/cmd/usb-kvm/cli"
	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/config"
	"github.com/joermo/usb-kvm/lib/input"
	"github.com/joermo/usb-kvm/lib/monitor"
	"github.com/joermo/usb-kvm/lib/usb"
)

func initCommand(stdout io.Writer) *cli.Command {
	var (
		hardware     hardwareFlags
		usbDevice    string
		output       string
		onConnect    string
		onDisconnect string
		force        bool
	)

	return &cli.Command{
		Name:    "init",
		Summary: "Write a config file for the attached monitors",
		Description: `Write a config file with one entry per attached monitor.

Every monitor gets the same inputs (--on-connect, --on-disconnect);
edit the file afterwards for per-monitor inputs. Monitors with a
readable, unique EDID are pinned by identity so that reordered connectors do
not swap their settings.`,
		Usage: "usb-kvm init --usb-device vvvv:pppp [flags]",
		Examples: []cli.Example{
			{
				Description: "Switch to HDMI1 while the receiver is attached, DP1 otherwise",
				Command:     "usb-kvm init --usb-device 046d:c52b --on-connect HDMI1 --on-disconnect DP1",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("init", pflag.ContinueOnError)
			hardware.bind(flagSet)
			flagSet.StringVar(&usbDevice, "usb-device", "", "watched USB device as vendor:product in hex (required)")
			flagSet.StringVarP(&output, "output", "o", config.DefaultPath, `config file to write, "-" for stdout`)
			flagSet.StringVar(&onConnect, "on-connect", string(input.HDMI1), "input while the USB device is attached")
			flagSet.StringVar(&onDisconnect, "on-disconnect", string(input.DP1), "input while the USB device is absent")
			flagSet.BoolVar(&force, "force", false, "overwrite an existing file")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if usbDevice == "" {
				return errors.New("--usb-device is required (find it with 'usb-kvm watch')")
			}
			id, err := usb.ParseID(usbDevice)
			if err != nil {
				return fmt.Errorf("--usb-device: %w", err)
			}
			connectState, err := input.Parse(onConnect)
			if err != nil {
				return fmt.Errorf("--on-connect: %w", err)
			}
			disconnectState, err := input.Parse(onDisconnect)
			if err != nil {
				return fmt.Errorf("--on-disconnect: %w", err)
			}

			monitors := openMonitors(hardware.daemon(), clock.Real())
			data, err := configSkeleton(ctx, cli.NewCommandLogger(false), monitors, id, connectState, disconnectState)
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := stdout.Write(data)
				return err
			}
			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			file, err := os.OpenFile(output, flags, 0644)
			if err != nil {
				if errors.Is(err, os.ErrExist) {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
				return err
			}
			if _, err := file.Write(data); err != nil {
				file.Close()
				return fmt.Errorf("writing %s: %w", output, err)
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(stdout, "wrote %s\n", output)
			return nil
		},
	}
}

// skeleton is the subset of config.Config that init writes. The
// daemon section keeps its defaults.
type skeleton struct {
	USBDevice      usb.ID          `yaml:"usb_device"`
	SmartSwitching bool            `yaml:"smart_switching"`
	Monitors       config.Monitors `yaml:"monitors"`
}

// configSkeleton enumerates the attached monitors and renders a
// config for them that passes validation.
func configSkeleton(ctx context.Context, logger *slog.Logger, monitors monitor.Enumerator, id usb.ID, onConnect, onDisconnect input.State) ([]byte, error) {
	handles, err := monitors.Monitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing monitors: %w", err)
	}
	closeMonitors(logger, handles)
	if len(handles) == 0 {
		return nil, errors.New("no monitors with a DDC adapter are connected")
	}

	cfg := config.Default()
	cfg.USBDevice = id
	for index, handle := range handles {
		entry := &config.Monitor{
			Ordinal:      index + 1,
			Name:         handle.Describe(),
			OnConnect:    onConnect,
			OnDisconnect: onDisconnect,
		}
		// Bus numbers move between boots; only EDID identities are
		// worth pinning. Twin panels carry an "@connector" suffix that
		// disappears once one of them is unplugged.
		if identity := string(handle.Identity()); strings.HasPrefix(identity, "edid:") && !strings.Contains(identity, "@") {
			entry.Identity = identity
		}
		cfg.Monitors = append(cfg.Monitors, entry)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generated config is invalid: %w", err)
	}

	var buffer bytes.Buffer
	buffer.WriteString("# usb-kvm configuration. Inputs: " + strings.Join(inputNames(), ", ") + ".\n")
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(skeleton{
		USBDevice:      cfg.USBDevice,
		SmartSwitching: cfg.SmartSwitching,
		Monitors:       cfg.Monitors,
	}); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buffer.Bytes(), nil
}

func inputNames() []string {
	states := input.All()
	names := make([]string, 0, len(states))
	for _, state := range states {
		names = append(names, string(state))
	}
	return names
}
