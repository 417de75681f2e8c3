// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/joermo/usb-kvm/cmd/usb-kvm/cli"
	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/usb"
)

const defaultWatchInterval = 250 * time.Millisecond

func watchCommand(stdout io.Writer) *cli.Command {
	var (
		hardware hardwareFlags
		interval time.Duration
	)

	return &cli.Command{
		Name:    "watch",
		Summary: "Print USB devices as they are attached and removed",
		Description: `Print the attached USB devices, then print every device attached or
removed until interrupted. Plug and unplug the device (or toggle the
USB switch) to find the vendor:product id for usb_device.`,
		Usage: "usb-kvm watch [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			hardware.bind(flagSet)
			flagSet.DurationVar(&interval, "interval", defaultWatchInterval, "polling interval")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			usbDevices, release, err := openUSB(hardware.daemon())
			if err != nil {
				return err
			}
			defer releaseUSB(cli.NewCommandLogger(false), release)

			return watchDevices(ctx, stdout, usbDevices, clock.Real(), interval)
		},
	}
}

// watchDevices prints the current devices, then one line per device
// attached ("+") or removed ("-") each interval. Returns nil when ctx
// is cancelled.
func watchDevices(ctx context.Context, w io.Writer, usbDevices usb.Enumerator, clk clock.Clock, interval time.Duration) error {
	styles := cli.NewStyles(w)

	before, err := usbDevices.Devices(ctx)
	if err != nil {
		return fmt.Errorf("listing usb devices: %w", err)
	}
	fmt.Fprintln(w, styles.Heading.Render("Attached USB devices"))
	for _, device := range before {
		fmt.Fprintf(w, "  %s\n", device.Describe())
	}
	fmt.Fprintln(w, styles.Faint.Render("Watching for changes, Ctrl-C to stop."))

	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		after, err := usbDevices.Devices(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("listing usb devices: %w", err)
		}

		change := usb.Diff(before, after)
		for _, id := range change.Added {
			fmt.Fprintln(w, styles.Added.Render("+ "+describeID(id, after)))
		}
		for _, id := range change.Removed {
			fmt.Fprintln(w, styles.Removed.Render("- "+describeID(id, before)))
		}
		before = after
	}
}

// describeID describes id using the first matching device in devices.
func describeID(id usb.ID, devices []usb.Device) string {
	for _, device := range devices {
		if device.ID == id {
			return device.Describe()
		}
	}
	return id.String()
}
