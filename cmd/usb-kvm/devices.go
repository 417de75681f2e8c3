// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/joermo/usb-kvm/cmd/usb-kvm/cli"
	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/input"
	"github.com/joermo/usb-kvm/lib/monitor"
	"github.com/joermo/usb-kvm/lib/usb"
)

func devicesCommand(stdout io.Writer) *cli.Command {
	var hardware hardwareFlags

	return &cli.Command{
		Name:    "devices",
		Summary: "List attached monitors and USB devices",
		Description: `List attached monitors and USB devices.

Monitors are listed in the order the switcher pairs them with config
entries, with the identity to pin an entry to, the model name, the
current input and the inputs the monitor advertises. Querying a
monitor takes a moment; monitors without DDC/CI show errors instead.`,
		Usage: "usb-kvm devices [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("devices", pflag.ContinueOnError)
			hardware.bind(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			logger := cli.NewCommandLogger(false)
			daemon := hardware.daemon()
			usbDevices, release, err := openUSB(daemon)
			if err != nil {
				return err
			}
			defer releaseUSB(logger, release)

			return listDevices(ctx, stdout, logger, openMonitors(daemon, clock.Real()), usbDevices)
		},
	}
}

// listDevices prints every monitor and USB device. A monitor that
// does not answer is still listed; enumeration failures are errors.
func listDevices(ctx context.Context, w io.Writer, logger *slog.Logger, monitors monitor.Enumerator, usbDevices usb.Enumerator) error {
	styles := cli.NewStyles(w)

	handles, err := monitors.Monitors(ctx)
	if err != nil {
		return fmt.Errorf("listing monitors: %w", err)
	}
	defer closeMonitors(logger, handles)

	fmt.Fprintln(w, styles.Heading.Render(fmt.Sprintf("Monitors (%d)", len(handles))))
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	for index, handle := range handles {
		current := "?"
		if code, err := handle.InputSource(ctx); err == nil {
			current = input.Describe(code)
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		model, inputs := "", "?"
		capabilities, capabilitiesErr := handle.Capabilities(ctx)
		if capabilitiesErr == nil {
			model = capabilities.Model
			inputs = describeInputs(capabilities.Inputs)
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		fmt.Fprintf(tw, "  %d\t%s\t%s\tcurrent: %s\tinputs: %s\n",
			index+1,
			handle.Describe(),
			styles.Identifier.Render(string(handle.Identity())),
			current,
			inputs,
		)
		if model != "" && !strings.Contains(handle.Describe(), model) {
			fmt.Fprintf(tw, "   \t%s\t\t\t\n", styles.Faint.Render("model: "+model))
		}
		if capabilitiesErr != nil {
			fmt.Fprintf(tw, "   \t%s\t\t\t\n", styles.Warning.Render("no DDC/CI: "+capabilitiesErr.Error()))
		}
	}
	tw.Flush()

	devices, err := usbDevices.Devices(ctx)
	if err != nil {
		return fmt.Errorf("listing usb devices: %w", err)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.Heading.Render(fmt.Sprintf("USB devices (%d)", len(devices))))
	tw = tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	for _, device := range devices {
		fmt.Fprintf(tw, "  %s\t%s\n", device.Describe(), styles.Faint.Render(device.Path))
	}
	return tw.Flush()
}

func describeInputs(codes []input.Code) string {
	if len(codes) == 0 {
		return "none advertised"
	}
	names := make([]string, 0, len(codes))
	for _, code := range codes {
		names = append(names, input.Describe(code))
	}
	return strings.Join(names, " ")
}

// closeMonitors closes every handle, logging the ones that fail.
func closeMonitors(logger *slog.Logger, handles []monitor.Handle) {
	for _, handle := range handles {
		if err := handle.Close(); err != nil {
			logger.Warn("closing monitor", "display", handle.Describe(), "error", err)
		}
	}
}

// releaseUSB releases the USB backend opened by openUSB, logging a
// failure.
func releaseUSB(logger *slog.Logger, release func() error) {
	if err := release(); err != nil {
		logger.Warn("releasing usb backend", "error", err)
	}
}
