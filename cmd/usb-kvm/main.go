// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/joermo/usb-kvm/cmd/usb-kvm/cli"
	"github.com/joermo/usb-kvm/lib/process"
	"github.com/joermo/usb-kvm/lib/version"
)

func main() {
	// A fatal switcher error has already been logged and arrives as a
	// cli.ExitError; process.Exit does not print it again.
	process.Exit(run())
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root(os.Stdout).Execute(ctx, os.Args[1:])
}

// root builds the command tree. Listings and generated files go to
// stdout; logs go to stderr.
func root(stdout io.Writer) *cli.Command {
	var showVersion bool
	command := &cli.Command{
		Name: "usb-kvm",
		Description: `usb-kvm: switch monitor inputs when a USB device comes and goes.

Watches one USB device (vendor:product) and sets every configured
monitor to its on_connect_input while the device is attached and to
its on_disconnect_input while it is not, using DDC/CI.`,
		Examples: []cli.Example{
			{
				Description: "Find the id of your USB switch, then list monitors",
				Command:     "usb-kvm watch && usb-kvm devices",
			},
			{
				Description: "Write a config for the attached monitors",
				Command:     "usb-kvm init --usb-device 046d:c52b --output config.yaml",
			},
			{
				Description: "Run the switcher",
				Command:     "usb-kvm run --config config.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("usb-kvm", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			if showVersion {
				fmt.Fprintf(stdout, "usb-kvm %s\n", version.Info())
				return nil
			}
			return errors.New("subcommand required\n\nRun 'usb-kvm --help' for usage.")
		},
	}
	command.Subcommands = []*cli.Command{
		runCommand(),
		devicesCommand(stdout),
		watchCommand(stdout),
		initCommand(stdout),
		{
			Name:    "version",
			Summary: "Print version information",
			Run: func(_ context.Context, args []string) error {
				fmt.Fprintf(stdout, "usb-kvm %s\n", version.Full())
				return nil
			},
		},
	}
	return command
}
