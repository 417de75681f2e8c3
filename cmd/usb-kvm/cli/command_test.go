// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "usb-kvm",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(_ context.Context, args []string) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "devices",
				Run: func(_ context.Context, args []string) error {
					called = "devices"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"devices"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "devices" {
		t.Errorf("dispatched to %q, want %q", called, "devices")
	}
}

func TestCommand_Execute_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	var got any
	root := &Command{
		Name: "usb-kvm",
		Subcommands: []*Command{
			{
				Name: "run",
				Run: func(ctx context.Context, args []string) error {
					got = ctx.Value(key{})
					return nil
				},
			},
		},
	}

	if err := root.Execute(ctx, []string{"run"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got != "marker" {
		t.Errorf("Run saw context value %v, want %q", got, "marker")
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var configPath string
	var dumb, verbose bool
	var rest []string

	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVarP(&configPath, "config", "c", "config.yaml", "config file")
			flagSet.BoolVarP(&dumb, "dumb", "d", false, "disable smart switching")
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			rest = args
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"-c", "/etc/usb-kvm.yaml", "-dv", "extra"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if configPath != "/etc/usb-kvm.yaml" {
		t.Errorf("configPath = %q, want %q", configPath, "/etc/usb-kvm.yaml")
	}
	if !dumb || !verbose {
		t.Errorf("dumb = %v, verbose = %v, want both true", dumb, verbose)
	}
	if len(rest) != 1 || rest[0] != "extra" {
		t.Errorf("args = %v, want [extra]", rest)
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.Bool("verbose", false, "debug logging")
			flagSet.String("config", "config.yaml", "config file")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--verbsoe"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "did you mean --verbose") {
		t.Errorf("error = %q, want suggestion for '--verbose'", errStr)
	}
	if !strings.Contains(errStr, "verbsoe") {
		t.Errorf("error = %q, should mention the bad flag", errStr)
	}
	if !strings.Contains(errStr, "--help") {
		t.Errorf("error = %q, should point to --help", errStr)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.Bool("verbose", false, "debug logging")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
	if !strings.Contains(err.Error(), "--help") {
		t.Errorf("error = %q, should point to --help", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "usb-kvm",
		Subcommands: []*Command{
			{Name: "run"},
			{Name: "devices"},
			{Name: "version"},
		},
	}

	err := root.Execute(context.Background(), []string{"devcies"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), "did you mean \"devices\"") {
		t.Errorf("error = %q, want suggestion for 'devices'", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandNoSuggestion(t *testing.T) {
	root := &Command{
		Name: "usb-kvm",
		Subcommands: []*Command{
			{Name: "devices"},
			{Name: "watch"},
		},
	}

	err := root.Execute(context.Background(), []string{"zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not contain suggestion for distant input", err.Error())
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			var buffer bytes.Buffer
			root := &Command{
				Name:       "usb-kvm",
				Summary:    "Switch monitor inputs on USB presence",
				helpOutput: &buffer,
				Subcommands: []*Command{
					{Name: "run", Summary: "Run the switcher"},
				},
			}

			if err := root.Execute(context.Background(), []string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
			if !strings.Contains(buffer.String(), "Run the switcher") {
				t.Errorf("help output = %q, want the subcommand listing", buffer.String())
			}
		})
	}
}

func TestCommand_Execute_HelpAfterFlags(t *testing.T) {
	var buffer bytes.Buffer
	ran := false
	command := &Command{
		Name:       "run",
		helpOutput: &buffer,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.Bool("dumb", false, "disable smart switching")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			ran = true
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--dumb", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if ran {
		t.Error("Run was called for a help request")
	}
	if !strings.Contains(buffer.String(), "--dumb") {
		t.Errorf("help output = %q, want the flag listing", buffer.String())
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	var buffer bytes.Buffer
	root := &Command{
		Name:       "usb-kvm",
		helpOutput: &buffer,
		Subcommands: []*Command{
			{Name: "run", Summary: "Run the switcher"},
		},
	}

	err := root.Execute(context.Background(), []string{})
	if err == nil {
		t.Fatal("Execute() = nil, want error for missing subcommand")
	}
	if !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %q, want 'subcommand required'", err.Error())
	}
	if !strings.Contains(buffer.String(), "Commands:") {
		t.Errorf("help output = %q, want the command listing", buffer.String())
	}
}

func TestCommand_Execute_ReturnsRunError(t *testing.T) {
	want := &ExitError{Code: 3}
	command := &Command{
		Name: "run",
		Run:  func(_ context.Context, args []string) error { return want },
	}

	err := command.Execute(context.Background(), nil)
	if err != want {
		t.Fatalf("Execute() = %v, want %v", err, want)
	}
	coder, ok := err.(interface{ ExitCode() int })
	if !ok || coder.ExitCode() != 3 {
		t.Errorf("error does not carry exit code 3: %#v", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "usb-kvm",
		Description: "Switch monitor inputs when a USB device comes and goes.",
		Subcommands: []*Command{
			{Name: "run", Summary: "Run the switcher"},
			{Name: "devices", Summary: "List monitors and USB devices"},
			{Name: "version", Summary: "Print version information"},
		},
		Examples: []Example{
			{
				Description: "Run with an explicit config",
				Command:     "usb-kvm run --config /etc/usb-kvm.yaml",
			},
			{
				Description: "Find the id of your USB switch",
				Command:     "usb-kvm watch",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Switch monitor inputs when a USB device comes and goes.",
		"Usage:",
		"usb-kvm <command> [flags]",
		"Commands:",
		"devices",
		"List monitors and USB devices",
		"Examples:",
		"usb-kvm run --config /etc/usb-kvm.yaml",
		"# Find the id of your USB switch",
		"Run 'usb-kvm <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_PrintHelp_WithFlags(t *testing.T) {
	command := &Command{
		Name:    "run",
		Summary: "Run the switcher",
		Usage:   "usb-kvm run [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringP("config", "c", "config.yaml", "config file")
			flagSet.BoolP("dumb", "d", false, "disable smart switching")
			return flagSet
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"usb-kvm run [flags]",
		"Flags:",
		"-c, --config",
		"-d, --dumb",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_FullName(t *testing.T) {
	root := &Command{Name: "usb-kvm"}
	run := &Command{Name: "run", parent: root}

	if got := root.fullName(); got != "usb-kvm" {
		t.Errorf("root.fullName() = %q, want %q", got, "usb-kvm")
	}
	if got := run.fullName(); got != "usb-kvm run" {
		t.Errorf("run.fullName() = %q, want %q", got, "usb-kvm run")
	}
}
