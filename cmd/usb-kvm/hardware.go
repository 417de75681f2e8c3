// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/config"
	"github.com/joermo/usb-kvm/lib/monitor"
	"github.com/joermo/usb-kvm/lib/usb"
)

// hardwareFlags locate the hardware for commands that run without a
// config file. `run` takes the same settings from the daemon section.
type hardwareFlags struct {
	sysRoot string
	devRoot string
	backend string
}

func (h *hardwareFlags) bind(flagSet *pflag.FlagSet) {
	defaults := config.Default().Daemon
	flagSet.StringVar(&h.sysRoot, "sys-root", defaults.SysRoot, "root of the sysfs tree")
	flagSet.StringVar(&h.devRoot, "dev-root", defaults.DevRoot, "root of the device tree holding i2c-* nodes")
	flagSet.StringVar(&h.backend, "usb-backend", defaults.USBBackend, "USB enumeration backend: sysfs or hid")
}

func (h *hardwareFlags) daemon() config.DaemonConfig {
	daemon := config.Default().Daemon
	daemon.SysRoot = h.sysRoot
	daemon.DevRoot = h.devRoot
	daemon.USBBackend = h.backend
	return daemon
}

// openUSB returns the enumerator selected by daemon.USBBackend and a
// function releasing it.
func openUSB(daemon config.DaemonConfig) (usb.Enumerator, func() error, error) {
	switch daemon.USBBackend {
	case config.BackendSysfs, "":
		return usb.NewSysfsEnumerator(daemon.SysRoot), func() error { return nil }, nil
	case config.BackendHID:
		enumerator, err := usb.NewHIDEnumerator()
		if err != nil {
			return nil, nil, err
		}
		return enumerator, enumerator.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown usb backend %q (want %q or %q)",
			daemon.USBBackend, config.BackendSysfs, config.BackendHID)
	}
}

func openMonitors(daemon config.DaemonConfig, clk clock.Clock) monitor.Enumerator {
	return monitor.NewSysfsEnumerator(daemon.SysRoot, daemon.DevRoot, clk)
}
