// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// usb-kvm switches the video input of a fixed set of monitors
// whenever one watched USB device (typically a USB switch or a
// keyboard receiver) appears or disappears, turning a plain USB
// switch into a KVM.
//
// Subcommands:
//
//   - run: the long-running switcher. Polls USB presence and drives
//     each monitor to its on_connect_input or on_disconnect_input
//     over DDC/CI.
//   - devices: list attached monitors (identity, model, inputs) and
//     USB devices, to fill in a config file.
//   - watch: print USB devices as they come and go, to find the id of
//     the device to watch.
//   - init: write a config skeleton for the attached monitors.
//   - version: print build information.
//
// Monitor control needs read-write access to /dev/i2c-* (the i2c-dev
// module loaded and the user in the i2c group, or a udev rule).
package main
