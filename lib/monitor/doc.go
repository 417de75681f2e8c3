// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor enumerates attached displays and exposes the one
// control the switcher needs: the MCCS input-select feature (VCP 0x60).
//
// A [Handle] is valid for a single enumeration. Handle order and bus
// numbers may change between enumerations (dock replugs, GPU resets),
// so callers key persistent state on [Identity], which is derived from
// the display's EDID and survives renumbering.
//
// [SysfsEnumerator] is the Linux implementation: it walks DRM
// connectors under /sys/class/drm, finds each connector's DDC i2c
// adapter, and opens /dev/i2c-N only when a command is first issued.
package monitor
