// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package usb answers "is the watched device attached right now?".
//
// [ParseID] turns the canonical "vvvv:pppp" text form into an [ID].
// [Probe] performs a fresh enumeration on every call through an
// [Enumerator] and never caches: presence can change between any two
// polls. Two enumerators exist:
//
//   - [SysfsEnumerator] walks /sys/bus/usb/devices. It sees every USB
//     device (hubs, switches, docks) and needs no cgo or privileges.
//
//   - [HIDEnumerator] lists HID interfaces through hidapi
//     (github.com/sstallion/go-hid). It only sees HID-class devices
//     and is compiled only with cgo.
//
// Enumeration failures wrap [ErrBackend] so callers can tell "the
// device is absent" (false, nil) from "the enumeration backend is
// unusable" (false, error). The daemon treats the latter as fatal.
//
// [WatchHotplug] uses fsnotify on /dev/bus/usb to wake the poll loop
// early when device nodes appear or disappear. It is an optimization
// only: presence is still decided by [Probe].
package usb
