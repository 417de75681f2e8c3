// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package usb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joermo/usb-kvm/lib/sysfs"
)

// SysfsEnumerator lists USB devices from /sys/bus/usb/devices. Device
// entries are named by bus topology ("1-2.3", "usb1"); interface
// entries contain a colon ("1-2.3:1.0") and are skipped.
type SysfsEnumerator struct {
	// sysRoot is the root of the sysfs filesystem. "/sys" in
	// production; a synthetic tree in tests.
	sysRoot string
}

// NewSysfsEnumerator creates an enumerator reading below sysRoot.
// An empty sysRoot means "/sys".
func NewSysfsEnumerator(sysRoot string) *SysfsEnumerator {
	if sysRoot == "" {
		sysRoot = "/sys"
	}
	return &SysfsEnumerator{sysRoot: sysRoot}
}

// Devices returns every USB device with readable idVendor/idProduct,
// sorted by sysfs name. A missing or unreadable devices directory is
// a backend failure, not an empty bus: every Linux system with USB
// support has at least the root hubs listed there.
func (e *SysfsEnumerator) Devices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Join(e.sysRoot, "bus/usb/devices")
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrBackend, base, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ":") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	devices := make([]Device, 0, len(names))
	for _, name := range names {
		devicePath := filepath.Join(base, name)
		vendor, vendorOK := sysfs.ReadHex16(filepath.Join(devicePath, "idVendor"))
		product, productOK := sysfs.ReadHex16(filepath.Join(devicePath, "idProduct"))
		if !vendorOK || !productOK {
			// Entry vanished mid-enumeration or is not a device.
			continue
		}
		devices = append(devices, Device{
			ID:           ID{Vendor: vendor, Product: product},
			Path:         name,
			Manufacturer: sysfs.ReadString(filepath.Join(devicePath, "manufacturer")),
			Product:      sysfs.ReadString(filepath.Join(devicePath, "product")),
			Serial:       sysfs.ReadString(filepath.Join(devicePath, "serial")),
		})
	}
	return devices, nil
}
