// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build cgo

package usb

import (
	"context"
	"fmt"

	"github.com/sstallion/go-hid"
)

// HIDEnumerator lists HID-class devices through hidapi. Use it when
// the watched device is a keyboard, mouse, or other HID peripheral and
// sysfs is unavailable (containers without /sys/bus/usb).
type HIDEnumerator struct{}

// NewHIDEnumerator initializes hidapi. Call Close at shutdown.
func NewHIDEnumerator() (*HIDEnumerator, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("%w: hidapi init: %w", ErrBackend, err)
	}
	return &HIDEnumerator{}, nil
}

// Devices enumerates all HID interfaces and folds interfaces of the
// same physical device (same ID and serial) into one entry.
func (e *HIDEnumerator) Devices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type deviceKey struct {
		id     ID
		serial string
	}
	seen := make(map[deviceKey]bool)
	var devices []Device

	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		id := ID{Vendor: info.VendorID, Product: info.ProductID}
		key := deviceKey{id: id, serial: info.SerialNbr}
		if seen[key] {
			return nil
		}
		seen[key] = true
		devices = append(devices, Device{
			ID:           id,
			Path:         info.Path,
			Manufacturer: info.MfrStr,
			Product:      info.ProductStr,
			Serial:       info.SerialNbr,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: hid enumerate: %w", ErrBackend, err)
	}
	return devices, nil
}

// Close releases hidapi resources.
func (e *HIDEnumerator) Close() error {
	return hid.Exit()
}
