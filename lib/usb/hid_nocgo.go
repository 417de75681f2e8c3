// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !cgo

package usb

import (
	"context"
	"fmt"
)

// HIDEnumerator is unavailable without cgo; hidapi is a C library.
type HIDEnumerator struct{}

// NewHIDEnumerator always fails in builds without cgo.
func NewHIDEnumerator() (*HIDEnumerator, error) {
	return nil, fmt.Errorf("%w: hid backend requires a cgo build", ErrBackend)
}

// Devices always fails in builds without cgo.
func (e *HIDEnumerator) Devices(ctx context.Context) ([]Device, error) {
	return nil, fmt.Errorf("%w: hid backend requires a cgo build", ErrBackend)
}

// Close is a no-op.
func (e *HIDEnumerator) Close() error { return nil }
