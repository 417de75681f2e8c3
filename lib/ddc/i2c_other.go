// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package ddc

import (
	"errors"
	"fmt"
	"runtime"
)

// SlaveAddress is the 7-bit DDC/CI address of a display.
const SlaveAddress = 0x37

// I2CDevice is unavailable outside Linux.
type I2CDevice struct{}

// OpenI2C always fails: i2c-dev is a Linux interface.
func OpenI2C(path string) (*I2CDevice, error) {
	return nil, fmt.Errorf("opening %s: %w", path, errors.New("i2c-dev is not supported on "+runtime.GOOS))
}

func (d *I2CDevice) Read(buffer []byte) (int, error)  { return 0, errors.New("i2c-dev unavailable") }
func (d *I2CDevice) Write(buffer []byte) (int, error) { return 0, errors.New("i2c-dev unavailable") }

// Close is a no-op.
func (d *I2CDevice) Close() error { return nil }
