// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package ddc

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ioctlI2CSlave is I2C_SLAVE from <linux/i2c-dev.h>: set the slave
// address for subsequent read(2) and write(2) calls on the fd.
const ioctlI2CSlave = 0x0703

// SlaveAddress is the 7-bit DDC/CI address of a display.
const SlaveAddress = 0x37

// I2CDevice is an open /dev/i2c-N character device bound to the DDC/CI
// slave address. Each Read and Write is a single I2C transaction.
type I2CDevice struct {
	file *os.File
}

// OpenI2C opens an i2c-dev node and binds it to the display's DDC/CI
// address. The caller must Close the device.
func OpenI2C(path string) (*I2CDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(int(file.Fd()), ioctlI2CSlave, SlaveAddress); err != nil {
		file.Close()
		return nil, fmt.Errorf("I2C_SLAVE 0x%02X on %s: %w", SlaveAddress, path, err)
	}
	return &I2CDevice{file: file}, nil
}

func (d *I2CDevice) Read(buffer []byte) (int, error)  { return d.file.Read(buffer) }
func (d *I2CDevice) Write(buffer []byte) (int, error) { return d.file.Write(buffer) }

// Close releases the device node.
func (d *I2CDevice) Close() error { return d.file.Close() }
