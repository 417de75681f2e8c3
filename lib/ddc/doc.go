// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ddc speaks DDC/CI (VESA Display Data Channel Command
// Interface) to a monitor over an I2C bus.
//
// A [Bus] wraps any io.ReadWriter on which each Write is one I2C write
// transaction and each Read is one I2C read transaction, addressed to
// the monitor's DDC/CI slave address (0x37). On Linux, [OpenI2C] opens
// /dev/i2c-N and binds that address with the I2C_SLAVE ioctl.
//
// Framing (MCCS 2.2 / DDC/CI 1.1):
//
//	request: 0x51 | 0x80+len | payload... | xor(0x6E, 0x51, 0x80+len, payload...)
//	reply:   0x6E | 0x80+len | payload... | xor(0x50, 0x6E, 0x80+len, payload...)
//
// Monitors are slow and frequently answer garbage while busy. Every
// reply is validated (source byte, length, opcode, checksum) and
// rejects wrap [ErrMalformedReply]; callers decide whether to retry.
// A zero-length reply is the DDC/CI "null message" a display sends
// when it is not ready, and is reported the same way.
//
// Timing follows the DDC/CI minimums using the injected
// clock: 40 ms between a request and reading its reply, 50 ms between
// the end of one command and the start of the next.
package ddc
