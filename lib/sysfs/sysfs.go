// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sysfs holds the small attribute readers shared by the USB
// and DRM enumerators. Every function takes a full path so callers can
// point it at a synthetic tree under t.TempDir().
package sysfs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadString reads a single-line sysfs attribute and returns its
// trimmed content. Returns "" on any error.
func ReadString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ReadHex16 parses a hexadecimal attribute such as idVendor ("046d").
// The second result is false when the file is missing or malformed.
func ReadHex16(path string) (uint16, bool) {
	value := ReadString(path)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(parsed), true
}

// ReadBytes reads a binary attribute (edid) verbatim. Returns nil on
// error or when the attribute is empty, which is how the kernel
// reports a connector without EDID.
func ReadBytes(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil
	}
	return data
}

// LinkBase returns the basename of a symlink's target, e.g. "i2c-5"
// for a connector's ddc link. Returns "" if path is not a symlink.
func LinkBase(path string) string {
	link, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	return filepath.Base(link)
}

// IsConnector returns true for DRM connector names (card0-DP-1,
// card1-HDMI-A-2) but not cards (card0) or render nodes (renderD128).
func IsConnector(name string) bool {
	if !strings.HasPrefix(name, "card") {
		return false
	}
	cardNumber, connector, found := strings.Cut(name[4:], "-")
	if !found || connector == "" || cardNumber == "" {
		return false
	}
	for _, character := range cardNumber {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
