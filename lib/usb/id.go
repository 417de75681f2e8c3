// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package usb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidID is wrapped by every ParseID failure.
var ErrInvalidID = errors.New("invalid USB device id")

// ID identifies a USB device model by vendor and product.
type ID struct {
	Vendor  uint16
	Product uint16
}

// ParseID parses the canonical "vvvv:pppp" form printed by lsusb and
// by "usb-kvm devices": exactly four hexadecimal digits on each side,
// each optionally prefixed with 0x.
func ParseID(text string) (ID, error) {
	vendorText, productText, found := strings.Cut(text, ":")
	if !found {
		return ID{}, fmt.Errorf("%w %q: expected vendor:product", ErrInvalidID, text)
	}
	vendor, err := parseHex16(vendorText)
	if err != nil {
		return ID{}, fmt.Errorf("%w %q: vendor: %v", ErrInvalidID, text, err)
	}
	product, err := parseHex16(productText)
	if err != nil {
		return ID{}, fmt.Errorf("%w %q: product: %v", ErrInvalidID, text, err)
	}
	return ID{Vendor: vendor, Product: product}, nil
}

func parseHex16(text string) (uint16, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if len(digits) != 4 {
		return 0, fmt.Errorf("want 4 hex digits, got %q", text)
	}
	value, err := strconv.ParseUint(digits, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("not hexadecimal: %q", text)
	}
	return uint16(value), nil
}

// String returns the canonical "vvvv:pppp" form.
func (id ID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.Vendor == 0 && id.Product == 0
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. The value must be a
// quoted or plain string; YAML would otherwise read "1234:5678" as a
// sexagesimal integer in some dialects.
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: usb device id must be a string", node.Line)
	}
	parsed, err := ParseID(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*id = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (id ID) MarshalYAML() (any, error) {
	return id.String(), nil
}
