// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package usb

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrBackend is wrapped by errors from an enumeration backend that
// could not list devices at all. It never means "device not found".
var ErrBackend = errors.New("usb enumeration backend failure")

// Device describes one attached USB device.
type Device struct {
	ID ID

	// Path is the backend's location for the device: the sysfs name
	// ("1-2.3") or the hidraw path.
	Path string

	// Descriptor strings. Empty when the device has none or the
	// backend could not read them (permissions).
	Manufacturer string
	Product      string
	Serial       string
}

// Describe formats the device like the device listing does:
// "046d:c52b (Logitech USB Receiver)".
func (d Device) Describe() string {
	manufacturer := d.Manufacturer
	if manufacturer == "" {
		manufacturer = "Unknown"
	}
	product := d.Product
	if product == "" {
		product = "Unknown"
	}
	return fmt.Sprintf("%s (%s %s)", d.ID, manufacturer, product)
}

// Enumerator lists currently attached USB devices. Each call performs
// a fresh enumeration.
type Enumerator interface {
	Devices(ctx context.Context) ([]Device, error)
}

// Probe answers whether one watched device is attached.
type Probe struct {
	id         ID
	enumerator Enumerator
}

// NewProbe creates a Probe for id backed by enumerator.
func NewProbe(id ID, enumerator Enumerator) *Probe {
	return &Probe{id: id, enumerator: enumerator}
}

// ID returns the watched device identity.
func (p *Probe) ID() ID { return p.id }

// Connected enumerates devices and reports whether the watched ID is
// among them. Errors wrap ErrBackend.
func (p *Probe) Connected(ctx context.Context) (bool, error) {
	devices, err := p.enumerator.Devices(ctx)
	if err != nil {
		if errors.Is(err, ErrBackend) {
			return false, err
		}
		return false, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	for _, device := range devices {
		if device.ID == p.id {
			return true, nil
		}
	}
	return false, nil
}

// Change is the difference between two enumerations.
type Change struct {
	Added   []ID
	Removed []ID
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Diff compares two enumerations by device ID multiset. A second unit
// of an already attached model shows up as Added even though its ID
// was present before.
func Diff(before, after []Device) Change {
	counts := make(map[ID]int)
	for _, device := range before {
		counts[device.ID]--
	}
	for _, device := range after {
		counts[device.ID]++
	}

	var change Change
	for id, count := range counts {
		for ; count > 0; count-- {
			change.Added = append(change.Added, id)
		}
		for ; count < 0; count++ {
			change.Removed = append(change.Removed, id)
		}
	}
	sortIDs(change.Added)
	sortIDs(change.Removed)
	return change
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Vendor != ids[j].Vendor {
			return ids[i].Vendor < ids[j].Vendor
		}
		return ids[i].Product < ids[j].Product
	})
}
