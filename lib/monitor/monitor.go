// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/joermo/usb-kvm/lib/ddc"
	"github.com/joermo/usb-kvm/lib/input"
)

// ErrMalformedResponse is wrapped by errors from InputSource when the
// display answered with a reply that failed validation. It is the only
// read failure worth retrying: the display is present but busy.
var ErrMalformedResponse = ddc.ErrMalformedReply

// Identity is a stable key for one physical display.
type Identity string

// Handle controls one enumerated display. Handles hold an open device
// once used and must be closed.
type Handle interface {
	Identity() Identity

	// Describe returns a human-readable label, e.g.
	// "card1-DP-2 (DELL U2720Q)".
	Describe() string

	InputSource(ctx context.Context) (input.Code, error)
	SetInputSource(ctx context.Context, code input.Code) error
	Capabilities(ctx context.Context) (Capabilities, error)
	Close() error
}

// Enumerator lists the displays currently attached. The order of the
// returned handles is stable for an unchanged topology.
type Enumerator interface {
	Monitors(ctx context.Context) ([]Handle, error)
}

// Capabilities is the subset of a display's MCCS capabilities the
// switcher reports.
type Capabilities struct {
	Model string

	// Inputs lists the input-select codes the display advertises,
	// in the display's order. Empty when it does not advertise any.
	Inputs []input.Code

	Raw string
}

// edidDomainKey keys the EDID hash so identities cannot collide with
// any other BLAKE3 digest of the same bytes.
var edidDomainKey = [32]byte{
	'u', 's', 'b', '-', 'k', 'v', 'm', '.', 'm', 'o', 'n', 'i', 't', 'o', 'r', '.',
	'e', 'd', 'i', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// IdentityFromEDID returns "edid:" followed by the first 16 bytes of
// the keyed BLAKE3 digest of edid, hex encoded. Two identical panels
// with blank serial numbers share an identity.
func IdentityFromEDID(edid []byte) Identity {
	hasher, err := blake3.NewKeyed(edidDomainKey[:])
	if err != nil {
		panic("monitor: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(edid)
	sum := hasher.Sum(nil)
	return Identity("edid:" + hex.EncodeToString(sum[:16]))
}

// BusIdentity is the fallback identity for a display without a
// readable EDID. It is only as stable as the i2c adapter numbering.
func BusIdentity(bus int) Identity {
	return Identity(fmt.Sprintf("i2c:%d", bus))
}

// ModelFromEDID extracts the display product name descriptor (tag
// 0xFC) from a base EDID block. Returns "" when absent.
func ModelFromEDID(edid []byte) string {
	if len(edid) < 128 {
		return ""
	}
	// Four 18-byte descriptors start at offset 54. Display
	// descriptors have a zero pixel clock in their first two bytes.
	for offset := 54; offset <= 108; offset += 18 {
		descriptor := edid[offset : offset+18]
		if descriptor[0] != 0 || descriptor[1] != 0 || descriptor[3] != 0xFC {
			continue
		}
		name, _, _ := strings.Cut(string(descriptor[5:]), "\n")
		return strings.TrimSpace(name)
	}
	return ""
}
