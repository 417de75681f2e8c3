// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"strings"
	"testing"
)

// syntheticEDID returns a 128-byte base block whose second descriptor
// is a display product name.
func syntheticEDID(model string, serial byte) []byte {
	edid := make([]byte, 128)
	copy(edid, []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00})
	edid[12] = serial

	descriptor := edid[72:90]
	descriptor[3] = 0xFC
	name := []byte(model + "\n")
	for len(name) < 13 {
		name = append(name, ' ')
	}
	copy(descriptor[5:], name)
	return edid
}

func TestIdentityFromEDID(t *testing.T) {
	first := IdentityFromEDID(syntheticEDID("DELL U2720Q", 1))
	again := IdentityFromEDID(syntheticEDID("DELL U2720Q", 1))
	other := IdentityFromEDID(syntheticEDID("DELL U2720Q", 2))

	if first != again {
		t.Errorf("identity not deterministic: %s vs %s", first, again)
	}
	if first == other {
		t.Errorf("different serials share identity %s", first)
	}
	if !strings.HasPrefix(string(first), "edid:") || len(first) != len("edid:")+32 {
		t.Errorf("identity %q, want edid: followed by 32 hex digits", first)
	}
}

func TestBusIdentity(t *testing.T) {
	if got := BusIdentity(7); got != "i2c:7" {
		t.Errorf("BusIdentity(7) = %q, want i2c:7", got)
	}
}

func TestModelFromEDID(t *testing.T) {
	tests := []struct {
		name string
		edid []byte
		want string
	}{
		{"product name descriptor", syntheticEDID("DELL U2720Q", 0), "DELL U2720Q"},
		{"full-width name", syntheticEDID("LG ULTRAGEAR", 0), "LG ULTRAGEAR"},
		{"short block", make([]byte, 64), ""},
		{"no descriptor", make([]byte, 128), ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ModelFromEDID(test.edid); got != test.want {
				t.Errorf("ModelFromEDID = %q, want %q", got, test.want)
			}
		})
	}
}
