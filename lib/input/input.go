// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package input defines the closed set of video input names a monitor
// can be switched to, and their MCCS "Input Select" (VCP 0x60) codes.
//
// Names are validated when configuration is decoded: State implements
// encoding.TextUnmarshaler and yaml.Unmarshaler, so an unknown literal
// in a config file fails the load instead of surfacing during
// reconciliation.
//
// The three DisplayPort names share a single code (0x0F). Selecting
// DP2 or DP3 therefore behaves exactly like DP1, and a monitor reporting
// 0x0F decodes as DP1. This mirrors the taxonomy the tool has always
// shipped with and is very likely a defect (MCCS assigns 0x10 to a
// second DisplayPort input), but the intended mapping for DP3 is not
// known, so it is kept as is.
package input

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// VCPInputSelect is the MCCS feature code for the active input source.
const VCPInputSelect = 0x60

// Code is the raw VCP 0x60 value a monitor reports or accepts.
type Code uint16

// String formats the code the way MCCS tables do ("0x11").
func (c Code) String() string {
	return fmt.Sprintf("0x%02X", uint16(c))
}

// State is a named video input.
type State string

const (
	DP1   State = "DP1"
	DP2   State = "DP2"
	DP3   State = "DP3"
	HDMI1 State = "HDMI1"
	HDMI2 State = "HDMI2"
	HDMI3 State = "HDMI3"
)

// codes maps every valid State to its VCP value. DP1..DP3 collapse to
// one value; see the package documentation.
var codes = map[State]Code{
	DP1:   0x0F,
	DP2:   0x0F,
	DP3:   0x0F,
	HDMI1: 0x11,
	HDMI2: 0x12,
	HDMI3: 0x13,
}

// decodeOrder fixes which name a shared code decodes to.
var decodeOrder = []State{DP1, DP2, DP3, HDMI1, HDMI2, HDMI3}

// ErrUnknownState is returned for names outside the closed set.
var ErrUnknownState = errors.New("unknown input state")

// All returns every valid State in declaration order.
func All() []State {
	all := make([]State, len(decodeOrder))
	copy(all, decodeOrder)
	return all
}

// Parse validates a literal input name. Matching is exact: "hdmi1" is
// rejected, as are names with surrounding whitespace.
func Parse(name string) (State, error) {
	state := State(name)
	if _, ok := codes[state]; !ok {
		return "", fmt.Errorf("%w %q (valid: %s)", ErrUnknownState, name, validNames())
	}
	return state, nil
}

// Valid reports whether s is one of the known names.
func (s State) Valid() bool {
	_, ok := codes[s]
	return ok
}

// Code returns the VCP 0x60 value for s. Panics on an invalid State,
// which can only be constructed by bypassing Parse.
func (s State) Code() Code {
	code, ok := codes[s]
	if !ok {
		panic(fmt.Sprintf("input: Code called on invalid state %q", string(s)))
	}
	return code
}

// FromCode maps a VCP value read from a monitor back to a name.
// Returns false for codes that no configured name uses (USB-C, DVI,
// analog inputs and vendor extensions).
func FromCode(code Code) (State, bool) {
	for _, state := range decodeOrder {
		if codes[state] == code {
			return state, true
		}
	}
	return "", false
}

// Describe returns the input name for code when one exists, otherwise
// the hex code. Used for log output and device listings.
func Describe(code Code) string {
	if state, ok := FromCode(code); ok {
		return string(state)
	}
	return code.String()
}

// UnmarshalText implements encoding.TextUnmarshaler. encoding/json
// uses it for string values, which makes JSON config decoding reject
// unknown names.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *State) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: input state must be a string", node.Line)
	}
	parsed, err := Parse(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}

func validNames() string {
	names := make([]string, 0, len(codes))
	for state := range codes {
		names = append(names, string(state))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
