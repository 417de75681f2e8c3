// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCapabilities is wrapped when a capabilities string cannot
// be parsed.
var ErrInvalidCapabilities = errors.New("invalid capabilities string")

// Capabilities is a parsed MCCS capabilities string, e.g.
//
//	(prot(monitor)type(lcd)model(P2419H)cmds(01 02 03 0C F3)vcp(10 12 60(0F 11 12) D6(01 04 05))mccs_ver(2.1))
type Capabilities struct {
	Raw         string
	Protocol    string
	Type        string
	Model       string
	MCCSVersion string
	Commands    []byte

	// Features maps each advertised VCP code to its permitted values.
	// Continuous features map to nil.
	Features map[byte][]uint16
}

// Supports reports whether the display advertises the VCP feature.
func (c Capabilities) Supports(code byte) bool {
	_, ok := c.Features[code]
	return ok
}

// Values returns the permitted values of a non-continuous feature.
func (c Capabilities) Values(code byte) []uint16 {
	return c.Features[code]
}

// ParseCapabilities parses a capabilities string. Unknown top-level
// keys are ignored. The enclosing parentheses are optional because a
// number of displays omit them.
func ParseCapabilities(raw string) (Capabilities, error) {
	capabilities := Capabilities{Raw: raw, Features: map[byte][]uint16{}}

	body := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if strings.HasPrefix(body, "(") {
		inner, rest, err := balanced(body)
		if err != nil {
			return capabilities, err
		}
		if strings.TrimSpace(rest) != "" {
			return capabilities, fmt.Errorf("%w: trailing text %q", ErrInvalidCapabilities, rest)
		}
		body = inner
	}

	for body = strings.TrimSpace(body); body != ""; body = strings.TrimSpace(body) {
		open := strings.IndexByte(body, '(')
		if open < 0 {
			return capabilities, fmt.Errorf("%w: key %q has no value", ErrInvalidCapabilities, body)
		}
		key := strings.ToLower(strings.TrimSpace(body[:open]))
		value, rest, err := balanced(body[open:])
		if err != nil {
			return capabilities, fmt.Errorf("key %q: %w", key, err)
		}
		body = rest

		switch key {
		case "prot":
			capabilities.Protocol = value
		case "type":
			capabilities.Type = value
		case "model":
			capabilities.Model = value
		case "mccs_ver":
			capabilities.MCCSVersion = value
		case "cmds":
			commands, err := parseHexList(value)
			if err != nil {
				return capabilities, fmt.Errorf("cmds: %w", err)
			}
			for _, command := range commands {
				capabilities.Commands = append(capabilities.Commands, byte(command))
			}
		case "vcp":
			if err := parseFeatures(value, capabilities.Features); err != nil {
				return capabilities, fmt.Errorf("vcp: %w", err)
			}
		}
	}
	return capabilities, nil
}

// balanced takes text starting with '(' and returns the content up to
// the matching ')' plus whatever follows it.
func balanced(text string) (inner, rest string, err error) {
	depth := 0
	for index := 0; index < len(text); index++ {
		switch text[index] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[1:index], text[index+1:], nil
			}
		}
	}
	return "", "", fmt.Errorf("%w: unbalanced parentheses in %q", ErrInvalidCapabilities, text)
}

// parseFeatures parses a vcp() body: hex codes, each optionally
// followed by a parenthesized list of permitted values.
func parseFeatures(body string, features map[byte][]uint16) error {
	for body = strings.TrimSpace(body); body != ""; body = strings.TrimSpace(body) {
		end := strings.IndexAny(body, " (")
		if end < 0 {
			end = len(body)
		}
		code, err := strconv.ParseUint(body[:end], 16, 8)
		if err != nil {
			return fmt.Errorf("%w: feature code %q", ErrInvalidCapabilities, body[:end])
		}
		body = strings.TrimLeft(body[end:], " ")

		var values []uint16
		if strings.HasPrefix(body, "(") {
			list, rest, err := balanced(body)
			if err != nil {
				return err
			}
			// Nested groups (seen on some firmware for feature 0x14)
			// are flattened.
			list = strings.NewReplacer("(", " ", ")", " ").Replace(list)
			if values, err = parseHexList(list); err != nil {
				return fmt.Errorf("feature 0x%02X: %w", code, err)
			}
			if values == nil {
				values = []uint16{}
			}
			body = rest
		}
		features[byte(code)] = values
	}
	return nil
}

func parseHexList(text string) ([]uint16, error) {
	var values []uint16
	for _, field := range strings.Fields(text) {
		value, err := strconv.ParseUint(field, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: hex value %q", ErrInvalidCapabilities, field)
		}
		values = append(values, uint16(value))
	}
	return values, nil
}
