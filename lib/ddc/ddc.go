// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joermo/usb-kvm/lib/clock"
)

const (
	// hostAddress is the source byte of every request.
	hostAddress = 0x51

	// displayAddress is the 8-bit write address of the display
	// (0x37 << 1); it seeds the request checksum and is the first
	// byte of every reply.
	displayAddress = 0x6E

	// replyChecksumSeed is the virtual host address that seeds the
	// reply checksum.
	replyChecksumSeed = 0x50

	opcodeGetVCP          = 0x01
	opcodeGetVCPReply     = 0x02
	opcodeSetVCP          = 0x03
	opcodeCapabilities    = 0xF3
	opcodeCapabilityReply = 0xE3

	// getVCPReplyLength is the payload length of a Get VCP Feature
	// reply: opcode, result, code, type, max (2), current (2).
	getVCPReplyLength = 8

	// maxFragmentData is the largest capability fragment a display
	// may send in one reply.
	maxFragmentData = 32

	// maxCapabilitiesLength bounds a runaway capabilities read.
	maxCapabilitiesLength = 4096

	// fragmentAttempts is how often one capability fragment is
	// re-requested after a malformed reply.
	fragmentAttempts = 3
)

const (
	replyDelay        = 40 * time.Millisecond
	capabilitiesDelay = 50 * time.Millisecond
	commandGap        = 50 * time.Millisecond
)

var (
	// ErrMalformedReply is wrapped by every reply validation failure.
	ErrMalformedReply = errors.New("malformed ddc/ci reply")

	// ErrUnsupportedFeature is returned when the display answers a
	// Get VCP request with the "unsupported VCP code" result.
	ErrUnsupportedFeature = errors.New("vcp feature not supported by display")
)

// Value is the decoded reply to a Get VCP Feature request.
type Value struct {
	// Type is 0 for set-parameter features, 1 for momentary.
	Type    byte
	Maximum uint16
	Current uint16
}

// Bus issues DDC/CI commands to one display. Not safe for concurrent
// use: a display's control channel handles one command at a time.
type Bus struct {
	transport io.ReadWriter
	clock     clock.Clock

	// lastCommand is when the previous command finished. The next
	// command waits until commandGap has passed since then.
	lastCommand time.Time
}

// NewBus creates a Bus over transport.
func NewBus(transport io.ReadWriter, clk clock.Clock) *Bus {
	return &Bus{transport: transport, clock: clk}
}

// GetVCP reads the current and maximum value of a VCP feature.
func (b *Bus) GetVCP(ctx context.Context, code byte) (Value, error) {
	if err := b.send(ctx, []byte{opcodeGetVCP, code}); err != nil {
		return Value{}, fmt.Errorf("get vcp 0x%02X: %w", code, err)
	}
	if err := b.wait(ctx, replyDelay); err != nil {
		return Value{}, err
	}
	payload, err := b.receive(getVCPReplyLength)
	b.lastCommand = b.clock.Now()
	if err != nil {
		return Value{}, fmt.Errorf("get vcp 0x%02X: %w", code, err)
	}
	return decodeGetVCPReply(code, payload)
}

func decodeGetVCPReply(code byte, payload []byte) (Value, error) {
	if len(payload) != getVCPReplyLength {
		return Value{}, fmt.Errorf("get vcp 0x%02X: %w: payload length %d, want %d",
			code, ErrMalformedReply, len(payload), getVCPReplyLength)
	}
	if payload[0] != opcodeGetVCPReply {
		return Value{}, fmt.Errorf("get vcp 0x%02X: %w: opcode 0x%02X", code, ErrMalformedReply, payload[0])
	}
	if payload[2] != code {
		return Value{}, fmt.Errorf("get vcp 0x%02X: %w: reply for feature 0x%02X", code, ErrMalformedReply, payload[2])
	}
	switch payload[1] {
	case 0x00:
	case 0x01:
		return Value{}, fmt.Errorf("get vcp 0x%02X: %w", code, ErrUnsupportedFeature)
	default:
		return Value{}, fmt.Errorf("get vcp 0x%02X: %w: result code 0x%02X", code, ErrMalformedReply, payload[1])
	}
	return Value{
		Type:    payload[3],
		Maximum: uint16(payload[4])<<8 | uint16(payload[5]),
		Current: uint16(payload[6])<<8 | uint16(payload[7]),
	}, nil
}

// SetVCP writes a VCP feature value. DDC/CI has no acknowledgement for
// Set VCP; confirming the change requires a subsequent GetVCP.
func (b *Bus) SetVCP(ctx context.Context, code byte, value uint16) error {
	err := b.send(ctx, []byte{opcodeSetVCP, code, byte(value >> 8), byte(value)})
	b.lastCommand = b.clock.Now()
	if err != nil {
		return fmt.Errorf("set vcp 0x%02X: %w", code, err)
	}
	return nil
}

// Capabilities reads the display's capabilities string, reassembling
// it from 32-byte fragments. A fragment with malformed framing is
// requested again up to fragmentAttempts times.
func (b *Bus) Capabilities(ctx context.Context) (string, error) {
	var capabilities []byte
	for len(capabilities) < maxCapabilitiesLength {
		offset := len(capabilities)
		fragment, err := b.capabilityFragment(ctx, offset)
		if err != nil {
			return "", fmt.Errorf("capabilities at offset %d: %w", offset, err)
		}
		if len(fragment) == 0 {
			break
		}
		capabilities = append(capabilities, fragment...)
	}

	// Some displays pad the final fragment with NULs.
	for len(capabilities) > 0 && capabilities[len(capabilities)-1] == 0 {
		capabilities = capabilities[:len(capabilities)-1]
	}
	return string(capabilities), nil
}

func (b *Bus) capabilityFragment(ctx context.Context, offset int) ([]byte, error) {
	var lastError error
	for attempt := 0; attempt < fragmentAttempts; attempt++ {
		if err := b.send(ctx, []byte{opcodeCapabilities, byte(offset >> 8), byte(offset)}); err != nil {
			return nil, err
		}
		if err := b.wait(ctx, capabilitiesDelay); err != nil {
			return nil, err
		}
		payload, err := b.receive(3 + maxFragmentData)
		b.lastCommand = b.clock.Now()
		if err == nil {
			err = checkFragmentHeader(payload, offset)
		}
		if err == nil {
			return payload[3:], nil
		}
		if !errors.Is(err, ErrMalformedReply) {
			return nil, err
		}
		lastError = err
	}
	return nil, lastError
}

func checkFragmentHeader(payload []byte, offset int) error {
	if len(payload) < 3 {
		return fmt.Errorf("%w: capability fragment of %d bytes", ErrMalformedReply, len(payload))
	}
	if payload[0] != opcodeCapabilityReply {
		return fmt.Errorf("%w: capability opcode 0x%02X", ErrMalformedReply, payload[0])
	}
	echoed := int(payload[1])<<8 | int(payload[2])
	if echoed != offset {
		return fmt.Errorf("%w: capability offset %d, requested %d", ErrMalformedReply, echoed, offset)
	}
	return nil
}

// send frames payload as a request and writes it, waiting out the
// inter-command gap first.
func (b *Bus) send(ctx context.Context, payload []byte) error {
	if !b.lastCommand.IsZero() {
		if remaining := commandGap - b.clock.Now().Sub(b.lastCommand); remaining > 0 {
			if err := b.wait(ctx, remaining); err != nil {
				return err
			}
		}
	}

	message := make([]byte, 0, len(payload)+3)
	message = append(message, hostAddress, 0x80|byte(len(payload)))
	message = append(message, payload...)
	message = append(message, checksum(displayAddress, message))

	if _, err := b.transport.Write(message); err != nil {
		return fmt.Errorf("i2c write: %w", err)
	}
	return nil
}

// receive reads one reply with room for up to maxPayload payload bytes
// and returns the validated payload.
func (b *Bus) receive(maxPayload int) ([]byte, error) {
	buffer := make([]byte, 2+maxPayload+1)
	count, err := b.transport.Read(buffer)
	if err != nil {
		return nil, fmt.Errorf("i2c read: %w", err)
	}
	return parseReply(buffer[:count])
}

// parseReply validates reply framing and returns the payload.
func parseReply(reply []byte) ([]byte, error) {
	if len(reply) < 3 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedReply, len(reply))
	}
	if reply[0] != displayAddress {
		return nil, fmt.Errorf("%w: source byte 0x%02X", ErrMalformedReply, reply[0])
	}
	if reply[1]&0x80 == 0 {
		return nil, fmt.Errorf("%w: length byte 0x%02X lacks 0x80 marker", ErrMalformedReply, reply[1])
	}
	length := int(reply[1] & 0x7F)
	if length == 0 {
		return nil, fmt.Errorf("%w: null message (display busy)", ErrMalformedReply)
	}
	if 2+length+1 > len(reply) {
		return nil, fmt.Errorf("%w: declared length %d exceeds %d received bytes", ErrMalformedReply, length, len(reply))
	}
	expected := checksum(replyChecksumSeed, reply[:2+length])
	if reply[2+length] != expected {
		return nil, fmt.Errorf("%w: checksum 0x%02X, want 0x%02X", ErrMalformedReply, reply[2+length], expected)
	}
	return reply[2 : 2+length], nil
}

func checksum(seed byte, data []byte) byte {
	sum := seed
	for _, value := range data {
		sum ^= value
	}
	return sum
}

func (b *Bus) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.clock.After(d):
		return nil
	}
}
