// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/config"
	"github.com/joermo/usb-kvm/lib/input"
	"github.com/joermo/usb-kvm/lib/monitor"
	"github.com/joermo/usb-kvm/lib/usb"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// malformed is the retryable read failure.
var malformed = fmt.Errorf("monitor card0-DP-1: reading input source: %w", monitor.ErrMalformedResponse)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubHandle is an in-memory display. The current source changes
// only through SetInputSource.
type stubHandle struct {
	identity monitor.Identity
	source   input.Code

	// readErrors are returned by successive reads before reads
	// succeed. alwaysFail, when set, fails every read after them.
	readErrors []error
	alwaysFail error
	setError   error

	reads   int
	writes  int
	written []input.Code
	closes  int
}

func newStubHandle(identity string, source input.State) *stubHandle {
	return &stubHandle{identity: monitor.Identity(identity), source: source.Code()}
}

func (h *stubHandle) Identity() monitor.Identity { return h.identity }
func (h *stubHandle) Describe() string           { return "stub " + string(h.identity) }

func (h *stubHandle) InputSource(context.Context) (input.Code, error) {
	h.reads++
	if len(h.readErrors) > 0 {
		err := h.readErrors[0]
		h.readErrors = h.readErrors[1:]
		return 0, err
	}
	if h.alwaysFail != nil {
		return 0, h.alwaysFail
	}
	return h.source, nil
}

func (h *stubHandle) SetInputSource(_ context.Context, code input.Code) error {
	h.writes++
	if h.setError != nil {
		return h.setError
	}
	h.source = code
	h.written = append(h.written, code)
	return nil
}

func (h *stubHandle) Capabilities(context.Context) (monitor.Capabilities, error) {
	return monitor.Capabilities{}, nil
}

func (h *stubHandle) Close() error {
	h.closes++
	return nil
}

// resetCounters forgets the reads and writes made so far, typically
// by identity resolution.
func (h *stubHandle) resetCounters() {
	h.reads, h.writes, h.written, h.closes = 0, 0, nil, 0
}

// stubEnumerator returns its sequence of topologies one per call and
// keeps repeating the last one.
type stubEnumerator struct {
	sequence [][]*stubHandle
	err      error
	calls    int
}

func enumerating(handles ...*stubHandle) *stubEnumerator {
	return &stubEnumerator{sequence: [][]*stubHandle{handles}}
}

func (e *stubEnumerator) Monitors(context.Context) ([]monitor.Handle, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	current := e.sequence[min(e.calls-1, len(e.sequence)-1)]
	handles := make([]monitor.Handle, len(current))
	for index, handle := range current {
		handles[index] = handle
	}
	return handles, nil
}

// enumeratorFunc adapts a function to monitor.Enumerator.
type enumeratorFunc func() []monitor.Handle

func (f enumeratorFunc) Monitors(context.Context) ([]monitor.Handle, error) { return f(), nil }

func testConfig(smart bool, monitors ...*config.Monitor) *config.Config {
	cfg := config.Default()
	cfg.USBDevice = usb.ID{Vendor: 0x046d, Product: 0xc52b}
	cfg.SmartSwitching = smart
	cfg.Monitors = monitors
	return cfg
}

func entry(ordinal int, onConnect, onDisconnect input.State) *config.Monitor {
	return &config.Monitor{Ordinal: ordinal, OnConnect: onConnect, OnDisconnect: onDisconnect}
}

// engine wires a Reconciler over enumerator with an auto-advancing
// clock, so retry backoffs complete instantly and are measured on the
// fake clock.
type engine struct {
	clock      *clock.FakeClock
	resolver   *Resolver
	reconciler *Reconciler
}

func newEngine(enumerator monitor.Enumerator, topologyAttempts int) *engine {
	fake := clock.FakeAutoAdvance(epoch)
	logger := discardLogger()
	resolver := NewResolver(enumerator, NewProber(fake, logger), fake, logger, topologyAttempts)
	return &engine{
		clock:      fake,
		resolver:   resolver,
		reconciler: NewReconciler(enumerator, resolver, fake, logger),
	}
}

func (e *engine) elapsed() time.Duration { return e.clock.Now().Sub(epoch) }

// build resolves identities for session and fails the test on error.
func (e *engine) build(t *testing.T, session *Session) {
	t.Helper()
	if err := e.resolver.Rebuild(context.Background(), session); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
}
