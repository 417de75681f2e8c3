// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/joermo/usb-kvm/lib/input"
	"github.com/joermo/usb-kvm/lib/monitor"
)

// twoMonitors is the documented example: ordinal 0 switches between
// HDMI1 and HDMI2, ordinal 1 between DP1 and HDMI3.
func twoMonitors(smart bool, firstSource, secondSource input.State) (*Session, *stubHandle, *stubHandle, *engine) {
	first := newStubHandle("edid:first", firstSource)
	second := newStubHandle("edid:second", secondSource)
	engine := newEngine(enumerating(first, second), 3)
	session := NewSession(testConfig(smart,
		entry(0, input.HDMI1, input.HDMI2),
		entry(1, input.DP1, input.HDMI3),
	))
	return session, first, second, engine
}

func TestReconcileExampleScenario(t *testing.T) {
	session, first, second, engine := twoMonitors(true, input.HDMI2, input.DP1)

	if err := engine.reconciler.Reconcile(context.Background(), session, true); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if !slices.Equal(first.written, []input.Code{input.HDMI1.Code()}) {
		t.Errorf("monitor 0 writes = %v, want [HDMI1]", first.written)
	}
	if second.writes != 0 {
		t.Errorf("monitor 1 writes = %d, want 0 (already on DP1)", second.writes)
	}
}

func TestReconcileBuildsIdentityMapLazily(t *testing.T) {
	session, _, _, engine := twoMonitors(true, input.HDMI2, input.DP1)
	if session.Identities() != nil {
		t.Fatal("fresh session has an identity map")
	}

	if err := engine.reconciler.Reconcile(context.Background(), session, false); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(session.Identities()) != 2 {
		t.Errorf("identity map has %d entries after first pass, want 2", len(session.Identities()))
	}
}

func TestReconcileIdempotent(t *testing.T) {
	for _, connected := range []bool{true, false} {
		t.Run(fmt.Sprintf("connected=%v", connected), func(t *testing.T) {
			session, first, second, engine := twoMonitors(true, input.DP3, input.HDMI1)
			ctx := context.Background()

			if err := engine.reconciler.Reconcile(ctx, session, connected); err != nil {
				t.Fatalf("first Reconcile: %v", err)
			}
			writesBefore := first.writes + second.writes

			if err := engine.reconciler.Reconcile(ctx, session, connected); err != nil {
				t.Fatalf("second Reconcile: %v", err)
			}
			if writes := first.writes + second.writes; writes != writesBefore {
				t.Errorf("second pass issued %d writes, want 0", writes-writesBefore)
			}
		})
	}
}

func TestReconcileConverges(t *testing.T) {
	tests := []struct {
		name         string
		smart        bool
		connected    bool
		firstSource  input.State
		secondSource input.State
	}{
		{"smart connect from disconnect targets", true, true, input.HDMI2, input.HDMI3},
		{"smart disconnect from connect targets", true, false, input.HDMI1, input.DP1},
		{"smart mixed", true, false, input.HDMI2, input.DP1},
		{"dumb connect", false, true, input.HDMI3, input.HDMI2},
		{"dumb disconnect", false, false, input.HDMI1, input.DP1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, first, second, engine := twoMonitors(tt.smart, tt.firstSource, tt.secondSource)
			if err := engine.reconciler.Reconcile(context.Background(), session, tt.connected); err != nil {
				t.Fatalf("Reconcile: %v", err)
			}

			for _, handle := range []*stubHandle{first, second} {
				configured := session.Identities()[handle.identity]
				want := configured.Desired(tt.connected).Code()
				if handle.source != want {
					t.Errorf("%s on %s, want %s", handle.identity, handle.source, want)
				}
			}
		})
	}
}

func TestReconcileSkipsNonControllable(t *testing.T) {
	for _, smart := range []bool{true, false} {
		for _, connected := range []bool{true, false} {
			t.Run(fmt.Sprintf("smart=%v/connected=%v", smart, connected), func(t *testing.T) {
				session, first, second, engine := twoMonitors(smart, input.HDMI3, input.HDMI3)
				second.alwaysFail = errors.New("i2c: no acknowledge")
				engine.build(t, session)
				first.resetCounters()
				second.resetCounters()

				if err := engine.reconciler.Reconcile(context.Background(), session, connected); err != nil {
					t.Fatalf("Reconcile: %v", err)
				}
				if second.reads != 0 || second.writes != 0 {
					t.Errorf("non-controllable monitor saw %d reads, %d writes", second.reads, second.writes)
				}
				if first.writes != 1 {
					t.Errorf("controllable monitor writes = %d, want 1", first.writes)
				}
			})
		}
	}
}

func TestReconcileForcedWrites(t *testing.T) {
	// Both monitors already show their connect targets.
	session, first, second, engine := twoMonitors(false, input.HDMI1, input.DP1)
	engine.build(t, session)
	first.resetCounters()
	second.resetCounters()

	if err := engine.reconciler.Reconcile(context.Background(), session, true); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	for _, handle := range []*stubHandle{first, second} {
		if handle.writes != 1 {
			t.Errorf("%s writes = %d, want exactly 1", handle.identity, handle.writes)
		}
		if handle.reads != 0 {
			t.Errorf("%s reads = %d, want 0 with smart switching off", handle.identity, handle.reads)
		}
	}
}

func TestReconcileSmartReadRetryBound(t *testing.T) {
	session, first, second, engine := twoMonitors(true, input.HDMI2, input.HDMI3)
	engine.build(t, session)
	first.resetCounters()
	second.resetCounters()
	first.alwaysFail = malformed
	start := engine.elapsed()

	err := engine.reconciler.Reconcile(context.Background(), session, true)

	var exhausted *ReadExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Reconcile error = %v, want *ReadExhaustedError", err)
	}
	if exhausted.Attempts != SmartReadAttempts || exhausted.Ordinal != 0 {
		t.Errorf("ReadExhaustedError = %+v", exhausted)
	}
	if !errors.Is(err, monitor.ErrMalformedResponse) {
		t.Error("exhaustion error does not carry the last malformed reply")
	}
	if first.reads != SmartReadAttempts {
		t.Errorf("reads = %d, want %d", first.reads, SmartReadAttempts)
	}
	if first.writes != 0 {
		t.Error("wrote after the read failed")
	}
	if waited := engine.elapsed() - start; waited != (SmartReadAttempts-1)*SmartReadInterval {
		t.Errorf("waited %v, want %v", waited, (SmartReadAttempts-1)*SmartReadInterval)
	}
	// The pass aborts: later monitors are left alone.
	if second.reads != 0 || second.writes != 0 {
		t.Errorf("monitor after the failure saw %d reads, %d writes", second.reads, second.writes)
	}
}

func TestReconcileSmartReadRecoversFromMalformedReplies(t *testing.T) {
	session, first, _, engine := twoMonitors(true, input.HDMI2, input.DP1)
	engine.build(t, session)
	first.resetCounters()
	first.readErrors = []error{malformed, malformed, malformed}

	if err := engine.reconciler.Reconcile(context.Background(), session, true); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if first.reads != 4 || first.writes != 1 {
		t.Errorf("reads = %d, writes = %d; want 4 reads, 1 write", first.reads, first.writes)
	}
}

func TestReconcileOtherReadErrorsAreNotRetried(t *testing.T) {
	session, first, second, engine := twoMonitors(true, input.HDMI2, input.DP1)
	engine.build(t, session)
	first.resetCounters()
	second.resetCounters()
	readError := errors.New("i2c read: input/output error")
	first.readErrors = []error{readError}
	waitsBefore := engine.clock.Waits()

	err := engine.reconciler.Reconcile(context.Background(), session, true)

	var monitorError *MonitorError
	if !errors.As(err, &monitorError) || !errors.Is(err, readError) {
		t.Fatalf("Reconcile error = %v, want *MonitorError wrapping the read error", err)
	}
	if monitorError.Operation != "read input source" {
		t.Errorf("Operation = %q", monitorError.Operation)
	}
	if first.reads != 1 || engine.clock.Waits() != waitsBefore {
		t.Errorf("reads = %d, waits = %d; want a single read and no backoff", first.reads, engine.clock.Waits()-waitsBefore)
	}
	if second.reads != 0 {
		t.Error("pass continued past the failed monitor")
	}
}

func TestReconcileWriteFailureAbortsPass(t *testing.T) {
	session, first, second, engine := twoMonitors(false, input.HDMI2, input.HDMI3)
	engine.build(t, session)
	second.resetCounters()
	writeError := errors.New("i2c write: no such device")
	first.setError = writeError

	err := engine.reconciler.Reconcile(context.Background(), session, true)

	var monitorError *MonitorError
	if !errors.As(err, &monitorError) || !errors.Is(err, writeError) {
		t.Fatalf("Reconcile error = %v, want *MonitorError wrapping the write error", err)
	}
	if monitorError.Ordinal != 0 || monitorError.Identity != "edid:first" {
		t.Errorf("MonitorError = %+v", monitorError)
	}
	if second.writes != 0 {
		t.Error("pass continued past the failed write")
	}
}

func TestReconcileRestartsOnUnmappedMonitor(t *testing.T) {
	first := newStubHandle("edid:first", input.HDMI2)
	replaced := newStubHandle("edid:second", input.HDMI3)
	replacement := newStubHandle("edid:replacement", input.HDMI3)
	enumerator := &stubEnumerator{sequence: [][]*stubHandle{
		{first, replaced},
		{first, replacement},
	}}
	engine := newEngine(enumerator, 3)
	session := NewSession(testConfig(false,
		entry(0, input.HDMI1, input.HDMI2),
		entry(1, input.DP1, input.HDMI3),
	))
	engine.build(t, session)
	first.resetCounters()

	if err := engine.reconciler.Reconcile(context.Background(), session, true); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	identities := session.Identities()
	if _, stale := identities["edid:second"]; stale {
		t.Error("identity map still holds the unplugged monitor")
	}
	if configured := identities["edid:replacement"]; configured == nil || configured.Ordinal != 1 {
		t.Fatalf("replacement mapped to %+v, want ordinal 1", configured)
	}
	if !slices.Equal(replacement.written, []input.Code{input.DP1.Code()}) {
		t.Errorf("replacement writes = %v, want [DP1]", replacement.written)
	}
	// The restarted pass writes each monitor once, not twice.
	if first.writes != 1 {
		t.Errorf("first monitor writes = %d, want 1", first.writes)
	}
}

func TestReconcileCountChangeRebuildsAndFailsFatally(t *testing.T) {
	first := newStubHandle("edid:first", input.HDMI2)
	second := newStubHandle("edid:second", input.HDMI3)
	enumerator := &stubEnumerator{sequence: [][]*stubHandle{
		{first, second},
		{first},
	}}
	engine := newEngine(enumerator, 3)
	session := NewSession(testConfig(true,
		entry(0, input.HDMI1, input.HDMI2),
		entry(1, input.DP1, input.HDMI3),
	))
	engine.build(t, session)
	first.resetCounters()

	err := engine.reconciler.Reconcile(context.Background(), session, true)
	if !errors.Is(err, ErrTopologyMismatch) {
		t.Fatalf("Reconcile error = %v, want ErrTopologyMismatch", err)
	}
	if first.writes != 0 {
		t.Error("wrote to a monitor while the topology was wrong")
	}
}

func TestReconcileGivesUpOnUnstableTopology(t *testing.T) {
	// Every enumeration reports a display never seen before.
	serial := 0
	enumerator := enumeratorFunc(func() []monitor.Handle {
		serial++
		return []monitor.Handle{newStubHandle(fmt.Sprintf("edid:%d", serial), input.HDMI1)}
	})
	engine := newEngine(enumerator, 3)
	session := NewSession(testConfig(true, entry(1, input.DP1, input.HDMI1)))

	err := engine.reconciler.Reconcile(context.Background(), session, true)
	if !errors.Is(err, ErrTopologyUnstable) {
		t.Fatalf("Reconcile error = %v, want ErrTopologyUnstable", err)
	}
	if errors.Is(err, ErrTopologyMismatch) {
		t.Error("unstable topology reported as fatal mismatch")
	}
}

func TestReconcileClosesHandles(t *testing.T) {
	session, first, second, engine := twoMonitors(true, input.HDMI2, input.DP1)
	engine.build(t, session)
	first.resetCounters()
	second.resetCounters()

	if err := engine.reconciler.Reconcile(context.Background(), session, true); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if first.closes != 1 || second.closes != 1 {
		t.Errorf("closes = %d, %d; want each handle closed once per pass", first.closes, second.closes)
	}
}
