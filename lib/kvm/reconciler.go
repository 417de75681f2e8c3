// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/config"
	"github.com/joermo/usb-kvm/lib/input"
	"github.com/joermo/usb-kvm/lib/monitor"
)

const (
	// SmartReadAttempts bounds the smart-mode input read.
	SmartReadAttempts = 20

	// SmartReadInterval separates smart-mode read attempts.
	SmartReadInterval = 500 * time.Millisecond

	// maxPassRestarts bounds how often one Reconcile call rebuilds the
	// identity map and starts over.
	maxPassRestarts = 3
)

// Reconciler applies the configured inputs to the attached displays.
type Reconciler struct {
	enumerator monitor.Enumerator
	resolver   *Resolver
	clock      clock.Clock
	logger     *slog.Logger
}

// NewReconciler creates a Reconciler. The resolver must enumerate the
// same displays as enumerator.
func NewReconciler(enumerator monitor.Enumerator, resolver *Resolver, clk clock.Clock, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		enumerator: enumerator,
		resolver:   resolver,
		clock:      clk,
		logger:     logger,
	}
}

// target is one display paired with its config entry for a pass.
type target struct {
	handle monitor.Handle
	entry  *config.Monitor
}

// Reconcile brings every controllable monitor to its input for the
// given presence. The first failing monitor aborts the pass; monitors
// after it are not touched.
func (r *Reconciler) Reconcile(ctx context.Context, session *Session, connected bool) error {
	for restart := 0; restart <= maxPassRestarts; restart++ {
		restartPass, err := r.pass(ctx, session, connected)
		if err != nil || !restartPass {
			return err
		}
	}
	return fmt.Errorf("%w (%d restarts)", ErrTopologyUnstable, maxPassRestarts)
}

// pass runs one attempt. It returns true when the identity map was
// rebuilt and the whole pass must start over.
func (r *Reconciler) pass(ctx context.Context, session *Session, connected bool) (bool, error) {
	if session.Identities() == nil {
		if err := r.resolver.Rebuild(ctx, session); err != nil {
			return false, err
		}
	}
	identities := session.Identities()

	handles, err := r.enumerator.Monitors(ctx)
	if err != nil {
		return false, fmt.Errorf("enumerating monitors: %w", err)
	}
	defer closeHandles(handles, r.logger)

	if len(handles) != len(identities) {
		r.logger.Info("attached monitor count changed, rebuilding identity map",
			"mapped", len(identities),
			"attached", len(handles),
		)
		return true, r.rebuild(ctx, session)
	}

	targets := make([]target, 0, len(handles))
	for _, handle := range handles {
		entry, ok := identities[handle.Identity()]
		if !ok {
			r.logger.Info("unmapped monitor attached, rebuilding identity map",
				"display", handle.Describe(),
				"identity", handle.Identity(),
			)
			return true, r.rebuild(ctx, session)
		}
		targets = append(targets, target{handle: handle, entry: entry})
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].entry.Ordinal < targets[j].entry.Ordinal
	})

	for _, current := range targets {
		if err := r.apply(ctx, session, current, connected); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (r *Reconciler) rebuild(ctx context.Context, session *Session) error {
	session.Invalidate()
	return r.resolver.Rebuild(ctx, session)
}

// apply converges one monitor.
func (r *Reconciler) apply(ctx context.Context, session *Session, current target, connected bool) error {
	entry := current.entry
	logger := r.logger.With(
		"monitor", entry.Label(),
		"ordinal", entry.Ordinal,
	)

	if !entry.Controllable {
		logger.Debug("skipping non-controllable monitor")
		return nil
	}

	desired := entry.Desired(connected)
	code := desired.Code()

	if session.Config.SmartSwitching {
		source, err := r.readInputSource(ctx, current)
		if err != nil {
			return err
		}
		logger.Debug("current input source", "source", input.Describe(source))
		if source == code {
			logger.Info("monitor already on desired input", "input", desired)
			return nil
		}
	}

	logger.Info("switching monitor input", "input", desired, "code", code)
	if err := current.handle.SetInputSource(ctx, code); err != nil {
		return &MonitorError{
			Ordinal:   entry.Ordinal,
			Label:     entry.Label(),
			Identity:  current.handle.Identity(),
			Operation: "set input source " + string(desired),
			Err:       err,
		}
	}
	return nil
}

// readInputSource reads the current input, retrying only malformed
// replies.
func (r *Reconciler) readInputSource(ctx context.Context, current target) (input.Code, error) {
	entry := current.entry
	var lastError error
	for attempt := 0; attempt < SmartReadAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-r.clock.After(SmartReadInterval):
			}
		}

		source, err := current.handle.InputSource(ctx)
		if err == nil {
			return source, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !errors.Is(err, monitor.ErrMalformedResponse) {
			return 0, &MonitorError{
				Ordinal:   entry.Ordinal,
				Label:     entry.Label(),
				Identity:  current.handle.Identity(),
				Operation: "read input source",
				Err:       err,
			}
		}
		lastError = err
		r.logger.Debug("malformed input source reply, retrying",
			"monitor", entry.Label(),
			"attempt", attempt+1,
			"error", err,
		)
	}
	return 0, &ReadExhaustedError{
		Ordinal:  entry.Ordinal,
		Label:    entry.Label(),
		Identity: current.handle.Identity(),
		Attempts: SmartReadAttempts,
		Err:      lastError,
	}
}
