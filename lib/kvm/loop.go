// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/usb"
)

// DefaultPollInterval is the presence polling period.
const DefaultPollInterval = 500 * time.Millisecond

// Presence reports whether the watched USB device is attached.
// [*usb.Probe] implements it.
type Presence interface {
	Connected(ctx context.Context) (bool, error)
}

// Switcher runs one reconciliation pass. [*Reconciler] implements it.
type Switcher interface {
	Reconcile(ctx context.Context, session *Session, connected bool) error
}

// LoopConfig holds the collaborators of a Loop.
type LoopConfig struct {
	Presence Presence
	Switcher Switcher
	Session  *Session
	Clock    clock.Clock
	Logger   *slog.Logger

	// Interval is the polling period. Zero selects
	// DefaultPollInterval.
	Interval time.Duration

	// Wake, when non-nil, triggers an immediate poll. A closed
	// channel is ignored from then on.
	Wake <-chan struct{}
}

// Loop is the presence state machine: idle on the last observed
// presence, reconciling once on every change.
type Loop struct {
	presence Presence
	switcher Switcher
	session  *Session
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
	wake     <-chan struct{}

	last bool
}

// NewLoop creates a Loop.
func NewLoop(cfg LoopConfig) *Loop {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Loop{
		presence: cfg.Presence,
		switcher: cfg.Switcher,
		session:  cfg.Session,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		interval: interval,
		wake:     cfg.Wake,
	}
}

// Start observes the initial presence and runs one unconditional
// pass for it.
func (l *Loop) Start(ctx context.Context) error {
	connected, err := l.presence.Connected(ctx)
	if err != nil {
		return err
	}
	l.last = connected
	l.logger.Info("initial usb presence", "connected", connected)
	return l.reconcile(ctx, connected)
}

// Step polls presence once and runs a pass if it changed since the
// previous observation. Reports whether a pass ran.
func (l *Loop) Step(ctx context.Context) (bool, error) {
	connected, err := l.presence.Connected(ctx)
	if err != nil {
		return false, err
	}
	if connected == l.last {
		return false, nil
	}
	l.last = connected
	if connected {
		l.logger.Info("usb device connected")
	} else {
		l.logger.Info("usb device disconnected")
	}
	return true, l.reconcile(ctx, connected)
}

// reconcile runs a pass. A failed pass is logged and polling goes on;
// only a topology mismatch or USB backend failure is returned.
func (l *Loop) reconcile(ctx context.Context, connected bool) error {
	err := l.switcher.Reconcile(ctx, l.session, connected)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrTopologyMismatch) || errors.Is(err, usb.ErrBackend) {
		return err
	}
	l.logger.Error("reconciliation pass failed", "connected", connected, "error", err)
	return nil
}

// Run calls Start, then Step on every tick or wakeup until ctx is
// cancelled. Returns nil on cancellation and the fatal error
// otherwise.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		return shutdownError(ctx, err)
	}

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	wake := l.wake
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
		}
		if _, err := l.Step(ctx); err != nil {
			return shutdownError(ctx, err)
		}
	}
}

// shutdownError hides errors caused by cancellation.
func shutdownError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
