// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvm

import (
	"context"
	"log/slog"
	"time"

	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/monitor"
)

const (
	// ProbeAttempts bounds the reads before a display is classified
	// non-controllable.
	ProbeAttempts = 5

	// ProbeInterval separates probe reads.
	ProbeInterval = 500 * time.Millisecond
)

// Prober classifies displays as controllable or not.
type Prober struct {
	clock  clock.Clock
	logger *slog.Logger
}

// NewProber creates a Prober.
func NewProber(clk clock.Clock, logger *slog.Logger) *Prober {
	return &Prober{clock: clk, logger: logger}
}

// Probe reads the display's input source until a read succeeds or
// ProbeAttempts reads have failed. Any read error counts as a failed
// attempt. The only error returned is ctx's.
func (p *Prober) Probe(ctx context.Context, handle monitor.Handle) (bool, error) {
	for attempt := 0; attempt < ProbeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-p.clock.After(ProbeInterval):
			}
		}

		_, err := handle.InputSource(ctx)
		if err == nil {
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Debug("probe read failed",
			"monitor", handle.Describe(),
			"attempt", attempt+1,
			"error", err,
		)
	}
	return false, nil
}
