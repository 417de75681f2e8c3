// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/config"
	"github.com/joermo/usb-kvm/lib/monitor"
)

// TopologyBackoff separates enumerations while the attached display
// count disagrees with the configuration.
const TopologyBackoff = time.Second

// DefaultTopologyAttempts is the enumeration bound used when none is
// configured.
const DefaultTopologyAttempts = 30

// Resolver builds identity maps.
type Resolver struct {
	enumerator  monitor.Enumerator
	prober      *Prober
	clock       clock.Clock
	logger      *slog.Logger
	maxAttempts int
}

// NewResolver creates a Resolver that enumerates at most maxAttempts
// times per rebuild. A non-positive maxAttempts selects
// DefaultTopologyAttempts.
func NewResolver(enumerator monitor.Enumerator, prober *Prober, clk clock.Clock, logger *slog.Logger, maxAttempts int) *Resolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultTopologyAttempts
	}
	return &Resolver{
		enumerator:  enumerator,
		prober:      prober,
		clock:       clk,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Rebuild enumerates displays until their count matches the
// configuration, pairs them with config entries, probes each one, and
// publishes the new map on the session. Returns a [*TopologyError]
// when the count never matched.
func (r *Resolver) Rebuild(ctx context.Context, session *Session) error {
	configured := len(session.Config.Monitors)
	enumerated := 0

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(TopologyBackoff):
			}
		}

		handles, err := r.enumerator.Monitors(ctx)
		if err != nil {
			return fmt.Errorf("enumerating monitors: %w", err)
		}
		enumerated = len(handles)
		if enumerated != configured {
			closeHandles(handles, r.logger)
			r.logger.Warn("attached monitor count does not match configuration",
				"configured", configured,
				"attached", enumerated,
				"attempt", attempt,
				"max_attempts", r.maxAttempts,
			)
			continue
		}

		identities, err := r.build(ctx, session.Config.Monitors, handles)
		closeHandles(handles, r.logger)
		if err != nil {
			return err
		}
		session.publish(identities)
		return nil
	}

	return &TopologyError{Configured: configured, Enumerated: enumerated, Attempts: r.maxAttempts}
}

// build pairs handles with entries and probes each display. Entries
// with a pinned identity take the display carrying it; the remaining
// entries, in ordinal order, take the remaining displays in
// enumeration order.
func (r *Resolver) build(ctx context.Context, entries config.Monitors, handles []monitor.Handle) (IdentityMap, error) {
	assigned := make([]*config.Monitor, len(handles))
	var unpinned []*config.Monitor

	for _, entry := range entries.Sorted() {
		if entry.Identity == "" {
			unpinned = append(unpinned, entry)
			continue
		}
		index := indexOfIdentity(handles, assigned, monitor.Identity(entry.Identity))
		if index < 0 {
			r.logger.Warn("pinned monitor not attached, pairing by position",
				"monitor", entry.Label(),
				"identity", entry.Identity,
			)
			unpinned = append(unpinned, entry)
			continue
		}
		assigned[index] = entry
	}

	next := 0
	for index := range handles {
		if assigned[index] != nil {
			continue
		}
		assigned[index] = unpinned[next]
		next++
	}

	identities := make(IdentityMap, len(handles))
	for index, handle := range handles {
		identity := handle.Identity()
		if existing, duplicate := identities[identity]; duplicate {
			return nil, fmt.Errorf("monitors %s and %s report the same identity %s",
				existing.Label(), assigned[index].Label(), identity)
		}

		entry := assigned[index]
		controllable, err := r.prober.Probe(ctx, handle)
		if err != nil {
			return nil, err
		}
		entry.Controllable = controllable
		identities[identity] = entry

		if controllable {
			r.logger.Info("monitor resolved",
				"monitor", entry.Label(),
				"ordinal", entry.Ordinal,
				"display", handle.Describe(),
				"identity", identity,
			)
		} else {
			r.logger.Warn("monitor does not respond to DDC/CI, it will be skipped",
				"monitor", entry.Label(),
				"ordinal", entry.Ordinal,
				"display", handle.Describe(),
				"identity", identity,
				"attempts", ProbeAttempts,
			)
		}
	}
	return identities, nil
}

// indexOfIdentity returns the first unassigned handle with identity,
// or -1.
func indexOfIdentity(handles []monitor.Handle, assigned []*config.Monitor, identity monitor.Identity) int {
	for index, handle := range handles {
		if assigned[index] == nil && handle.Identity() == identity {
			return index
		}
	}
	return -1
}

func closeHandles(handles []monitor.Handle, logger *slog.Logger) {
	for _, handle := range handles {
		if err := handle.Close(); err != nil {
			logger.Warn("closing monitor", "display", handle.Describe(), "error", err)
		}
	}
}
