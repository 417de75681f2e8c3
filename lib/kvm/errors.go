// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvm

import (
	"errors"
	"fmt"

	"github.com/joermo/usb-kvm/lib/monitor"
)

var (
	// ErrTopologyMismatch is wrapped by [*TopologyError]. It is fatal:
	// the attached displays never matched the configuration.
	ErrTopologyMismatch = errors.New("attached monitors do not match configuration")

	// ErrTopologyUnstable is returned when a pass restarted too many
	// times because displays kept appearing or disappearing. The
	// next presence edge tries again.
	ErrTopologyUnstable = errors.New("monitor topology changed during every reconciliation attempt")
)

// TopologyError reports that identity resolution gave up because the
// enumerated display count never matched the configured count.
type TopologyError struct {
	Configured int
	Enumerated int
	Attempts   int
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("%s: %d configured, %d attached after %d attempts",
		ErrTopologyMismatch, e.Configured, e.Enumerated, e.Attempts)
}

func (e *TopologyError) Unwrap() error { return ErrTopologyMismatch }

// MonitorError identifies the monitor and operation behind a failed
// pass.
type MonitorError struct {
	Ordinal   int
	Label     string
	Identity  monitor.Identity
	Operation string
	Err       error
}

func (e *MonitorError) Error() string {
	return fmt.Sprintf("%s (ordinal %d, %s): %s: %v", e.Label, e.Ordinal, e.Identity, e.Operation, e.Err)
}

func (e *MonitorError) Unwrap() error { return e.Err }

// ReadExhaustedError is returned when a smart-mode read kept failing
// with malformed replies for every allowed attempt. Err is the last
// failure.
type ReadExhaustedError struct {
	Ordinal  int
	Label    string
	Identity monitor.Identity
	Attempts int
	Err      error
}

func (e *ReadExhaustedError) Error() string {
	return fmt.Sprintf("%s (ordinal %d, %s): input source unreadable after %d attempts: %v",
		e.Label, e.Ordinal, e.Identity, e.Attempts, e.Err)
}

func (e *ReadExhaustedError) Unwrap() error { return e.Err }
