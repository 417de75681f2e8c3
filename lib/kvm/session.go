// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kvm

import (
	"sync/atomic"

	"github.com/joermo/usb-kvm/lib/config"
	"github.com/joermo/usb-kvm/lib/monitor"
)

// IdentityMap associates each attached display with its config entry.
// A map is never modified after it is published; a topology change
// builds a new one.
type IdentityMap map[monitor.Identity]*config.Monitor

// Session is the state of one switcher run: the loaded configuration
// and the current identity map.
type Session struct {
	Config *config.Config

	identities atomic.Pointer[IdentityMap]
}

// NewSession creates a Session with no identity map. The first
// reconciliation pass builds it.
func NewSession(cfg *config.Config) *Session {
	return &Session{Config: cfg}
}

// Identities returns the current map, or nil before the first build
// and after Invalidate.
func (s *Session) Identities() IdentityMap {
	current := s.identities.Load()
	if current == nil {
		return nil
	}
	return *current
}

// Invalidate drops the identity map so the next pass rebuilds it.
func (s *Session) Invalidate() {
	s.identities.Store(nil)
}

func (s *Session) publish(identities IdentityMap) {
	s.identities.Store(&identities)
}
