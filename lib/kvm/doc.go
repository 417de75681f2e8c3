// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kvm is the reconciliation engine: it keeps every configured
// monitor on the input selected for the current presence of one
// watched USB device.
//
// The pieces, leaf to root:
//
//   - [Prober] decides whether a display answers DDC/CI reads at all
//     (5 attempts, 500 ms apart).
//   - [Resolver] pairs enumerated displays with config entries and
//     builds the [IdentityMap]. Pinned identities are matched first,
//     the rest pair by position in ordinal order. A display count that
//     disagrees with the config is retried once a second, up to the
//     configured bound, then fails with [*TopologyError].
//   - [Reconciler] runs one pass: for each controllable monitor in
//     ordinal order, compute the desired input and write it, reading
//     first in smart mode (20 attempts on malformed replies) so a
//     monitor already on the right input is left alone.
//   - [Loop] polls presence and runs a pass at startup and on every
//     presence edge.
//
// All mutable state for a run lives in a [Session], owned by the Loop
// and handed by pointer to the Resolver and Reconciler. Everything
// runs on one goroutine; hardware access is strictly sequential and
// every backoff waits on the injected clock under the caller's
// context, so cancellation interrupts a retrying pass.
package kvm
