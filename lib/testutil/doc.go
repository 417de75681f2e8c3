// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireNoReceive] encapsulate the timeout
// safety valve pattern (select with a wall-clock fallback) for tests
// that wait on channels fed by real goroutines, such as the fsnotify
// hotplug watcher. Everything else in the test suite runs on the fake
// clock from lib/clock.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
