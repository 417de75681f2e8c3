// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the usb-kvm binary: a
// small command tree over pflag with typo suggestions, the exit-code
// convention used by main, the structured logger every command logs
// through, and the lipgloss styles for human-facing listings.
//
// Commands print results to stdout and diagnostics to stderr through
// the logger. A command that has already explained its own failure
// returns an [*ExitError] so main exits without a second message.
package cli
