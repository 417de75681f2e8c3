// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint helper for errors
// that happen before or outside the structured logger: a config file
// that fails to load, an unknown flag, a missing subcommand.
//
// Exit writes such an error to stderr and exits with code 1. Errors from the
// running switcher go through the logger instead and reach main as a
// cli.ExitError, so they are not printed twice.
package process
