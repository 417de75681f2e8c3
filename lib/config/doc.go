// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the switcher's configuration file.
//
// Configuration is loaded from a single file named by either the
// USB_KVM_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no search path; the command line falls
// back to [DefaultPath] in the working directory and nothing else.
//
// Files ending in .json or .jsonc are JSON with comments and trailing
// commas allowed; anything else is YAML. Both encodings accept the
// monitors either as a list of entries carrying an "ordinal" or as an
// object keyed by ordinal:
//
//	usb_device: "046d:c52b"
//	monitors:
//	  - ordinal: 1
//	    on_connect_input: DP1
//	    on_disconnect_input: HDMI1
//
//	{"usb_device": "046d:c52b",
//	 "monitors": {"1": {"on_connect_input": "DP1", "on_disconnect_input": "HDMI1"}}}
//
// Unknown input names, malformed USB ids, and structural problems are
// all reported when the file is loaded, joined into one error, so a
// running daemon never meets an invalid configuration.
//
// Key exports:
//
//   - [Config] -- usb_device, smart_switching, monitors, daemon
//   - [Default] -- returns a Config with every default filled in
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
