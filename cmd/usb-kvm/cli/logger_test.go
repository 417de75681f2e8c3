// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger_JSONWhenNotTerminal(t *testing.T) {
	var buffer bytes.Buffer
	logger := newLogger(&buffer, false, false)
	logger.Info("switching monitor input", "monitor", 1, "input", "HDMI1")
	logger.Debug("current input source", "source", "DP1")

	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1 (debug suppressed):\n%s", len(lines), buffer.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("record is not JSON: %v\n%s", err, lines[0])
	}
	if record["msg"] != "switching monitor input" || record["input"] != "HDMI1" {
		t.Errorf("record = %v", record)
	}
}

func TestNewLogger_TextWhenTerminal(t *testing.T) {
	var buffer bytes.Buffer
	logger := newLogger(&buffer, true, true)
	logger.Debug("current input source", "source", "DP1")

	output := buffer.String()
	if !strings.Contains(output, "level=DEBUG") || !strings.Contains(output, "source=DP1") {
		t.Errorf("output = %q, want a text debug record", output)
	}
}
