// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package usb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joermo/usb-kvm/lib/testutil"
)

func TestWatchHotplugWakesOnDeviceNode(t *testing.T) {
	devRoot := t.TempDir()
	busDirectory := filepath.Join(devRoot, "bus/usb/001")
	if err := os.MkdirAll(busDirectory, 0755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wake, err := WatchHotplug(ctx, devRoot, logger)
	if err != nil {
		t.Fatalf("WatchHotplug: %v", err)
	}

	nodePath := filepath.Join(busDirectory, "004")
	if err := os.WriteFile(nodePath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, wake, 5*time.Second, "wakeup after device node creation")

	if err := os.Remove(nodePath); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, wake, 5*time.Second, "wakeup after device node removal")

	cancel()
	for range wake {
	}
}

func TestWatchHotplugWatchesNewBus(t *testing.T) {
	devRoot := t.TempDir()
	usbRoot := filepath.Join(devRoot, "bus/usb")
	if err := os.MkdirAll(usbRoot, 0755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wake, err := WatchHotplug(ctx, devRoot, logger)
	if err != nil {
		t.Fatalf("WatchHotplug: %v", err)
	}

	newBus := filepath.Join(usbRoot, "003")
	if err := os.Mkdir(newBus, 0755); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, wake, 5*time.Second, "wakeup after bus creation")

	// The new bus directory is watched asynchronously after the
	// create event; retry the node creation until a wakeup arrives.
	deadline := time.Now().Add(5 * time.Second)
	for attempt := 0; ; attempt++ {
		node := filepath.Join(newBus, fmt.Sprintf("node%d", attempt))
		if err := os.WriteFile(node, nil, 0644); err != nil {
			t.Fatal(err)
		}
		select {
		case <-wake:
			return
		case <-time.After(100 * time.Millisecond): //nolint:realclock test hang prevention
		}
		if time.Now().After(deadline) {
			t.Fatal("no wakeup for device node on newly created bus")
		}
	}
}

func TestWatchHotplugMissingTree(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := WatchHotplug(context.Background(), t.TempDir(), logger); err == nil {
		t.Fatal("expected error for missing bus/usb directory")
	}
}
