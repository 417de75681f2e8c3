// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package usb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchHotplug watches the usbfs device tree (devRoot/bus/usb and its
// per-bus directories) and sends on the returned channel whenever a
// device node is created or removed. The channel has capacity 1 and
// sends never block: a burst of events collapses into one wakeup,
// which is all the poll loop needs since it re-enumerates anyway.
//
// The watcher stops and closes the channel when ctx is cancelled.
// An empty devRoot means "/dev".
func WatchHotplug(ctx context.Context, devRoot string, logger *slog.Logger) (<-chan struct{}, error) {
	if devRoot == "" {
		devRoot = "/dev"
	}
	usbRoot := filepath.Join(devRoot, "bus/usb")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := watcher.Add(usbRoot); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", usbRoot, err)
	}

	entries, err := os.ReadDir(usbRoot)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("reading %s: %w", usbRoot, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		busDirectory := filepath.Join(usbRoot, entry.Name())
		if err := watcher.Add(busDirectory); err != nil {
			logger.Warn("cannot watch usb bus directory", "path", busDirectory, "error", err)
		}
	}

	wake := make(chan struct{}, 1)

	go func() {
		defer close(wake)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove) == 0 {
					continue
				}

				// A new bus directory (a controller came up) needs its
				// own watch so devices attached to it are seen.
				if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == usbRoot {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := watcher.Add(event.Name); err != nil {
							logger.Warn("cannot watch new usb bus directory", "path", event.Name, "error", err)
						}
					}
				}

				select {
				case wake <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Overflow or a transient read error: keep watching.
				// The poll ticker still covers anything missed.
				logger.Debug("hotplug watcher error", "error", err)
			}
		}
	}()

	return wake, nil
}
