// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joermo/usb-kvm/lib/clock"
	"github.com/joermo/usb-kvm/lib/ddc"
	"github.com/joermo/usb-kvm/lib/input"
	"github.com/joermo/usb-kvm/lib/sysfs"
)

// SysfsEnumerator finds displays through the DRM subsystem.
type SysfsEnumerator struct {
	sysRoot string
	devRoot string
	clock   clock.Clock

	// open opens an i2c-dev node bound to the DDC/CI address.
	open func(path string) (io.ReadWriteCloser, error)
}

// NewSysfsEnumerator creates an enumerator reading connectors under
// sysRoot/class/drm and opening adapters under devRoot.
func NewSysfsEnumerator(sysRoot, devRoot string, clk clock.Clock) *SysfsEnumerator {
	return &SysfsEnumerator{
		sysRoot: sysRoot,
		devRoot: devRoot,
		clock:   clk,
		open: func(path string) (io.ReadWriteCloser, error) {
			device, err := ddc.OpenI2C(path)
			if err != nil {
				return nil, err
			}
			return device, nil
		},
	}
}

// Monitors returns a handle for every connected connector that has a
// DDC adapter, sorted by connector name. Connectors without an adapter
// (some eDP panels, MST branches) cannot be controlled and are omitted.
func (e *SysfsEnumerator) Monitors(ctx context.Context) ([]Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	drmDir := filepath.Join(e.sysRoot, "class", "drm")
	entries, err := os.ReadDir(drmDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", drmDir, err)
	}

	var names []string
	for _, entry := range entries {
		if sysfs.IsConnector(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var found []*ddcHandle
	for _, name := range names {
		connectorPath := filepath.Join(drmDir, name)
		if sysfs.ReadString(filepath.Join(connectorPath, "status")) != "connected" {
			continue
		}
		bus, ok := adapterNumber(connectorPath)
		if !ok {
			continue
		}

		edid := sysfs.ReadBytes(filepath.Join(connectorPath, "edid"))
		identity := BusIdentity(bus)
		if edid != nil {
			identity = IdentityFromEDID(edid)
		}

		found = append(found, &ddcHandle{
			connector:  name,
			devicePath: filepath.Join(e.devRoot, fmt.Sprintf("i2c-%d", bus)),
			identity:   identity,
			model:      ModelFromEDID(edid),
			clock:      e.clock,
			open:       e.open,
		})
	}

	// Identical panels with blank EDID serials hash alike. Suffix the
	// connector so each handle still keys a distinct entry.
	counts := make(map[Identity]int, len(found))
	for _, handle := range found {
		counts[handle.identity]++
	}
	handles := make([]Handle, 0, len(found))
	for _, handle := range found {
		if counts[handle.identity] > 1 {
			handle.identity += Identity("@" + handle.connector)
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

// adapterNumber returns N for the connector's i2c-N DDC adapter. Newer
// kernels expose a "ddc" symlink; older ones place the adapter
// directory directly under the connector.
func adapterNumber(connectorPath string) (int, bool) {
	if bus, ok := parseAdapterName(sysfs.LinkBase(filepath.Join(connectorPath, "ddc"))); ok {
		return bus, true
	}
	entries, err := os.ReadDir(connectorPath)
	if err != nil {
		return 0, false
	}
	for _, entry := range entries {
		if bus, ok := parseAdapterName(entry.Name()); ok {
			return bus, true
		}
	}
	return 0, false
}

func parseAdapterName(name string) (int, bool) {
	suffix, found := strings.CutPrefix(name, "i2c-")
	if !found {
		return 0, false
	}
	bus, err := strconv.Atoi(suffix)
	if err != nil || bus < 0 {
		return 0, false
	}
	return bus, true
}

// ddcHandle drives one display over its DDC adapter.
type ddcHandle struct {
	connector  string
	devicePath string
	identity   Identity
	model      string
	clock      clock.Clock
	open       func(path string) (io.ReadWriteCloser, error)

	device io.ReadWriteCloser
	bus    *ddc.Bus
}

func (h *ddcHandle) Identity() Identity { return h.identity }

func (h *ddcHandle) Describe() string {
	if h.model == "" {
		return h.connector
	}
	return fmt.Sprintf("%s (%s)", h.connector, h.model)
}

func (h *ddcHandle) ensureOpen() (*ddc.Bus, error) {
	if h.bus != nil {
		return h.bus, nil
	}
	device, err := h.open(h.devicePath)
	if err != nil {
		return nil, fmt.Errorf("monitor %s: %w", h.connector, err)
	}
	h.device = device
	h.bus = ddc.NewBus(device, h.clock)
	return h.bus, nil
}

func (h *ddcHandle) InputSource(ctx context.Context) (input.Code, error) {
	bus, err := h.ensureOpen()
	if err != nil {
		return 0, err
	}
	value, err := bus.GetVCP(ctx, input.VCPInputSelect)
	if err != nil {
		return 0, fmt.Errorf("monitor %s: reading input source: %w", h.connector, err)
	}
	// Several displays report vendor flags in the high byte.
	return input.Code(value.Current & 0xFF), nil
}

func (h *ddcHandle) SetInputSource(ctx context.Context, code input.Code) error {
	bus, err := h.ensureOpen()
	if err != nil {
		return err
	}
	if err := bus.SetVCP(ctx, input.VCPInputSelect, uint16(code)); err != nil {
		return fmt.Errorf("monitor %s: setting input source %s: %w", h.connector, code, err)
	}
	return nil
}

func (h *ddcHandle) Capabilities(ctx context.Context) (Capabilities, error) {
	bus, err := h.ensureOpen()
	if err != nil {
		return Capabilities{}, err
	}
	raw, err := bus.Capabilities(ctx)
	if err != nil {
		return Capabilities{}, fmt.Errorf("monitor %s: %w", h.connector, err)
	}
	parsed, err := ddc.ParseCapabilities(raw)
	if err != nil {
		return Capabilities{Model: h.model, Raw: raw}, fmt.Errorf("monitor %s: %w", h.connector, err)
	}

	capabilities := Capabilities{Model: parsed.Model, Raw: raw}
	if capabilities.Model == "" {
		capabilities.Model = h.model
	}
	for _, value := range parsed.Values(input.VCPInputSelect) {
		capabilities.Inputs = append(capabilities.Inputs, input.Code(value))
	}
	return capabilities, nil
}

// Close releases the i2c device if a command opened it.
func (h *ddcHandle) Close() error {
	if h.device == nil {
		return nil
	}
	err := h.device.Close()
	h.device = nil
	h.bus = nil
	return err
}
