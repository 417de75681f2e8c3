// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/joermo/usb-kvm/lib/input"
	"github.com/joermo/usb-kvm/lib/usb"
)

// DefaultPath is the config file the command line uses when neither
// --config nor USB_KVM_CONFIG names one.
const DefaultPath = "config.yaml"

// EnvironmentVariable names the config file for [Load].
const EnvironmentVariable = "USB_KVM_CONFIG"

// USB enumeration backends accepted in daemon.usb_backend.
const (
	BackendSysfs = "sysfs"
	BackendHID   = "hid"
)

// Config is the complete switcher configuration.
type Config struct {
	// USBDevice is the watched device, "vendor:product" in hex.
	USBDevice usb.ID `yaml:"usb_device" json:"usb_device"`

	// SmartSwitching reads each monitor's current input before
	// writing and skips monitors already on the desired input.
	// Default: true. The --dumb flag turns it off.
	SmartSwitching bool `yaml:"smart_switching" json:"smart_switching"`

	// Monitors lists one entry per attached display.
	Monitors Monitors `yaml:"monitors" json:"monitors"`

	// Daemon tunes the polling loop and hardware access.
	Daemon DaemonConfig `yaml:"daemon,omitempty" json:"daemon"`
}

// Monitor configures the desired inputs of one display.
type Monitor struct {
	// Ordinal is the operator's index for the display; 0 is valid.
	// Entries are paired with enumerated displays in ascending ordinal
	// order. In list form an omitted ordinal defaults to the entry's
	// 1-based position.
	Ordinal int `yaml:"ordinal" json:"ordinal"`

	// Name is an optional label used in logs.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	OnConnect    input.State `yaml:"on_connect_input" json:"on_connect_input"`
	OnDisconnect input.State `yaml:"on_disconnect_input" json:"on_disconnect_input"`

	// Identity pins this entry to one physical display ("edid:..."
	// as printed by `usb-kvm devices`). Pinned entries are matched
	// by identity before unpinned entries are paired by position.
	Identity string `yaml:"identity,omitempty" json:"identity,omitempty"`

	// Controllable is set by identity resolution: false when the
	// display never answered an input-source read. Not serialized.
	Controllable bool `yaml:"-" json:"-"`
}

// Label returns the monitor's name, or "monitor N" when unnamed.
func (m *Monitor) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("monitor %d", m.Ordinal)
}

// Desired returns the configured input for the given USB presence.
func (m *Monitor) Desired(connected bool) input.State {
	if connected {
		return m.OnConnect
	}
	return m.OnDisconnect
}

// Monitors is the monitor list. It decodes from either a sequence of
// entries or a mapping from ordinal to entry.
type Monitors []*Monitor

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Monitors) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		entries := make([]*Monitor, len(node.Content))
		explicit := make([]bool, len(node.Content))
		for index, value := range node.Content {
			var entry Monitor
			if err := value.Decode(&entry); err != nil {
				return err
			}
			var presence ordinalPresence
			if err := value.Decode(&presence); err != nil {
				return err
			}
			entries[index] = &entry
			explicit[index] = presence.Ordinal != nil
		}
		*m = numberByPosition(entries, explicit)
		return nil

	case yaml.MappingNode:
		entries := make(map[string]*Monitor, len(node.Content)/2)
		for index := 0; index+1 < len(node.Content); index += 2 {
			key, value := node.Content[index], node.Content[index+1]
			var entry Monitor
			if err := value.Decode(&entry); err != nil {
				return err
			}
			if _, duplicate := entries[key.Value]; duplicate {
				return fmt.Errorf("line %d: monitor %q defined twice", key.Line, key.Value)
			}
			entries[key.Value] = &entry
		}
		decoded, err := fromOrdinalMap(entries)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*m = decoded
		return nil

	default:
		return fmt.Errorf("line %d: monitors must be a list or a mapping of ordinal to monitor", node.Line)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Monitors) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		entries := make([]*Monitor, len(raw))
		explicit := make([]bool, len(raw))
		for index, value := range raw {
			var entry *Monitor
			if err := json.Unmarshal(value, &entry); err != nil {
				return err
			}
			var presence *ordinalPresence
			if err := json.Unmarshal(value, &presence); err != nil {
				return err
			}
			entries[index] = entry
			explicit[index] = presence != nil && presence.Ordinal != nil
		}
		*m = numberByPosition(entries, explicit)
		return nil

	case bytes.HasPrefix(trimmed, []byte("{")):
		var entries map[string]*Monitor
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		decoded, err := fromOrdinalMap(entries)
		if err != nil {
			return err
		}
		*m = decoded
		return nil

	case bytes.Equal(trimmed, []byte("null")):
		*m = nil
		return nil

	default:
		return errors.New("monitors must be an array or an object of ordinal to monitor")
	}
}

// ordinalPresence tells an explicit "ordinal: 0" from an omitted one.
type ordinalPresence struct {
	Ordinal *int `yaml:"ordinal" json:"ordinal"`
}

// numberByPosition gives every list entry without an explicit ordinal
// its 1-based position.
func numberByPosition(entries []*Monitor, explicit []bool) Monitors {
	for index, entry := range entries {
		if entry == nil {
			entries[index] = &Monitor{}
			entry = entries[index]
		}
		if !explicit[index] {
			entry.Ordinal = index + 1
		}
	}
	return Monitors(entries)
}

// fromOrdinalMap converts the keyed form, sorted by ordinal. An entry
// may repeat its key as "ordinal" but must not contradict it.
func fromOrdinalMap(entries map[string]*Monitor) (Monitors, error) {
	monitors := make(Monitors, 0, len(entries))
	for key, entry := range entries {
		ordinal, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("monitor key %q is not an integer ordinal", key)
		}
		if entry == nil {
			entry = &Monitor{}
		}
		if entry.Ordinal != 0 && entry.Ordinal != ordinal {
			return nil, fmt.Errorf("monitor key %q has conflicting ordinal %d", key, entry.Ordinal)
		}
		entry.Ordinal = ordinal
		monitors = append(monitors, entry)
	}
	sort.SliceStable(monitors, func(i, j int) bool {
		return monitors[i].Ordinal < monitors[j].Ordinal
	})
	return monitors, nil
}

// Sorted returns the monitors in ascending ordinal order. The entries
// are shared with m; only the slice is new.
func (m Monitors) Sorted() Monitors {
	sorted := slices.Clone(m)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Ordinal < sorted[j].Ordinal
	})
	return sorted
}

// DaemonConfig configures the long-running `run` command.
type DaemonConfig struct {
	// PollInterval is the USB presence polling period.
	// Default: 500ms
	PollInterval Duration `yaml:"poll_interval" json:"poll_interval"`

	// TopologyAttempts bounds how many times identity resolution
	// re-enumerates while the display count disagrees with the
	// config, one second apart, before giving up.
	// Default: 30
	TopologyAttempts int `yaml:"topology_attempts" json:"topology_attempts"`

	// HotplugWakeup polls immediately when a USB device node appears
	// or disappears instead of waiting for the next tick.
	// Default: true
	HotplugWakeup bool `yaml:"hotplug_wakeup" json:"hotplug_wakeup"`

	// USBBackend selects USB enumeration: "sysfs" reads
	// /sys/bus/usb/devices, "hid" uses hidapi and only sees HID
	// devices.
	// Default: sysfs
	USBBackend string `yaml:"usb_backend" json:"usb_backend"`

	// SysRoot and DevRoot relocate /sys and /dev, for containers that
	// bind-mount the host trees elsewhere. $VAR references are
	// expanded.
	// Default: /sys, /dev
	SysRoot string `yaml:"sys_root" json:"sys_root"`
	DevRoot string `yaml:"dev_root" json:"dev_root"`
}

// Duration is a time.Duration written as a Go duration string
// ("500ms", "1s") in both YAML and JSON.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used as the base before the file
// is decoded over it.
func Default() *Config {
	return &Config{
		SmartSwitching: true,
		Daemon: DaemonConfig{
			PollInterval:     Duration(500 * time.Millisecond),
			TopologyAttempts: 30,
			HotplugWakeup:    true,
			USBBackend:       BackendSysfs,
			SysRoot:          "/sys",
			DevRoot:          "/dev",
		},
	}
}

// Load loads configuration from the file named by USB_KVM_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads and validates configuration from a file. The error
// from a file that decodes but fails validation joins every problem.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.Daemon.SysRoot = os.ExpandEnv(cfg.Daemon.SysRoot)
	cfg.Daemon.DevRoot = os.ExpandEnv(cfg.Daemon.DevRoot)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.USBDevice.IsZero() {
		errs = append(errs, errors.New("usb_device is required"))
	}

	if len(c.Monitors) == 0 {
		errs = append(errs, errors.New("monitors must list at least one monitor"))
	}

	ordinals := make(map[int]bool, len(c.Monitors))
	identities := make(map[string]int, len(c.Monitors))
	for index, monitor := range c.Monitors {
		if monitor == nil {
			errs = append(errs, fmt.Errorf("monitors[%d] is empty", index))
			continue
		}
		if monitor.Ordinal < 0 {
			errs = append(errs, fmt.Errorf("monitors[%d]: ordinal %d is negative", index, monitor.Ordinal))
		}
		if ordinals[monitor.Ordinal] {
			errs = append(errs, fmt.Errorf("monitors[%d]: ordinal %d is used twice", index, monitor.Ordinal))
		}
		ordinals[monitor.Ordinal] = true

		if !monitor.OnConnect.Valid() {
			errs = append(errs, fmt.Errorf("%s: on_connect_input is required", monitor.Label()))
		}
		if !monitor.OnDisconnect.Valid() {
			errs = append(errs, fmt.Errorf("%s: on_disconnect_input is required", monitor.Label()))
		}

		if monitor.Identity != "" {
			if other, pinned := identities[monitor.Identity]; pinned {
				errs = append(errs, fmt.Errorf("%s: identity %s is already pinned by monitor %d",
					monitor.Label(), monitor.Identity, other))
			}
			identities[monitor.Identity] = monitor.Ordinal
		}
	}

	if c.Daemon.PollInterval <= 0 {
		errs = append(errs, errors.New("daemon.poll_interval must be positive"))
	}
	if c.Daemon.TopologyAttempts < 1 {
		errs = append(errs, errors.New("daemon.topology_attempts must be at least 1"))
	}
	backends := []string{BackendSysfs, BackendHID}
	if !slices.Contains(backends, c.Daemon.USBBackend) {
		errs = append(errs, fmt.Errorf("daemon.usb_backend must be one of: %v", backends))
	}
	if c.Daemon.SysRoot == "" {
		errs = append(errs, errors.New("daemon.sys_root is required"))
	}
	if c.Daemon.DevRoot == "" {
		errs = append(errs, errors.New("daemon.dev_root is required"))
	}

	return errors.Join(errs...)
}
