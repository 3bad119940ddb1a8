package presetstore

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
)

// DeviceOverride is a per-device knob read from devices.yml: a
// non-default arena capacity for devices whose descriptors produce an
// unusually large or small report/segment graph, and a report-id byte
// to prepend to every report read from the device before it reaches
// hidcore.Parser.ParseReport. The latter exists for Bluetooth HID
// proxies that strip the leading report-id byte their USB report
// descriptor still declares: the descriptor says "reports carry an
// ID", the wire bytes disagree, and the bridge has to reconcile the
// two without hidcore knowing anything about the transport.
type DeviceOverride struct {
	VendorID         uint16 `json:"vendorId"`
	ProductID        uint16 `json:"productId"`
	ArenaSize        int    `json:"arenaSize,omitempty"`
	ReportIDOverride uint8  `json:"reportIdOverride,omitempty"`
}

// DeviceConfig is the parsed devices.yml: a lookup table keyed by
// {vendorId, productId}. A nil *DeviceConfig is valid and behaves as
// empty, so callers that don't wire a devices.yml at all don't need a
// separate nil check at every call site.
type DeviceConfig struct {
	byKey map[uint32]DeviceOverride
}

func deviceConfigKey(vendorID, productID uint16) uint32 {
	return uint32(vendorID)<<16 | uint32(productID)
}

// LoadDeviceConfig reads devices.yml from path. A missing file is not
// an error: it yields the same empty DeviceConfig as an empty file,
// since devices.yml is an optional tuning knob, not a required input.
func LoadDeviceConfig(path string) (*DeviceConfig, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &DeviceConfig{byKey: map[uint32]DeviceOverride{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("presetstore: read %s: %w", path, err)
	}
	return ParseDeviceConfig(raw)
}

// ParseDeviceConfig parses devices.yml already read into memory. Uses
// ghodss/yaml rather than yaml.v2 (as Parse does for presets.yml):
// devices.yml's struct tags are `json`, so the same DeviceOverride
// definition can also serve a JSON API representation, which
// ghodss/yaml supports by round-tripping through encoding/json;
// presets.yml has no such dual use and so sticks with yaml.v2's
// native struct tags instead.
func ParseDeviceConfig(raw []byte) (*DeviceConfig, error) {
	var file struct {
		Devices []DeviceOverride `json:"devices"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("presetstore: parse devices.yml: %w", err)
	}
	cfg := &DeviceConfig{byKey: make(map[uint32]DeviceOverride, len(file.Devices))}
	for _, d := range file.Devices {
		cfg.byKey[deviceConfigKey(d.VendorID, d.ProductID)] = d
	}
	return cfg, nil
}

// Lookup returns the override configured for {vendorID, productID},
// and whether one was found.
func (c *DeviceConfig) Lookup(vendorID, productID uint16) (DeviceOverride, bool) {
	if c == nil {
		return DeviceOverride{}, false
	}
	ov, ok := c.byKey[deviceConfigKey(vendorID, productID)]
	return ov, ok
}
