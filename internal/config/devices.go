package config

import (
	"errors"
	"fmt"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
)

// DeviceConfig describes an input device to register at startup, for
// hardware the producers cannot describe themselves.
type DeviceConfig struct {
	Name         string   `yaml:"name" toml:"name"`
	Kind         string   `yaml:"kind" toml:"kind"`
	PointerType  string   `yaml:"pointer_type,omitempty" toml:"pointer_type,omitempty"`
	SystemID     int64    `yaml:"system_id" toml:"system_id"`
	Seat         string   `yaml:"seat,omitempty" toml:"seat,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty" toml:"capabilities,omitempty"`
	MaxPoints    int      `yaml:"max_points,omitempty" toml:"max_points,omitempty"`
	Buttons      int      `yaml:"buttons,omitempty" toml:"buttons,omitempty"`
	UniqueID     *int64   `yaml:"unique_id,omitempty" toml:"unique_id,omitempty"`
	// Geometry is x, y, width, height in global coordinates.
	Geometry []float64 `yaml:"geometry,omitempty" toml:"geometry,omitempty"`
}

// Device builds the input device the definition describes.
func (d DeviceConfig) Device() (*input.Device, error) {
	if d.Name == "" {
		return nil, errors.New("name is required")
	}
	kind, err := input.ParseDeviceKind(d.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}
	if kind == input.DeviceUnknown {
		return nil, fmt.Errorf("%s: kind is required", d.Name)
	}

	var opts []input.DeviceOption
	if d.PointerType != "" {
		pt, err := input.ParsePointerType(d.PointerType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		opts = append(opts, input.WithPointerType(pt))
	}
	if len(d.Capabilities) > 0 {
		caps, err := input.ParseCapabilities(d.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		opts = append(opts, input.WithCapabilities(caps))
	}
	if d.MaxPoints < 0 || d.Buttons < 0 {
		return nil, fmt.Errorf("%s: max_points and buttons must not be negative", d.Name)
	}
	if d.MaxPoints > 0 {
		opts = append(opts, input.WithMaxPoints(d.MaxPoints))
	}
	if d.Buttons > 0 {
		opts = append(opts, input.WithButtonCount(d.Buttons))
	}
	if d.Seat != "" {
		opts = append(opts, input.WithSeat(d.Seat))
	}
	if d.UniqueID != nil {
		opts = append(opts, input.WithUniqueID(input.UniqueID(*d.UniqueID)))
	}
	switch len(d.Geometry) {
	case 0:
	case 4:
		g := d.Geometry
		opts = append(opts, input.WithGeometry(geom.R(g[0], g[1], g[2], g[3])))
	default:
		return nil, fmt.Errorf("%s: geometry wants 4 numbers (x, y, width, height), got %d", d.Name, len(d.Geometry))
	}

	return input.NewDevice(d.Name, d.SystemID, kind, opts...), nil
}

// InputDevices builds every configured device. Definitions are checked by
// Validate, so errors here mean the config was not validated.
func (c *Config) InputDevices() ([]*input.Device, error) {
	devs := make([]*input.Device, 0, len(c.Devices))
	for i, d := range c.Devices {
		dev, err := d.Device()
		if err != nil {
			return nil, fmt.Errorf("devices[%d]: %w", i, err)
		}
		devs = append(devs, dev)
	}
	return devs, nil
}
